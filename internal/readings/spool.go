package readings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/nerrad567/gray-logic-sensornode/internal/session"
)

// Source supplies the next batch of pre-aggregated readings.
type Source interface {
	Collect(ctx context.Context) ([]session.Reading, error)
}

// ErrMalformedSpool is returned when the spool file is not a JSON array of readings.
var ErrMalformedSpool = errors.New("readings: malformed spool file")

// SpoolSource drains a JSON file written by the mesh coordinator.
//
// The file holds an array of {"nodeId","humidity","raw"} objects. Collect
// renames it aside before reading, so readings appended by the coordinator
// after that point land in a fresh file and are picked up next cycle.
// Nothing is kept once a batch has been handed out.
type SpoolSource struct {
	path string
}

// NewSpoolSource creates a source reading path.
func NewSpoolSource(path string) *SpoolSource {
	return &SpoolSource{path: path}
}

// Collect returns and removes the spooled readings. A missing spool file
// is an empty batch, not an error. A malformed file is moved to
// path+".rejected" so it is not retried.
func (s *SpoolSource) Collect(ctx context.Context) ([]session.Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	draining := s.path + ".draining"
	if err := os.Rename(s.path, draining); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("claiming spool: %w", err)
	}

	data, err := os.ReadFile(draining)
	if err != nil {
		return nil, fmt.Errorf("reading spool: %w", err)
	}

	var batch []session.Reading
	if err := json.Unmarshal(data, &batch); err != nil {
		_ = os.Rename(draining, s.path+".rejected") //nolint:errcheck // best effort, the error below is what matters
		return nil, fmt.Errorf("%w: %w", ErrMalformedSpool, err)
	}

	if err := os.Remove(draining); err != nil {
		return nil, fmt.Errorf("removing drained spool: %w", err)
	}
	return batch, nil
}
