package readings

import (
	"context"
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/nerrad567/gray-logic-sensornode/internal/session"
)

func TestSpoolSource_Collect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "readings.json")
	spool := `[{"nodeId":1,"humidity":55.2,"raw":710},{"nodeId":2,"humidity":48.9,"raw":690}]`
	if err := os.WriteFile(path, []byte(spool), 0600); err != nil {
		t.Fatal(err)
	}

	src := NewSpoolSource(path)
	got, err := src.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	want := []session.Reading{{NodeID: 1, Humidity: 55.2, Raw: 710}, {NodeID: 2, Humidity: 48.9, Raw: 690}}
	if len(got) != len(want) {
		t.Fatalf("Collect() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("reading[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}

	if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("spool file still present after Collect: %v", err)
	}
	if _, err := os.Stat(path + ".draining"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("draining file left behind: %v", err)
	}

	again, err := src.Collect(context.Background())
	if err != nil || again != nil {
		t.Errorf("second Collect() = %v, %v; want nil, nil", again, err)
	}
}

func TestSpoolSource_Missing(t *testing.T) {
	src := NewSpoolSource(filepath.Join(t.TempDir(), "absent.json"))

	got, err := src.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if got != nil {
		t.Errorf("Collect() = %v, want nil", got)
	}
}

func TestSpoolSource_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "readings.json")
	if err := os.WriteFile(path, []byte(`{"nodeId":1`), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := NewSpoolSource(path).Collect(context.Background())
	if !errors.Is(err, ErrMalformedSpool) {
		t.Fatalf("Collect() error = %v, want ErrMalformedSpool", err)
	}
	if _, err := os.Stat(path + ".rejected"); err != nil {
		t.Errorf("rejected file not kept: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
		t.Error("malformed spool left in place")
	}
}

func TestSpoolSource_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewSpoolSource("unused").Collect(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Collect() error = %v, want context.Canceled", err)
	}
}

func TestSimulator_Collect(t *testing.T) {
	nodes := []int{10, 11, 12, 13}
	sim := NewSimulator(nodes, 42)

	for round := range 50 {
		got, err := sim.Collect(context.Background())
		if err != nil {
			t.Fatalf("Collect() error = %v", err)
		}
		if len(got) != len(nodes) {
			t.Fatalf("round %d: %d readings, want %d", round, len(got), len(nodes))
		}
		for i, r := range got {
			if r.NodeID != nodes[i] {
				t.Errorf("reading %d NodeID = %d, want %d", i, r.NodeID, nodes[i])
			}
			if r.Humidity < 40 || r.Humidity > 80 {
				t.Errorf("Humidity = %v, outside 40..80", r.Humidity)
			}
			if scaled := r.Humidity * 100; math.Abs(scaled-math.Round(scaled)) > 1e-6 {
				t.Errorf("Humidity = %v, not rounded to two decimals", r.Humidity)
			}
			if r.Raw < 409 || r.Raw > 819 {
				t.Errorf("Raw = %d, outside the ADC span for 40..80%%", r.Raw)
			}
		}
	}
}

func TestSimulator_Reproducible(t *testing.T) {
	a, _ := NewSimulator([]int{1, 2}, 7).Collect(context.Background())
	b, _ := NewSimulator([]int{1, 2}, 7).Collect(context.Background())

	for i := range a {
		if a[i] != b[i] {
			t.Errorf("same seed gave %+v and %+v", a[i], b[i])
		}
	}
}
