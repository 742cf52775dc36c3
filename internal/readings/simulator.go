package readings

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/nerrad567/gray-logic-sensornode/internal/session"
)

// Simulated humidity range, percent.
const (
	simMinHumidity = 40.0
	simMaxHumidity = 80.0

	// adcFullScale is the 10-bit ADC range the raw value is reported in.
	adcFullScale = 1023
)

// Simulator produces random readings for bench testing without a mesh.
type Simulator struct {
	nodes []int
	rng   *rand.Rand
}

// NewSimulator creates a simulator for nodes. The seed makes runs
// reproducible.
func NewSimulator(nodes []int, seed uint64) *Simulator {
	return &Simulator{
		nodes: append([]int(nil), nodes...),
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Collect returns one reading per node with humidity uniform in [40, 80),
// rounded to two decimals, and the matching ADC count.
func (s *Simulator) Collect(ctx context.Context) ([]session.Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]session.Reading, 0, len(s.nodes))
	for _, id := range s.nodes {
		h := simMinHumidity + s.rng.Float64()*(simMaxHumidity-simMinHumidity)
		h = math.Round(h*100) / 100
		out = append(out, session.Reading{
			NodeID:   id,
			Humidity: h,
			Raw:      int(math.Round(h / 100 * adcFullScale)),
		})
	}
	return out, nil
}
