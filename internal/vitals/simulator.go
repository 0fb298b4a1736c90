package vitals

import (
	"math"
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/stat/distuv"
)

// Simulator produces plausible readings for dev mode and tests. Heart rate
// follows a bounded random walk with beat jitter; SpO2 is derived through
// the red/IR ratio-of-ratios relation SpO2 = 110 - 25R with a small
// measurement error on R.
type Simulator struct {
	mu      sync.Mutex
	hr      float64
	spo2    float64
	step    distuv.Uniform
	ratioMu distuv.Uniform
}

// NewSimulator returns a Simulator starting at 72 bpm / 97 %.
func NewSimulator(seed uint64) *Simulator {
	src := rand.NewPCG(seed, seed+1)
	return &Simulator{
		hr:      72,
		spo2:    97,
		step:    distuv.Uniform{Min: -1.5, Max: 1.5, Src: src},
		ratioMu: distuv.Uniform{Min: -0.025, Max: 0.025, Src: src},
	}
}

// Next advances the simulation by one reading.
func (s *Simulator) Next() Sample {
	s.mu.Lock()
	defer s.mu.Unlock()

	// drift back toward resting values so the walk stays bounded
	s.hr += s.step.Rand() + (72-s.hr)*0.05
	s.hr = math.Min(math.Max(s.hr, 45), 140)
	s.spo2 += s.step.Rand()*0.3 + (97-s.spo2)*0.1
	s.spo2 = math.Min(math.Max(s.spo2, 80), 100)

	r := (110-s.spo2)/25 + s.ratioMu.Rand()
	spo2 := math.Min(MaxSpO2, math.Round(110-25*r))

	return Sample{HeartRate: int(math.Round(s.hr)), SpO2: int(spo2)}
}
