package nrz

import (
	"math"
	"math/rand/v2"
)

const (
	// MaxSNR is the SNR reported for a perfect SQI with no noise floor.
	MaxSNR = 25.0

	// runLimit is the longest run of identical bits tolerated before the
	// stream is treated as wandering or flatlined.
	runLimit = 20
	// transitionDivisor sets the minimum transition density: more than one
	// transition per transitionDivisor bits.
	transitionDivisor = 20

	consistentScore   = 50
	inconsistentScore = 20
	activeScore       = 50
	inactiveScore     = 20
)

// QualityMetrics summarises a demodulated bitstream. SQI takes one of the
// tiers 40, 70 or 100 (0 for an empty stream); SNR is in dB, rounded to one
// decimal place.
type QualityMetrics struct {
	SQI int     `json:"sqi"`
	SNR float64 `json:"snr"`
}

// BitStats are the transition statistics the SQI is derived from.
type BitStats struct {
	Transitions    int
	MaxConsecutive int
}

// Stats walks adjacent bit pairs counting level changes and the longest run
// of identical bits. An empty stream has no runs.
func Stats(bits Bitstream) BitStats {
	if len(bits) == 0 {
		return BitStats{}
	}
	st := BitStats{MaxConsecutive: 1}
	run := 1
	for i := 1; i < len(bits); i++ {
		if bits[i] != bits[i-1] {
			st.Transitions++
			run = 1
			continue
		}
		run++
		if run > st.MaxConsecutive {
			st.MaxConsecutive = run
		}
	}
	return st
}

// SQI scores the statistics of an n-bit stream.
func (st BitStats) SQI(n int) int {
	if n == 0 {
		return 0
	}
	consistency := consistentScore
	if st.MaxConsecutive > runLimit {
		consistency = inconsistentScore
	}
	transition := inactiveScore
	if float64(st.Transitions) > float64(n)/transitionDivisor {
		transition = activeScore
	}
	return consistency + transition
}

// Analyzer computes QualityMetrics. The only non-deterministic input is the
// noise floor, drawn once per call from the configured NoiseSource.
type Analyzer struct {
	noise NoiseSource
}

// NewAnalyzer returns an Analyzer drawing from noise. A nil source uses a
// randomly seeded UniformNoise.
func NewAnalyzer(noise NoiseSource) *Analyzer {
	if noise == nil {
		noise = NewUniformNoise(rand.Uint64())
	}
	return &Analyzer{noise: noise}
}

// CalculateMetrics scores bits. An empty stream yields zero metrics without
// consuming a noise draw. Noise draws are clamped to [0, MaxNoiseFloor] and
// a NaN draw counts as no noise.
func (a *Analyzer) CalculateMetrics(bits Bitstream) QualityMetrics {
	if len(bits) == 0 {
		return QualityMetrics{}
	}
	sqi := Stats(bits).SQI(len(bits))
	base := float64(sqi) / 100 * MaxSNR
	noise := a.noise.NoiseFloor()
	if math.IsNaN(noise) {
		noise = 0
	}
	noise = math.Min(math.Max(noise, 0), MaxNoiseFloor)
	snr := math.Max(0, base-noise)
	return QualityMetrics{SQI: sqi, SNR: roundTenth(snr)}
}

// CalculateSQI returns only the SQI of bits.
func (a *Analyzer) CalculateSQI(bits Bitstream) int {
	return a.CalculateMetrics(bits).SQI
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
