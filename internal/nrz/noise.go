package nrz

import (
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/stat/distuv"
)

// MaxNoiseFloor bounds the noise floor subtracted from the base SNR.
const MaxNoiseFloor = 2.0

// NoiseSource supplies the noise floor, in dB, subtracted from the SNR
// estimate. Implementations should return values in [0, MaxNoiseFloor];
// the Analyzer clamps anything else and treats NaN as zero.
type NoiseSource interface {
	NoiseFloor() float64
}

// UniformNoise draws the noise floor uniformly from [0, MaxNoiseFloor).
type UniformNoise struct {
	mu   sync.Mutex
	dist distuv.Uniform
}

// NewUniformNoise returns a UniformNoise seeded with seed. Equal seeds
// produce equal sequences.
func NewUniformNoise(seed uint64) *UniformNoise {
	return &UniformNoise{
		dist: distuv.Uniform{
			Min: 0,
			Max: MaxNoiseFloor,
			Src: rand.NewPCG(seed, seed^0x9e3779b97f4a7c15),
		},
	}
}

// NoiseFloor implements NoiseSource.
func (u *UniformNoise) NoiseFloor() float64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.dist.Rand()
}

// FixedNoise always returns the same noise floor.
type FixedNoise float64

// NoiseFloor implements NoiseSource.
func (f FixedNoise) NoiseFloor() float64 { return float64(f) }
