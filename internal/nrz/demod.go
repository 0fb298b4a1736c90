package nrz

const (
	DefaultThreshold = 0.5
	DefaultBitRate   = 115200
)

// DecoderConfig holds the slicing parameters of a Decoder.
type DecoderConfig struct {
	// Threshold is the level above which a sample reads as One.
	Threshold float64 `json:"threshold"`
	// BitRate is the nominal line rate in bits per second. It is recorded
	// for reporting only; slicing is one bit per sample.
	BitRate int `json:"bit_rate"`
}

// DefaultDecoderConfig returns the 0.5 threshold, 115200 bps configuration.
func DefaultDecoderConfig() DecoderConfig {
	return DecoderConfig{Threshold: DefaultThreshold, BitRate: DefaultBitRate}
}

// Decoder is a level-slicing NRZ demodulator. It holds no state between
// calls and may be shared between goroutines.
type Decoder struct {
	cfg DecoderConfig
}

// NewDecoder returns a Decoder for cfg. A zero Threshold or non-positive
// BitRate falls back to the default.
func NewDecoder(cfg DecoderConfig) *Decoder {
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.BitRate <= 0 {
		cfg.BitRate = DefaultBitRate
	}
	return &Decoder{cfg: cfg}
}

// Config returns the effective configuration.
func (d *Decoder) Config() DecoderConfig {
	return d.cfg
}

// DecodeNRZ slices each sample against the threshold: One when the sample is
// strictly greater, Zero otherwise.
func (d *Decoder) DecodeNRZ(samples []float64) Bitstream {
	bits := make(Bitstream, len(samples))
	for i, s := range samples {
		if s > d.cfg.Threshold {
			bits[i] = One
		}
	}
	return bits
}

// Modulate maps bits onto sample levels, high for One and low for Zero, one
// sample per bit.
func Modulate(bits Bitstream, high, low float64) []float64 {
	samples := make([]float64, len(bits))
	for i, b := range bits {
		if b == One {
			samples[i] = high
		} else {
			samples[i] = low
		}
	}
	return samples
}
