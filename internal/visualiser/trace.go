// Package visualiser turns a decoded bitstream and its quality metrics into
// the data a waveform renderer draws, and provides HTML (go-echarts) and PNG
// (gonum/plot) renderings of it.
package visualiser

import (
	"encoding/json"
	"strconv"

	"github.com/banshee-data/vitals.link/internal/nrz"
)

const (
	HighLevel = 1.0
	LowLevel  = -1.0
)

// Point is a vertex of the square-wave polyline. X is in bit periods.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Trace is the renderer contract: bits as 0/1, the metrics pair and a
// ready-to-draw square wave in which bit i spans [i, i+1).
type Trace struct {
	Bits   []int   `json:"bits"`
	SQI    int     `json:"sqi"`
	SNR    SNR     `json:"snr"`
	Points []Point `json:"points"`
}

// SNR is an SNR value in dB that serialises as a one-decimal string, e.g.
// "21.4".
type SNR float64

func (s SNR) String() string {
	return strconv.FormatFloat(float64(s), 'f', 1, 64)
}

func (s SNR) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *SNR) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		var f float64
		if err := json.Unmarshal(b, &f); err != nil {
			return err
		}
		*s = SNR(f)
		return nil
	}
	f, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return err
	}
	*s = SNR(f)
	return nil
}

// NewTrace builds the renderer view of bits and m.
func NewTrace(bits nrz.Bitstream, m nrz.QualityMetrics) Trace {
	return Trace{
		Bits:   bits.Ints(),
		SQI:    m.SQI,
		SNR:    SNR(m.SNR),
		Points: SquareWave(bits),
	}
}

// SquareWave returns the polyline of an NRZ-L waveform: a vertical edge at
// every transition and a horizontal run for each bit. An empty stream has no
// points.
func SquareWave(bits nrz.Bitstream) []Point {
	if len(bits) == 0 {
		return []Point{}
	}
	pts := make([]Point, 0, 2+2*nrz.Stats(bits).Transitions)
	pts = append(pts, Point{X: 0, Y: level(bits[0])})
	for i := 1; i < len(bits); i++ {
		if bits[i] == bits[i-1] {
			continue
		}
		x := float64(i)
		pts = append(pts, Point{X: x, Y: level(bits[i-1])}, Point{X: x, Y: level(bits[i])})
	}
	return append(pts, Point{X: float64(len(bits)), Y: level(bits[len(bits)-1])})
}

func level(b nrz.Bit) float64 {
	if b == nrz.One {
		return HighLevel
	}
	return LowLevel
}
