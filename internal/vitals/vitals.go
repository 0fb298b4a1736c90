// Package vitals holds the heart rate / SpO2 reading carried over the link
// and the text line format the transmitter emits.
package vitals

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MaxSpO2 is the physiological ceiling for oxygen saturation.
const MaxSpO2 = 100

var ErrMalformedLine = errors.New("malformed vitals line")

// Sample is one reading: heart rate in bpm and SpO2 in percent.
type Sample struct {
	HeartRate int `json:"heartRate"`
	SpO2      int `json:"spO2"`
}

// Clamped returns s with SpO2 capped at MaxSpO2.
func (s Sample) Clamped() Sample {
	if s.SpO2 > MaxSpO2 {
		s.SpO2 = MaxSpO2
	}
	return s
}

// Payload returns the wire payload "<hr>,<spo2>\n".
func (s Sample) Payload() string {
	return fmt.Sprintf("%d,%d\n", s.HeartRate, s.SpO2)
}

// ParseLine parses a "HR,SpO2" line such as "75,98". Surrounding whitespace,
// including the trailing newline, is ignored.
func ParseLine(line string) (Sample, error) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) != 2 {
		return Sample{}, fmt.Errorf("%w: %q has %d fields, expected 2", ErrMalformedLine, line, len(parts))
	}
	hr, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Sample{}, fmt.Errorf("%w: heart rate: %v", ErrMalformedLine, err)
	}
	spo2, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Sample{}, fmt.Errorf("%w: spo2: %v", ErrMalformedLine, err)
	}
	return Sample{HeartRate: hr, SpO2: spo2}, nil
}
