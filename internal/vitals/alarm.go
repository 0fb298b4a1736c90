package vitals

import "fmt"

// Priority orders alarm severities.
type Priority int

const (
	PriorityNone Priority = iota
	PriorityMedium
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	default:
		return "none"
	}
}

// MarshalText encodes the priority by name.
func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Priority) UnmarshalText(b []byte) error {
	switch string(b) {
	case "high":
		*p = PriorityHigh
	case "medium":
		*p = PriorityMedium
	case "none":
		*p = PriorityNone
	default:
		return fmt.Errorf("unknown alarm priority %q", b)
	}
	return nil
}

// AlarmProfile selects the SpO2 targets. COPD patients are held to the
// 88-92% band; GOLD stage 3 and above lowers the hypoxia floor to 88.
type AlarmProfile struct {
	COPD      bool `json:"copd"`
	GOLDStage int  `json:"gold_stage"`
}

// Alarm lists the conditions raised for a sample and the resulting priority.
type Alarm struct {
	Priority    Priority `json:"priority"`
	Hypoxia     bool     `json:"hypoxia"`
	Hyperoxia   bool     `json:"hyperoxia"`
	Bradycardia bool     `json:"bradycardia"`
	Tachycardia bool     `json:"tachycardia"`
}

// SpO2Limits returns the low and high SpO2 thresholds for the profile.
func (p AlarmProfile) SpO2Limits() (low, high int) {
	if !p.COPD {
		return 90, 100
	}
	if p.GOLDStage >= 3 {
		return 88, 92
	}
	return 90, 92
}

// Classify evaluates s, after clamping, against the profile. Zero readings
// mean "no signal" and raise no SpO2 or bradycardia condition.
func (p AlarmProfile) Classify(s Sample) Alarm {
	s = s.Clamped()
	low, high := p.SpO2Limits()

	a := Alarm{
		Hypoxia:     s.SpO2 > 0 && s.SpO2 < low,
		Hyperoxia:   p.COPD && s.SpO2 > high,
		Bradycardia: s.HeartRate > 0 && s.HeartRate < 60,
		Tachycardia: s.HeartRate > 100,
	}

	switch {
	case (a.Hypoxia && s.HeartRate > 110) || (s.SpO2 > 0 && s.SpO2 < 85):
		a.Priority = PriorityHigh
	case a.Hypoxia || a.Hyperoxia || a.Bradycardia || a.Tachycardia:
		a.Priority = PriorityMedium
	}
	return a
}
