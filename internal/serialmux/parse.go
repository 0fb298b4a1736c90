package serialmux

import (
	"strconv"
	"strings"
)

const (
	// EventTypeVitals is a "HR,SpO2" text line from a transmitter that has
	// already demodulated the link.
	EventTypeVitals = "vitals"
	// EventTypeBits is a line of '0'/'1' characters: hard-sliced bits.
	EventTypeBits = "bits"
	// EventTypeSamples is a line of three or more numeric samples separated
	// by commas or whitespace, to be level-sliced.
	EventTypeSamples = "samples"
	EventTypeUnknown = "unknown"
)

// ClassifyPayload inspects a line and returns the event type token used to
// route it. Classification only looks at the shape of the line; parsing is
// left to the handler.
func ClassifyPayload(payload string) string {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return EventTypeUnknown
	}
	if strings.Trim(payload, "01") == "" {
		return EventTypeBits
	}
	fields := SplitSamples(payload)
	for _, f := range fields {
		if _, err := strconv.ParseFloat(f, 64); err != nil {
			return EventTypeUnknown
		}
	}
	switch {
	case len(fields) == 2 && strings.Count(payload, ",") == 1:
		return EventTypeVitals
	case len(fields) >= 3:
		return EventTypeSamples
	}
	return EventTypeUnknown
}

// SplitSamples splits a sample line on commas and whitespace.
func SplitSamples(payload string) []string {
	return strings.FieldsFunc(payload, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}
