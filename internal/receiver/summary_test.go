package receiver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/vitals.link/internal/nrz"
	"github.com/banshee-data/vitals.link/internal/vitals"
)

func frameWith(hr, spo2, sqi int, snr float64, p vitals.Priority) Frame {
	return Frame{
		Sample:  vitals.Sample{HeartRate: hr, SpO2: spo2},
		Metrics: nrz.QualityMetrics{SQI: sqi, SNR: snr},
		Alarm:   vitals.Alarm{Priority: p},
	}
}

func TestSummarise(t *testing.T) {
	t.Parallel()

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, Summary{}, Summarise(nil))
	})

	t.Run("single frame has zero deviation", func(t *testing.T) {
		t.Parallel()
		s := Summarise([]Frame{frameWith(72, 98, 100, 21.4, vitals.PriorityNone)})
		assert.Equal(t, 1, s.Frames)
		assert.Equal(t, 72.0, s.HeartRateMean)
		assert.Zero(t, s.HeartRateStdDev)
		assert.Equal(t, 21.4, s.SNRMin)
		assert.Equal(t, 21.4, s.SNRMax)
		assert.Zero(t, s.Alarms)
	})

	t.Run("several frames", func(t *testing.T) {
		t.Parallel()
		s := Summarise([]Frame{
			frameWith(60, 96, 40, 8.0, vitals.PriorityNone),
			frameWith(70, 97, 70, 16.0, vitals.PriorityMedium),
			frameWith(80, 98, 100, 24.0, vitals.PriorityHigh),
		})
		assert.Equal(t, 3, s.Frames)
		assert.InDelta(t, 70.0, s.HeartRateMean, 1e-9)
		assert.InDelta(t, 10.0, s.HeartRateStdDev, 1e-9)
		assert.InDelta(t, 97.0, s.SpO2Mean, 1e-9)
		assert.InDelta(t, 1.0, s.SpO2StdDev, 1e-9)
		assert.InDelta(t, 70.0, s.SQIMean, 1e-9)
		assert.InDelta(t, 30.0, s.SQIStdDev, 1e-9)
		assert.InDelta(t, 16.0, s.SNRMean, 1e-9)
		assert.InDelta(t, 8.0, s.SNRStdDev, 1e-9)
		assert.Equal(t, 8.0, s.SNRMin)
		assert.Equal(t, 24.0, s.SNRMax)
		assert.Equal(t, 2, s.Alarms)
	})
}
