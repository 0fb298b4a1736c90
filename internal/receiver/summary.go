package receiver

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/vitals.link/internal/vitals"
)

// Summary aggregates the retained history. Standard deviations are sample
// deviations and read zero until at least two frames are held.
type Summary struct {
	Frames          int     `json:"frames"`
	HeartRateMean   float64 `json:"heartRateMean"`
	HeartRateStdDev float64 `json:"heartRateStdDev"`
	SpO2Mean        float64 `json:"spO2Mean"`
	SpO2StdDev      float64 `json:"spO2StdDev"`
	SQIMean         float64 `json:"sqiMean"`
	SQIStdDev       float64 `json:"sqiStdDev"`
	SNRMean         float64 `json:"snrMean"`
	SNRStdDev       float64 `json:"snrStdDev"`
	SNRMin          float64 `json:"snrMin"`
	SNRMax          float64 `json:"snrMax"`
	Alarms          int     `json:"alarms"`
}

func (r *Receiver) Summary() Summary {
	return Summarise(r.History())
}

// Summarise computes a Summary over frames.
func Summarise(frames []Frame) Summary {
	n := len(frames)
	if n == 0 {
		return Summary{}
	}

	hr := make([]float64, n)
	spo2 := make([]float64, n)
	sqi := make([]float64, n)
	snr := make([]float64, n)
	alarms := 0
	for i, f := range frames {
		hr[i] = float64(f.Sample.HeartRate)
		spo2[i] = float64(f.Sample.SpO2)
		sqi[i] = float64(f.Metrics.SQI)
		snr[i] = f.Metrics.SNR
		if f.Alarm.Priority != vitals.PriorityNone {
			alarms++
		}
	}

	s := Summary{
		Frames: n,
		SNRMin: floats.Min(snr),
		SNRMax: floats.Max(snr),
		Alarms: alarms,
	}
	s.HeartRateMean, s.HeartRateStdDev = meanStdDev(hr)
	s.SpO2Mean, s.SpO2StdDev = meanStdDev(spo2)
	s.SQIMean, s.SQIStdDev = meanStdDev(sqi)
	s.SNRMean, s.SNRStdDev = meanStdDev(snr)
	return s
}

func meanStdDev(x []float64) (mean, std float64) {
	if len(x) < 2 {
		return stat.Mean(x, nil), 0
	}
	return stat.MeanStdDev(x, nil)
}
