// Command nrz-gen prints the NRZ packet bitstream for one vitals reading
// along with its link-quality metrics, and can draw the waveform.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/vitals.link/internal/nrz"
	"github.com/banshee-data/vitals.link/internal/visualiser"
	"github.com/banshee-data/vitals.link/internal/vitals"
)

var (
	heartRate = flag.Int("hr", 72, "Heart rate in bpm")
	spO2      = flag.Int("spo2", 98, "SpO2 in percent (clamped to 100)")
	seed      = flag.Uint64("seed", 0, "Noise floor seed (0 picks a random seed)")
	pngPath   = flag.String("png", "", "Write the waveform as a PNG to this path")
	htmlPath  = flag.String("html", "", "Write an interactive waveform chart to this path")
	decode    = flag.String("decode", "", "Decode a '0'/'1' bitstream instead of encoding")
)

func main() {
	flag.Parse()

	var noise nrz.NoiseSource
	if *seed != 0 {
		noise = nrz.NewUniformNoise(*seed)
	}
	analyzer := nrz.NewAnalyzer(noise)

	if *decode != "" {
		if err := runDecode(os.Stdout, *decode, analyzer); err != nil {
			log.Fatal(err)
		}
		return
	}

	tr, title := runEncode(os.Stdout, vitals.Sample{HeartRate: *heartRate, SpO2: *spO2}, analyzer)

	if *pngPath != "" {
		if err := visualiser.RenderPNG(*pngPath, tr, title); err != nil {
			log.Fatalf("failed to write png: %v", err)
		}
		log.Printf("wrote %s", *pngPath)
	}
	if *htmlPath != "" {
		f, err := os.Create(*htmlPath)
		if err != nil {
			log.Fatalf("failed to create %s: %v", *htmlPath, err)
		}
		if err := visualiser.RenderHTML(f, tr, title); err != nil {
			f.Close()
			log.Fatalf("failed to write html: %v", err)
		}
		if err := f.Close(); err != nil {
			log.Fatalf("failed to close %s: %v", *htmlPath, err)
		}
		log.Printf("wrote %s", *htmlPath)
	}
}

func runEncode(w io.Writer, s vitals.Sample, analyzer *nrz.Analyzer) (visualiser.Trace, string) {
	s = s.Clamped()
	bits := nrz.GeneratePacketBitstream(s.HeartRate, s.SpO2)
	m := analyzer.CalculateMetrics(bits)
	tr := visualiser.NewTrace(bits, m)

	fmt.Fprintf(w, "payload:   %q\n", s.Payload())
	fmt.Fprintf(w, "bits:      %d\n", len(bits))
	fmt.Fprintf(w, "bitstream: %s\n", bits)
	fmt.Fprintf(w, "SQI:       %d\n", m.SQI)
	fmt.Fprintf(w, "SNR:       %s dB\n", tr.SNR)
	return tr, fmt.Sprintf("HR %d SpO2 %d", s.HeartRate, s.SpO2)
}

func runDecode(w io.Writer, input string, analyzer *nrz.Analyzer) error {
	bits, err := nrz.ParseBitstream(input)
	if err != nil {
		return err
	}
	m := analyzer.CalculateMetrics(bits)
	fmt.Fprintf(w, "bits:      %d\n", len(bits))
	fmt.Fprintf(w, "SQI:       %d\n", m.SQI)
	fmt.Fprintf(w, "SNR:       %s dB\n", visualiser.SNR(m.SNR))

	if payload, err := nrz.UnframePacket(bits); err == nil {
		fmt.Fprintf(w, "payload:   %q\n", payload)
	} else {
		fmt.Fprintf(w, "framing:   %v\n", err)
	}
	if s, ok := nrz.ParsePacket(bits); ok {
		fmt.Fprintf(w, "raw:       hr=%d spo2=%d\n", s.HeartRate, s.SpO2)
	}
	return nil
}
