// Command pcap-replay decodes vitals lines from a pcap capture of UDP
// transmitter traffic and optionally stores them.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/vitals.link/internal/db"
	"github.com/banshee-data/vitals.link/internal/nrz"
	"github.com/banshee-data/vitals.link/internal/receiver"
	"github.com/banshee-data/vitals.link/internal/serialmux"
	"github.com/banshee-data/vitals.link/internal/udplink"
	"github.com/banshee-data/vitals.link/internal/vitals"
)

var (
	pcapFile = flag.String("pcap", "", "Path to a pcap capture (required)")
	udpPort  = flag.Int("udp-port", 5555, "Destination UDP port to replay (0 for any)")
	dbPath   = flag.String("db", "", "Store decoded readings in this sqlite database")
	seed     = flag.Uint64("seed", 1, "Noise floor seed")
	copd     = flag.Bool("copd", false, "Use COPD alarm targets")
	quiet    = flag.Bool("quiet", false, "Only print the summary")
)

func main() {
	flag.Parse()
	if *pcapFile == "" {
		log.Fatal("-pcap is required")
	}

	f, err := os.Open(*pcapFile)
	if err != nil {
		log.Fatalf("failed to open pcap file: %v", err)
	}
	defer f.Close()

	opts := receiver.Options{
		Analyzer:    nrz.NewAnalyzer(nrz.NewUniformNoise(*seed)),
		Profile:     vitals.AlarmProfile{COPD: *copd, GOLDStage: 2},
		HistorySize: 1 << 16,
	}
	if *dbPath != "" {
		store, err := db.NewDB(*dbPath)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer store.Close()
		opts.Recorder = store
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var out io.Writer = os.Stdout
	if *quiet {
		out = io.Discard
	}
	rx, stats, err := replay(ctx, f, *udpPort, opts, out)
	if err != nil {
		log.Fatalf("replay failed: %v", err)
	}

	sum := rx.Summary()
	fmt.Printf("packets=%d lines=%d errors=%d frames=%d alarms=%d\n",
		stats.Packets, stats.Lines, stats.Errors, sum.Frames, sum.Alarms)
	fmt.Printf("HR %.1f±%.1f  SpO2 %.1f±%.1f  SQI %.1f  SNR %.1f dB [%.1f, %.1f]\n",
		sum.HeartRateMean, sum.HeartRateStdDev, sum.SpO2Mean, sum.SpO2StdDev,
		sum.SQIMean, sum.SNRMean, sum.SNRMin, sum.SNRMax)
}

// replay feeds every captured line through a receiver and prints one row per
// decoded frame.
func replay(ctx context.Context, r io.Reader, port int, opts receiver.Options, out io.Writer) (*receiver.Receiver, udplink.ReplayStats, error) {
	rx := receiver.New(serialmux.NewDisabledSerialMux(), opts)
	stats, err := udplink.ReplayPCAP(ctx, r, port, func(at time.Time, line string) error {
		f, err := rx.HandleLineAt(line, at)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s hr=%d spo2=%d sqi=%d snr=%.1f alarm=%s\n",
			at.UTC().Format(time.RFC3339Nano), f.Sample.HeartRate, f.Sample.SpO2,
			f.Metrics.SQI, f.Metrics.SNR, f.Alarm.Priority)
		return nil
	})
	return rx, stats, err
}
