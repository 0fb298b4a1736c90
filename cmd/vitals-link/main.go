package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/vitals.link/internal/api"
	"github.com/banshee-data/vitals.link/internal/config"
	"github.com/banshee-data/vitals.link/internal/db"
	"github.com/banshee-data/vitals.link/internal/nrz"
	"github.com/banshee-data/vitals.link/internal/receiver"
	"github.com/banshee-data/vitals.link/internal/serialmux"
	"github.com/banshee-data/vitals.link/internal/udplink"
	"github.com/banshee-data/vitals.link/internal/version"
	"github.com/banshee-data/vitals.link/internal/vitals"
)

var (
	configFile    = flag.String("config", "", "Path to link config JSON (defaults to "+config.DefaultConfigPath+" when present)")
	port          = flag.String("port", "", "Serial port to use (ignored in dev mode)")
	devMode       = flag.Bool("dev", false, "Feed the receiver simulated readings instead of a serial port")
	disableSerial = flag.Bool("disable-serial", false, "Run without a transmitter; only the HTTP API and encode tooling work")
	udpListen     = flag.String("udp", "", "Receive transmitter lines over UDP on this address instead of a serial port (e.g. :5555)")
	listen        = flag.String("listen", "", "HTTP listen address")
	dbPath        = flag.String("db", "", "Path to the sqlite readings database")
	noDB          = flag.Bool("no-db", false, "Do not store readings")
	seed          = flag.Uint64("seed", 0, "Seed for the noise model and simulator (0 picks a random seed)")
	listPorts     = flag.Bool("list-ports", false, "List serial ports and exit")
	showVersion   = flag.Bool("version", false, "Print version and exit")
)

func loadConfig() (*config.LinkConfig, error) {
	path := *configFile
	if path == "" {
		if _, err := os.Stat(config.DefaultConfigPath); err != nil {
			return config.EmptyLinkConfig(), nil
		}
		path = config.DefaultConfigPath
	}
	cfg, err := config.LoadLinkConfig(path)
	if err != nil {
		return nil, err
	}
	log.Printf("loaded config from %s", path)
	return cfg, nil
}

// applyFlags overrides config values with any flags set on the command line.
func applyFlags(cfg *config.LinkConfig) {
	if *port != "" {
		cfg.SerialPort = port
	}
	if *listen != "" {
		cfg.Listen = listen
	}
	if *dbPath != "" {
		cfg.DBPath = dbPath
	}
	if *seed != 0 {
		cfg.NoiseSeed = seed
	}
}

func openSerial(cfg *config.LinkConfig, ports serialmux.SerialPortFactory) (serialmux.SerialMuxInterface, error) {
	switch {
	case *disableSerial:
		return serialmux.NewDisabledSerialMux(), nil
	case *udpListen != "":
		m, err := udplink.NewUDPSerialMux(*udpListen)
		if err != nil {
			return nil, err
		}
		return m, nil
	case *devMode:
		s, _ := cfg.GetNoiseSeed()
		if s == 0 {
			s = uint64(time.Now().UnixNano())
		}
		sim := vitals.NewSimulator(s)
		next := func() string { return strings.TrimSpace(sim.Next().Payload()) }
		return serialmux.NewMockSerialMux(next, cfg.GetMockInterval()), nil
	default:
		m, err := serialmux.OpenSerialMux(ports, cfg.GetSerialPort(), cfg.GetSerialOptions())
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}

func newAnalyzer(cfg *config.LinkConfig) *nrz.Analyzer {
	if s, ok := cfg.GetNoiseSeed(); ok {
		return nrz.NewAnalyzer(nrz.NewUniformNoise(s))
	}
	return nrz.NewAnalyzer(nil)
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *listPorts {
		ports, err := serialmux.ListPorts()
		if err != nil {
			log.Fatalf("failed to list serial ports: %v", err)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	applyFlags(cfg)

	linkSerial, err := openSerial(cfg, serialmux.RealSerialPortFactory{})
	if err != nil {
		log.Fatalf("failed to open transmitter link: %v", err)
	}
	defer linkSerial.Close()

	if err := linkSerial.Initialise(); err != nil {
		log.Fatalf("failed to initialise transmitter: %v", err)
	}
	log.Printf("initialised transmitter link (%s)", cfg.GetSerialOptions())

	var store *db.DB
	if !*noDB {
		store, err = db.NewDB(cfg.GetDBPath())
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer store.Close()
	}

	analyzer := newAnalyzer(cfg)
	rxOpts := receiver.Options{
		Decoder:     nrz.NewDecoder(cfg.DecoderConfig()),
		Analyzer:    analyzer,
		Profile:     cfg.AlarmProfile(),
		HistorySize: cfg.GetHistorySize(),
	}
	apiOpts := api.Options{
		Analyzer: analyzer,
		Profile:  cfg.AlarmProfile(),
	}
	if store != nil {
		rxOpts.Recorder = store
		apiOpts.Store = store
	}
	rx := receiver.New(linkSerial, rxOpts)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// serial monitor routine
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := linkSerial.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("failed to monitor serial port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	// receiver routine
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := rx.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("receiver stopped: %v", err)
		}
		log.Print("receiver routine terminated")
	}()

	// HTTP server routine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(linkSerial, rx, apiOpts).ServeMux()
		linkSerial.AttachAdminRoutes(mux)
		if store != nil {
			if err := store.AttachAdminRoutes(mux); err != nil {
				log.Printf("failed to attach database admin routes: %v", err)
			}
		}

		server := &http.Server{
			Addr:    cfg.GetListen(),
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("listening on %s", server.Addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}
		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("graceful shutdown complete")
}
