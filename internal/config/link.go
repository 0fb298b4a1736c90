package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/vitals.link/internal/nrz"
	"github.com/banshee-data/vitals.link/internal/serialmux"
	"github.com/banshee-data/vitals.link/internal/vitals"
)

// DefaultConfigPath is where the link binary looks for its config when no
// -config flag is given.
const DefaultConfigPath = "config/link.json"

// maxFileSize caps config files at 1MB.
const maxFileSize = 1 * 1024 * 1024

// LinkConfig represents the link's configuration file. Every field is
// optional; the Get* methods supply defaults for anything omitted so partial
// configs are safe.
type LinkConfig struct {
	// Demodulator
	Threshold *float64 `json:"threshold,omitempty"`
	BitRate   *int     `json:"bit_rate,omitempty"`

	// Serial port
	SerialPort *string                `json:"serial_port,omitempty"`
	Serial     *serialmux.PortOptions `json:"serial,omitempty"`

	// Receiver
	HistorySize  *int    `json:"history_size,omitempty"`
	NoiseSeed    *uint64 `json:"noise_seed,omitempty"`
	COPDMode     *bool   `json:"copd_mode,omitempty"`
	GOLDStage    *int    `json:"gold_stage,omitempty"`
	MockInterval *string `json:"mock_interval,omitempty"` // duration string like "1s"

	// Storage and HTTP
	DBPath *string `json:"db_path,omitempty"`
	Listen *string `json:"listen,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrString(v string) *string    { return &v }
func ptrBool(v bool) *bool          { return &v }

// EmptyLinkConfig returns a LinkConfig with all fields unset.
func EmptyLinkConfig() *LinkConfig {
	return &LinkConfig{}
}

// LoadLinkConfig loads a LinkConfig from a JSON file. The file must have a
// .json extension and be under 1MB.
func LoadLinkConfig(path string) (*LinkConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyLinkConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *LinkConfig) Validate() error {
	if c.Threshold != nil && *c.Threshold <= 0 {
		return fmt.Errorf("threshold must be positive, got %f", *c.Threshold)
	}
	if c.BitRate != nil && *c.BitRate <= 0 {
		return fmt.Errorf("bit_rate must be positive, got %d", *c.BitRate)
	}
	if c.Serial != nil {
		if _, err := c.Serial.Normalise(); err != nil {
			return fmt.Errorf("serial: %w", err)
		}
	}
	if c.HistorySize != nil && *c.HistorySize < 1 {
		return fmt.Errorf("history_size must be at least 1, got %d", *c.HistorySize)
	}
	if c.GOLDStage != nil && (*c.GOLDStage < 1 || *c.GOLDStage > 4) {
		return fmt.Errorf("gold_stage must be between 1 and 4, got %d", *c.GOLDStage)
	}
	if c.MockInterval != nil && *c.MockInterval != "" {
		d, err := time.ParseDuration(*c.MockInterval)
		if err != nil {
			return fmt.Errorf("invalid mock_interval '%s': %w", *c.MockInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("mock_interval must be positive, got %s", d)
		}
	}
	return nil
}

// DecoderConfig returns the demodulator configuration.
func (c *LinkConfig) DecoderConfig() nrz.DecoderConfig {
	cfg := nrz.DefaultDecoderConfig()
	if c.Threshold != nil {
		cfg.Threshold = *c.Threshold
	}
	if c.BitRate != nil {
		cfg.BitRate = *c.BitRate
	}
	return cfg
}

// GetSerialPort returns the serial device path or the default.
func (c *LinkConfig) GetSerialPort() string {
	if c.SerialPort == nil || *c.SerialPort == "" {
		return "/dev/ttyUSB0"
	}
	return *c.SerialPort
}

// GetSerialOptions returns the serial options, defaulting to 115200 8N1.
func (c *LinkConfig) GetSerialOptions() serialmux.PortOptions {
	if c.Serial == nil {
		return serialmux.DefaultPortOptions()
	}
	opts, err := c.Serial.Normalise()
	if err != nil {
		return serialmux.DefaultPortOptions()
	}
	return opts
}

// GetHistorySize returns the number of frames the receiver keeps.
func (c *LinkConfig) GetHistorySize() int {
	if c.HistorySize == nil {
		return 256
	}
	return *c.HistorySize
}

// GetNoiseSeed returns the configured noise seed and whether one was set.
func (c *LinkConfig) GetNoiseSeed() (uint64, bool) {
	if c.NoiseSeed == nil {
		return 0, false
	}
	return *c.NoiseSeed, true
}

// AlarmProfile returns the alarm thresholds profile.
func (c *LinkConfig) AlarmProfile() vitals.AlarmProfile {
	p := vitals.AlarmProfile{GOLDStage: 2}
	if c.COPDMode != nil {
		p.COPD = *c.COPDMode
	}
	if c.GOLDStage != nil {
		p.GOLDStage = *c.GOLDStage
	}
	return p
}

// GetMockInterval returns how often dev mode emits a simulated reading.
func (c *LinkConfig) GetMockInterval() time.Duration {
	if c.MockInterval == nil || *c.MockInterval == "" {
		return time.Second
	}
	d, err := time.ParseDuration(*c.MockInterval)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// GetDBPath returns the sqlite database path or the default.
func (c *LinkConfig) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return "vitals_link.db"
	}
	return *c.DBPath
}

// GetListen returns the HTTP listen address or the default.
func (c *LinkConfig) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return ":8080"
	}
	return *c.Listen
}
