package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/vitals.link/internal/config"
	"github.com/banshee-data/vitals.link/internal/serialmux"
)

func TestFlagDefaults(t *testing.T) {
	assert.Equal(t, "", *configFile)
	assert.Equal(t, "", *port)
	assert.False(t, *devMode)
	assert.False(t, *disableSerial)
	assert.False(t, *noDB)
	assert.Zero(t, *seed)
}

func TestApplyFlags(t *testing.T) {
	oldPort, oldListen, oldDB, oldSeed := *port, *listen, *dbPath, *seed
	t.Cleanup(func() { *port, *listen, *dbPath, *seed = oldPort, oldListen, oldDB, oldSeed })

	cfg := config.EmptyLinkConfig()
	applyFlags(cfg)
	assert.Equal(t, "/dev/ttyUSB0", cfg.GetSerialPort())
	assert.Equal(t, ":8080", cfg.GetListen())
	_, ok := cfg.GetNoiseSeed()
	assert.False(t, ok)

	*port, *listen, *dbPath, *seed = "/dev/ttyACM0", ":9090", "other.db", 42
	applyFlags(cfg)
	assert.Equal(t, "/dev/ttyACM0", cfg.GetSerialPort())
	assert.Equal(t, ":9090", cfg.GetListen())
	assert.Equal(t, "other.db", cfg.GetDBPath())
	s, ok := cfg.GetNoiseSeed()
	assert.True(t, ok)
	assert.Equal(t, uint64(42), s)
}

func TestLoadConfigExplicitPath(t *testing.T) {
	old := *configFile
	t.Cleanup(func() { *configFile = old })

	path := filepath.Join(t.TempDir(), "link.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"listen": ":7070", "history_size": 8}`), 0o644))
	*configFile = path

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.GetListen())
	assert.Equal(t, 8, cfg.GetHistorySize())

	*configFile = filepath.Join(t.TempDir(), "missing.json")
	_, err = loadConfig()
	assert.Error(t, err)
}

func TestOpenSerialDisabled(t *testing.T) {
	old := *disableSerial
	t.Cleanup(func() { *disableSerial = old })
	*disableSerial = true

	m, err := openSerial(config.EmptyLinkConfig(), serialmux.NewMockSerialPortFactory(nil))
	require.NoError(t, err)
	defer m.Close()
	assert.IsType(t, &serialmux.DisabledSerialMux{}, m)
}

func TestOpenSerialUDP(t *testing.T) {
	old := *udpListen
	t.Cleanup(func() { *udpListen = old })
	*udpListen = "127.0.0.1:0"

	m, err := openSerial(config.EmptyLinkConfig(), serialmux.NewMockSerialPortFactory(nil))
	require.NoError(t, err)
	defer m.Close()
	require.NoError(t, m.Initialise())
}

func TestOpenSerialUsesFactory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "link.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"serial_port": "/dev/ttyACM3", "serial": {"baud_rate": 9600}}`), 0o644))
	cfg, err := config.LoadLinkConfig(path)
	require.NoError(t, err)

	port := serialmux.NewTestableSerialPort()
	ports := serialmux.NewMockSerialPortFactory(port)
	m, err := openSerial(cfg, ports)
	require.NoError(t, err)
	defer m.Close()

	require.Len(t, ports.OpenCalls, 1)
	assert.Equal(t, "/dev/ttyACM3", ports.OpenCalls[0].Path)
	assert.Equal(t, 9600, ports.OpenCalls[0].Opts.BaudRate)
	assert.Equal(t, "9600 8N1", ports.OpenCalls[0].Opts.String())

	require.NoError(t, m.Initialise())
	assert.Equal(t, "\n", port.Written())
}

func TestOpenSerialFactoryError(t *testing.T) {
	ports := serialmux.NewMockSerialPortFactory(nil)
	ports.Error = errors.New("no such device")

	m, err := openSerial(config.EmptyLinkConfig(), ports)
	assert.Nil(t, m)
	assert.ErrorContains(t, err, "no such device")
	require.Len(t, ports.OpenCalls, 1)
	assert.Equal(t, "/dev/ttyUSB0", ports.OpenCalls[0].Path)
}
