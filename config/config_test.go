package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadYAML(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "explore.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ModeExplore, cfg.Mode)
	assert.Equal(t, 4, cfg.CalldataSize)
	assert.Equal(t, "bfs", cfg.Strategy)
	assert.Equal(t, 10, cfg.MaxRuns)
	assert.Equal(t, "debug", cfg.LogLevel)
	// unset fields keep their defaults
	assert.Equal(t, uint64(1_000_000), cfg.GasLimit)

	d, err := cfg.Timeout()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d)

	code, err := cfg.Program()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x60, 0x00, 0x35, 0x15, 0x61, 0x00, 0x08, 0x57, 0x5b}, code)
}

func TestLoadTOML(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "concrete.toml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ModeConcrete, cfg.Mode)
	assert.Equal(t, uint64(100), cfg.GasLimit)
	assert.Equal(t, "report.yaml", cfg.Report)
	assert.Equal(t, 32, cfg.CalldataSize)

	calldata, err := cfg.CalldataBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, calldata)

	code, err := cfg.Program()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x60, 0x02, 0x60, 0x03, 0x01}, code)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(filepath.Join("testdata", "broken.yaml"))
	assert.Error(t, err)

	_, err = Load(filepath.Join("testdata", "prog.asm"))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Code = "00"
		return cfg
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(*Config){
		"no program":       func(c *Config) { c.Code = "" },
		"two programs":     func(c *Config) { c.AsmFile = "a.asm" },
		"mode":             func(c *Config) { c.Mode = "fuzz" },
		"strategy":         func(c *Config) { c.Strategy = "astar" },
		"calldata size":    func(c *Config) { c.CalldataSize = MaxCalldataSize + 1 },
		"negative runs":    func(c *Config) { c.MaxRuns = -1 },
		"calldata hex":     func(c *Config) { c.Calldata = "zz" },
		"timeout":          func(c *Config) { c.SolverTimeout = "soon" },
		"negative timeout": func(c *Config) { c.SolverTimeout = "-1s" },
		"log level":        func(c *Config) { c.LogLevel = "loud" },
	}
	for name, mutate := range cases {
		cfg := valid()
		mutate(cfg)
		assert.ErrorIs(t, cfg.Validate(), ErrInvalid, name)
	}
}

func TestEmptyTimeout(t *testing.T) {
	cfg := Default()
	cfg.SolverTimeout = ""
	d, err := cfg.Timeout()
	require.NoError(t, err)
	assert.Zero(t, d)
}
