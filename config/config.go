// Package config loads run settings from YAML or TOML files.
package config

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"slava0135/symevm/asm"
	"slava0135/symevm/logs"
)

const (
	ModeConcrete = "concrete"
	ModeSymbolic = "symbolic"
	ModeExplore  = "explore"
)

// MaxCalldataSize bounds the calldata the solver is asked to produce.
const MaxCalldataSize = 1 << 16

var ErrInvalid = errors.New("invalid config")

type Config struct {
	// Exactly one of Code (hex), CodeFile (raw bytes) and AsmFile is set.
	Code     string `yaml:"code" toml:"code"`
	CodeFile string `yaml:"code_file" toml:"code_file"`
	AsmFile  string `yaml:"asm_file" toml:"asm_file"`

	Mode string `yaml:"mode" toml:"mode"`
	// Calldata is hex. It is the input of a concrete run and the seed of a
	// symbolic one.
	Calldata     string `yaml:"calldata" toml:"calldata"`
	CalldataSize int    `yaml:"calldata_size" toml:"calldata_size"`

	Strategy      string `yaml:"strategy" toml:"strategy"`
	MaxRuns       int    `yaml:"max_runs" toml:"max_runs"`
	SolverTimeout string `yaml:"solver_timeout" toml:"solver_timeout"`
	// GasLimit enables the default cost table when nonzero.
	GasLimit uint64 `yaml:"gas_limit" toml:"gas_limit"`

	Corpus   string `yaml:"corpus" toml:"corpus"`
	Report   string `yaml:"report" toml:"report"`
	GenTests string `yaml:"gen_tests" toml:"gen_tests"`
	// CFG is a YAML file for the control flow graph of the program.
	CFG string `yaml:"cfg" toml:"cfg"`

	LogLevel string `yaml:"log_level" toml:"log_level"`
	LogJSON  string `yaml:"log_json" toml:"log_json"`

	// Dir resolves relative file names. Load sets it to the directory of
	// the config file.
	Dir string `yaml:"-" toml:"-"`
}

func Default() *Config {
	return &Config{
		Mode:          ModeExplore,
		CalldataSize:  32,
		Strategy:      "dfs",
		MaxRuns:       256,
		SolverTimeout: "10s",
		GasLimit:      1_000_000,
		LogLevel:      "info",
	}
}

// Load reads path on top of Default. The format follows the extension:
// .yaml, .yml or .toml.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, errors.Wrapf(ErrInvalid, "unknown config format '%s'", ext)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	cfg.Dir = filepath.Dir(path)
	return cfg, nil
}

func (c *Config) Validate() error {
	sources := 0
	for _, s := range []string{c.Code, c.CodeFile, c.AsmFile} {
		if s != "" {
			sources++
		}
	}
	if sources != 1 {
		return errors.Wrap(ErrInvalid, "exactly one of code, code_file and asm_file must be set")
	}
	switch c.Mode {
	case ModeConcrete, ModeSymbolic, ModeExplore:
	default:
		return errors.Wrapf(ErrInvalid, "mode '%s'", c.Mode)
	}
	switch strings.ToLower(c.Strategy) {
	case "dfs", "bfs", "random":
	default:
		return errors.Wrapf(ErrInvalid, "strategy '%s'", c.Strategy)
	}
	if c.CalldataSize < 0 || c.CalldataSize > MaxCalldataSize {
		return errors.Wrapf(ErrInvalid, "calldata_size %d out of range", c.CalldataSize)
	}
	if c.MaxRuns < 0 {
		return errors.Wrapf(ErrInvalid, "max_runs %d", c.MaxRuns)
	}
	if _, err := c.CalldataBytes(); err != nil {
		return err
	}
	if _, err := c.Timeout(); err != nil {
		return err
	}
	if _, err := logs.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(ErrInvalid, err.Error())
	}
	return nil
}

// Timeout parses SolverTimeout. An empty value means no timeout.
func (c *Config) Timeout() (time.Duration, error) {
	if c.SolverTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.SolverTimeout)
	if err != nil || d < 0 {
		return 0, errors.Wrapf(ErrInvalid, "solver_timeout '%s'", c.SolverTimeout)
	}
	return d, nil
}

func (c *Config) CalldataBytes() ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(c.Calldata, "0x"))
	if err != nil {
		return nil, errors.Wrapf(ErrInvalid, "calldata: %v", err)
	}
	return b, nil
}

// Program returns the bytecode from whichever source is set.
func (c *Config) Program() ([]byte, error) {
	switch {
	case c.Code != "":
		code, err := hex.DecodeString(strings.TrimPrefix(c.Code, "0x"))
		if err != nil {
			return nil, errors.Wrapf(ErrInvalid, "code: %v", err)
		}
		return code, nil
	case c.CodeFile != "":
		code, err := os.ReadFile(c.path(c.CodeFile))
		return code, errors.Wrap(err, "read code")
	case c.AsmFile != "":
		src, err := os.ReadFile(c.path(c.AsmFile))
		if err != nil {
			return nil, errors.Wrap(err, "read asm")
		}
		code, err := asm.Assemble(string(src))
		return code, errors.Wrapf(err, "assemble %s", c.AsmFile)
	}
	return nil, errors.Wrap(ErrInvalid, "no program")
}

func (c *Config) path(name string) string {
	if filepath.IsAbs(name) || c.Dir == "" {
		return name
	}
	return filepath.Join(c.Dir, name)
}
