// Package config handles tally.toml project configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file looked up by Load and FindAndLoad.
const FileName = "tally.toml"

// DefaultPort is the RPC server port used when none is configured.
const DefaultPort = 4567

// Config represents a tally.toml file.
type Config struct {
	Run     Run     `toml:"run"`
	Log     Log     `toml:"log"`
	Server  Server  `toml:"server"`
	History History `toml:"history"`

	// Dir is the directory containing the tally.toml file (set at load time).
	Dir string `toml:"-"`
}

// Run configures local evaluation.
type Run struct {
	Entry string `toml:"entry"` // source file evaluated when no path is given
	Trace bool   `toml:"trace"` // print disassembly and stack for each step
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Server configures the RPC server.
type Server struct {
	Port int `toml:"port"`
}

// History configures the evaluation log.
type History struct {
	Path string `toml:"path"`
}

// Default returns the configuration used when no tally.toml exists.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load parses the tally.toml file in the given directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile parses a configuration file at an explicit path.
// Unknown keys are rejected so typos do not pass silently.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	md, err := toml.Decode(string(data), &c)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}

	c.Dir, err = filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	c.applyDefaults()

	return &c, nil
}

// FindAndLoad walks up from startDir to find a tally.toml file,
// then loads and returns it. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
}

// Addr returns the listen address for the RPC server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// EntryPath returns the entry source path resolved against Dir, or "" if unset.
func (c *Config) EntryPath() string {
	return c.resolve(c.Run.Entry)
}

// HistoryPath returns the history database path resolved against Dir, or "" if unset.
func (c *Config) HistoryPath() string {
	return c.resolve(c.History.Path)
}

// LogFile returns the log file path resolved against Dir, or "" for stderr.
func (c *Config) LogFile() string {
	return c.resolve(c.Log.File)
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || c.Dir == "" {
		return p
	}
	return filepath.Join(c.Dir, p)
}
