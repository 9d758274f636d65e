// Package config loads anatase's optional TOML sidecar file, grounded in
// lookbusy1344-arm_emulator/config/config.go's DefaultConfig/Load/LoadFrom
// shape: a struct-of-structs decoded with github.com/BurntSushi/toml,
// defaults filled in before decode so a partial file only overrides what it
// names, and a missing file silently yielding the defaults rather than an
// error.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the tunables spec.md leaves to "VM construction" (register
// stack capacity) and the watch facility (which registers to poll, and how
// often).
type Config struct {
	VM struct {
		StackCapacity int `toml:"stack_capacity"`
	} `toml:"vm"`

	Watch struct {
		Registers []int  `toml:"registers"`
		Period    string `toml:"period"`
	} `toml:"watch"`
}

// DefaultConfig returns the built-in defaults that apply when no
// anatase.toml is present, or when a present file omits a field.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.VM.StackCapacity = 0 // 0 selects vm.DefaultStackCapacity
	cfg.Watch.Registers = nil
	cfg.Watch.Period = "200ms"
	return cfg
}

// Load reads "anatase.toml" from the current directory. A missing file is
// not an error — DefaultConfig() is returned verbatim.
func Load() (*Config, error) {
	return LoadFrom("anatase.toml")
}

// LoadFrom reads the named TOML file, overlaying it onto the defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// WatchPeriod parses the configured watch period, falling back to the
// default cadence if the configured string is empty or malformed.
func (c *Config) WatchPeriod() time.Duration {
	if c.Watch.Period == "" {
		return 200 * time.Millisecond
	}
	d, err := time.ParseDuration(c.Watch.Period)
	if err != nil {
		return 200 * time.Millisecond
	}
	return d
}

// WatchRegisters converts the configured register indices to the byte slice
// vm.Interpreter.Watch expects, silently dropping any index outside the
// valid 0-255 register range instead of erroring.
func (c *Config) WatchRegisters() []byte {
	out := make([]byte, 0, len(c.Watch.Registers))
	for _, r := range c.Watch.Registers {
		if r >= 0 && r <= 255 {
			out = append(out, byte(r))
		}
	}
	return out
}
