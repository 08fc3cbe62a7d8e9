// Package config handles configuration loading and validation for the
// ximclient demo binary.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"ximclient/internal/logging"
)

// Config holds the demo client configuration.
type Config struct {
	// Display is the X display string. Empty uses $DISPLAY.
	Display string `toml:"display"`

	// Screen is the screen number the input method binds to.
	Screen int `toml:"screen"`

	// InputMethod selects the input-method server (XMODIFIERS syntax, e.g.
	// "fcitx" or "ibus"). Empty uses the server default.
	InputMethod string `toml:"input_method"`

	// Logging configuration.
	Logging logging.Config `toml:"logging"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Display: os.Getenv("DISPLAY"),
		Logging: logging.DefaultConfig(),
	}
}

// Load reads a TOML configuration file, layered over the defaults. A
// missing file is not an error; the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("unknown config keys in %s: %v", path, undecoded)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Screen < 0 {
		return fmt.Errorf("screen must be non-negative, got %d", c.Screen)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	return nil
}
