package main

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// config holds the settings irrq reads from its TOML configuration file.
// Command line flags override any value set here.
type config struct {
	Server        string   `toml:"server"`
	ClientID      string   `toml:"client-id"`
	Sources       []string `toml:"sources"`
	ServerTimeout duration `toml:"server-timeout"`
	DialTimeout   duration `toml:"dial-timeout"`
}

// duration makes time.Duration values readable from TOML as strings like
// "30s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func loadConfig(path string) (*config, error) {
	cfg := &config{}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := toml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}
