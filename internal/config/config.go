// Package config loads the carhack configuration file. TOML and YAML are
// both accepted; the file extension selects the decoder.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"carhack/internal/canusb"
	"carhack/internal/sink"
	"carhack/internal/vehicle"
)

// Config is the full runtime configuration.
type Config struct {
	Vehicle string `toml:"vehicle" yaml:"vehicle"`
	Format  string `toml:"format" yaml:"format"`
	Log     Log    `toml:"log" yaml:"log"`
	Topics  Topics `toml:"topics" yaml:"topics"`
	CANUSB  CANUSB `toml:"canusb" yaml:"canusb"`
}

// Log configures the process logger.
type Log struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

// Topics names the raw-frame topics on the bus: "<source>.<bus>.<id>".
type Topics struct {
	Source string `toml:"source" yaml:"source"`
	Bus    string `toml:"bus" yaml:"bus"`
}

// CANUSB configures the serial adapter.
type CANUSB struct {
	Port    string             `toml:"port" yaml:"port"`
	Bitrate int                `toml:"bitrate" yaml:"bitrate"`
	Serial  canusb.PortOptions `toml:"serial" yaml:"serial"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Vehicle: "nissan_370z",
		Format:  sink.FormatText,
		Log:     Log{Level: "info", Format: "console"},
		Topics:  Topics{Source: "canusb", Bus: "can"},
		CANUSB: CANUSB{
			Port:    "/dev/ttyUSB0",
			Bitrate: int(canusb.DefaultBitrate),
		},
	}
}

// Load reads path over the defaults. ${VAR} references are expanded from
// the environment before decoding.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config file not found: %s", path)
		}
		return Config{}, fmt.Errorf("cannot read config file %q: %w", path, err)
	}
	expanded := os.ExpandEnv(string(data))

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return Config{}, fmt.Errorf("invalid TOML in %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return Config{}, fmt.Errorf("invalid YAML in %s: %w", path, err)
		}
	default:
		return Config{}, fmt.Errorf("unsupported config extension %q: use .toml, .yaml or .yml", ext)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every field that can be checked without hardware.
func (c Config) Validate() error {
	if _, err := vehicle.Registry(c.Vehicle); err != nil {
		return err
	}
	if _, err := sink.New(c.Format, nil); err != nil {
		return err
	}
	if strings.TrimSpace(c.Topics.Source) == "" || strings.TrimSpace(c.Topics.Bus) == "" {
		return fmt.Errorf("topics source and bus must be set")
	}
	if _, err := canusb.Bitrate(c.CANUSB.Bitrate).Command(); err != nil {
		return fmt.Errorf("canusb: %w", err)
	}
	if _, err := c.CANUSB.Serial.Normalize(); err != nil {
		return fmt.Errorf("canusb serial: %w", err)
	}
	return nil
}
