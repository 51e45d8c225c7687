package app

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"gomxbeacon/internal/beacon"
	"gomxbeacon/internal/capture"
	"gomxbeacon/internal/output"
)

// Default configuration constants
const (
	DefaultInput        = "-" // stdin
	DefaultEncoding     = string(capture.EncodingAuto)
	DefaultFormat       = string(output.FormatJSON)
	DefaultLogDir       = "./beacons"
	DefaultDBPath       = "./beacons.db"
	DefaultHistoryLimit = 10
)

// Config holds application configuration
type Config struct {
	CSP          bool   `yaml:"csp"`
	CRC          bool   `yaml:"crc"`
	Input        string `yaml:"input"`
	Encoding     string `yaml:"encoding"`
	Format       string `yaml:"format"`
	LogDir       string `yaml:"log_dir"`
	LogRotateUTC bool   `yaml:"log_rotate_utc"`
	DBPath       string `yaml:"db_path"`
	HistoryLimit int    `yaml:"history_limit"`
	Verbose      bool   `yaml:"verbose"`
	ShowVersion  bool   `yaml:"-"`
}

// DefaultConfig returns the configuration used when no file or flags are given
func DefaultConfig() Config {
	return Config{
		CSP:          beacon.DefaultOptions.CSP,
		CRC:          beacon.DefaultOptions.CRC,
		Input:        DefaultInput,
		Encoding:     DefaultEncoding,
		Format:       DefaultFormat,
		LogDir:       DefaultLogDir,
		LogRotateUTC: true,
		DBPath:       DefaultDBPath,
		HistoryLimit: DefaultHistoryLimit,
	}
}

// LoadConfigFile reads a YAML file over the defaults. Keys missing from the
// file keep their default values.
func LoadConfigFile(path string) (Config, error) {
	config := DefaultConfig()

	contents, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.UnmarshalStrict(contents, &config); err != nil {
		return config, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return config, nil
}

// Validate checks enumerated settings
func (c Config) Validate() error {
	if _, err := capture.ParseEncoding(c.Encoding); err != nil {
		return err
	}
	if _, err := output.ParseFormat(c.Format); err != nil {
		return err
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("history limit must be positive, got %d", c.HistoryLimit)
	}
	return nil
}

// DecodeOptions returns the frame framing options
func (c Config) DecodeOptions() beacon.Options {
	return beacon.Options{CSP: c.CSP, CRC: c.CRC}
}
