package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/thvl3/stegolab/pkg/report"
	"github.com/thvl3/stegolab/pkg/stegerr"
)

/*
config.go holds the settings shared by the CLI commands and the batch runner.
Default returns the built-in values; Load overlays a YAML file on top of them and validates
the result. Command-line flags override whatever the config file sets.
*/

// Config is the root of the configuration file
type Config struct {
	Log        LogConfig         `yaml:"log"`
	Codecs     CodecConfig       `yaml:"codecs"`
	Detectors  DetectorConfig    `yaml:"detectors"`
	Thresholds report.Thresholds `yaml:"thresholds"`
	Batch      BatchConfig       `yaml:"batch"`
}

// LogConfig controls the zerolog output
type LogConfig struct {
	Level  string `yaml:"level"`  // trace, debug, info, warn, error
	Format string `yaml:"format"` // console or json
}

// CodecConfig holds defaults for codec parameters not given on the command line
type CodecConfig struct {
	BitPlane BitPlaneConfig `yaml:"bitplane"`
	CDB      CDBConfig      `yaml:"cdb"`
}

// BitPlaneConfig selects the plane the bit-plane codec writes by default
type BitPlaneConfig struct {
	Plane int `yaml:"plane"`
}

// CDBConfig holds the watermark strength, predictor window and site seed
type CDBConfig struct {
	Coeff float64 `yaml:"coeff"`
	Range int     `yaml:"range"`
	Seed  int64   `yaml:"seed"`
}

// DetectorConfig tunes the detectors
type DetectorConfig struct {
	BlockSize int `yaml:"blockSize"` // chi-square block side
	AUMPM     int `yaml:"aumpM"`     // AUMP block length
	AUMPD     int `yaml:"aumpD"`     // AUMP polynomial degree
}

// BatchConfig controls directory and URL-list analysis
type BatchConfig struct {
	Workers     int    `yaml:"workers"`
	Recursive   bool   `yaml:"recursive"`
	MetricsFile string `yaml:"metricsFile"`
}

// Default returns the default configuration
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Codecs: CodecConfig{
			BitPlane: BitPlaneConfig{Plane: 0},
			CDB: CDBConfig{
				Coeff: 0.9,
				Range: 3,
				Seed:  0xAAAA,
			},
		},
		Detectors: DetectorConfig{
			BlockSize: 16,
			AUMPM:     8,
			AUMPD:     1,
		},
		Thresholds: report.DefaultThresholds(),
		Batch: BatchConfig{
			Workers: 4,
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every section and reports all problems at once
func (c Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q must be console or json", c.Log.Format))
	}
	if c.Codecs.BitPlane.Plane < 0 || c.Codecs.BitPlane.Plane > 7 {
		errs = append(errs, fmt.Errorf("codecs.bitplane.plane %d outside 0..7", c.Codecs.BitPlane.Plane))
	}
	if c.Codecs.CDB.Coeff <= 0 {
		errs = append(errs, fmt.Errorf("codecs.cdb.coeff %v must be positive", c.Codecs.CDB.Coeff))
	}
	if c.Codecs.CDB.Range < 1 {
		errs = append(errs, fmt.Errorf("codecs.cdb.range %d must be at least 1", c.Codecs.CDB.Range))
	}
	if c.Detectors.BlockSize < 1 {
		errs = append(errs, fmt.Errorf("detectors.blockSize %d must be positive", c.Detectors.BlockSize))
	}
	if c.Detectors.AUMPD < 0 || c.Detectors.AUMPM <= c.Detectors.AUMPD+1 {
		errs = append(errs, fmt.Errorf("detectors.aumpM %d must exceed aumpD+1 (aumpD %d)", c.Detectors.AUMPM, c.Detectors.AUMPD))
	}
	if c.Batch.Workers < 1 {
		errs = append(errs, fmt.Errorf("batch.workers %d must be at least 1", c.Batch.Workers))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", stegerr.ErrInvalidParams, errors.Join(errs...))
}
