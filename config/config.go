// Package config loads the YAML configuration of the tiercache tools and
// maps it onto cache, codec and pressure options.
//
// Example:
//
//	tiers:
//	  images:  {count_limit: 100, cost_limit: 52428800}
//	  data:    {count_limit: 200, cost_limit: 104857600}
//	  objects: {count_limit: 50}
//	load_timeout: 10s
//	default_ttl: 0s
//	log_level: info
//	bundle: ./Resources
//	pressure:
//	  enabled: true
//	  threshold_percent: 90
//	  interval: 5s
//	codec:
//	  schema_version: 1
//	  compress_threshold: 4096
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-kit/log"
	"gopkg.in/yaml.v3"

	"github.com/IvanBrykalov/tiercache/cache"
	"github.com/IvanBrykalov/tiercache/codec"
	"github.com/IvanBrykalov/tiercache/internal/logging"
	"github.com/IvanBrykalov/tiercache/pressure"
)

// Tiers holds the limits of the three tiers.
type Tiers struct {
	Images  cache.TierLimits `yaml:"images"`
	Data    cache.TierLimits `yaml:"data"`
	Objects cache.TierLimits `yaml:"objects"`
}

// Pressure configures the memory watcher.
type Pressure struct {
	Enabled          bool          `yaml:"enabled"`
	ThresholdPercent float64       `yaml:"threshold_percent"`
	Interval         time.Duration `yaml:"interval"`
}

// Codec configures the structured value codec.
type Codec struct {
	SchemaVersion     uint16 `yaml:"schema_version"`
	CompressThreshold int    `yaml:"compress_threshold"`
}

// Config is the root of the configuration file.
type Config struct {
	Tiers       Tiers         `yaml:"tiers"`
	LoadTimeout time.Duration `yaml:"load_timeout"`
	DefaultTTL  time.Duration `yaml:"default_ttl"`
	LogLevel    string        `yaml:"log_level"`
	Bundle      string        `yaml:"bundle"`
	Pressure    Pressure      `yaml:"pressure"`
	Codec       Codec         `yaml:"codec"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Tiers: Tiers{
			Images:  cache.DefaultImageLimits,
			Data:    cache.DefaultDataLimits,
			Objects: cache.DefaultObjectLimits,
		},
		LogLevel: "info",
		Pressure: Pressure{
			Enabled:          true,
			ThresholdPercent: pressure.DefaultThreshold,
			Interval:         pressure.DefaultInterval,
		},
		Codec: Codec{
			SchemaVersion:     1,
			CompressThreshold: codec.DefaultCompressThreshold,
		},
	}
}

// Load reads path over Default. An empty path returns Default.
// Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "config: open %s", path)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, errors.Wrapf(err, "config: decode %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrapf(err, "config: %s", path)
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	for name, l := range map[string]cache.TierLimits{
		"images": c.Tiers.Images, "data": c.Tiers.Data, "objects": c.Tiers.Objects,
	} {
		if l.CountLimit < 0 || l.CostLimit < 0 {
			return errors.Newf("tiers.%s: limits must not be negative", name)
		}
		if l.CountLimit == 0 && l.CostLimit != 0 {
			return errors.Newf("tiers.%s: count_limit is required when cost_limit is set", name)
		}
	}
	if c.LoadTimeout < 0 || c.DefaultTTL < 0 {
		return errors.New("load_timeout and default_ttl must not be negative")
	}
	if c.Pressure.ThresholdPercent <= 0 || c.Pressure.ThresholdPercent > 100 {
		return errors.Newf("pressure.threshold_percent %v out of range (0,100]", c.Pressure.ThresholdPercent)
	}
	return logging.ValidLevel(c.LogLevel)
}

// NewCodec builds the codec described by c.Codec.
func (c Config) NewCodec() codec.Codec {
	return codec.Msgpack(
		codec.WithSchemaVersion(c.Codec.SchemaVersion),
		codec.WithCompressThreshold(c.Codec.CompressThreshold),
	)
}

// CacheOptions maps the configuration onto cache.Options.
func (c Config) CacheOptions(logger log.Logger, metrics cache.Metrics) cache.Options {
	return cache.Options{
		Images:      c.Tiers.Images,
		Data:        c.Tiers.Data,
		Objects:     c.Tiers.Objects,
		Codec:       c.NewCodec(),
		Logger:      logger,
		Metrics:     metrics,
		DefaultTTL:  c.DefaultTTL,
		LoadTimeout: c.LoadTimeout,
	}
}

// WatcherOptions maps the pressure section onto watcher options.
func (c Config) WatcherOptions(logger log.Logger) []pressure.WatcherOption {
	return []pressure.WatcherOption{
		pressure.WithThreshold(c.Pressure.ThresholdPercent),
		pressure.WithInterval(c.Pressure.Interval),
		pressure.WithLogger(logger),
	}
}
