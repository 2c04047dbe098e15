// Package config loads run configuration from a YAML or TOML file and the
// environment.
//
// Precedence, lowest first: Default(), the file, LIGHTNING_* environment
// variables. The result is validated before it is returned.
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"

	"github.com/darthwaydr007/pytorch-lightning/metrics"
	"github.com/darthwaydr007/pytorch-lightning/pkg/errors"
	"github.com/darthwaydr007/pytorch-lightning/pkg/log"
	"github.com/darthwaydr007/pytorch-lightning/trainer"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "LIGHTNING_"

// Config is the full run configuration.
type Config struct {
	RunID    string        `yaml:"run_id" toml:"run_id" env:"RUN_ID"`
	LogLevel string        `yaml:"log_level" toml:"log_level" env:"LOG_LEVEL"`
	Trainer  TrainerConfig `yaml:"trainer" toml:"trainer" envPrefix:"TRAINER_"`
	Sinks    SinksConfig   `yaml:"sinks" toml:"sinks" envPrefix:"SINKS_"`
}

// TrainerConfig mirrors trainer.Config plus the default reduction.
type TrainerConfig struct {
	MaxEpochs           int    `yaml:"max_epochs" toml:"max_epochs" env:"MAX_EPOCHS"`
	LimitTrainBatches   int    `yaml:"limit_train_batches" toml:"limit_train_batches" env:"LIMIT_TRAIN_BATCHES"`
	LimitValBatches     int    `yaml:"limit_val_batches" toml:"limit_val_batches" env:"LIMIT_VAL_BATCHES"`
	LogEveryNSteps      int    `yaml:"log_every_n_steps" toml:"log_every_n_steps" env:"LOG_EVERY_N_STEPS"`
	TruncatedBPTTSteps  int    `yaml:"truncated_bptt_steps" toml:"truncated_bptt_steps" env:"TRUNCATED_BPTT_STEPS"`
	CheckValEveryNEpoch int    `yaml:"check_val_every_n_epoch" toml:"check_val_every_n_epoch" env:"CHECK_VAL_EVERY_N_EPOCH"`
	ReduceFx            string `yaml:"reduce_fx" toml:"reduce_fx" env:"REDUCE_FX"`
}

// SinksConfig selects the sinks a run writes to. Empty values disable a sink.
type SinksConfig struct {
	SQLitePath          string `yaml:"sqlite_path" toml:"sqlite_path" env:"SQLITE_PATH"`
	PrometheusNamespace string `yaml:"prometheus_namespace" toml:"prometheus_namespace" env:"PROMETHEUS_NAMESPACE"`
	LogRecords          bool   `yaml:"log_records" toml:"log_records" env:"LOG_RECORDS"`
	PlotPath            string `yaml:"plot_path" toml:"plot_path" env:"PLOT_PATH"`
}

// Default returns the built-in configuration.
func Default() Config {
	tc := trainer.DefaultConfig()
	return Config{
		LogLevel: "info",
		Trainer: TrainerConfig{
			MaxEpochs:           tc.MaxEpochs,
			LimitTrainBatches:   tc.LimitTrainBatches,
			LimitValBatches:     tc.LimitValBatches,
			LogEveryNSteps:      tc.LogEveryNSteps,
			TruncatedBPTTSteps:  tc.TruncatedBPTTSteps,
			CheckValEveryNEpoch: tc.CheckValEveryNEpoch,
			ReduceFx:            metrics.Mean.Name(),
		},
	}
}

// Load reads path (YAML or TOML by extension), overlays the environment and
// validates. An empty path loads only defaults and the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrap(err, "read config file")
		}
		if err := decode(path, data, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := FromEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return errors.Wrap(err, "parse yaml config")
		}
	case ".toml":
		tree, err := toml.LoadBytes(data)
		if err != nil {
			return errors.Wrap(err, "parse toml config")
		}
		if err := tree.Unmarshal(cfg); err != nil {
			return errors.Wrap(err, "unmarshal toml config")
		}
	default:
		return errors.NewValidationError("path", "config file must be .yaml, .yml or .toml", ext)
	}
	return nil
}

// FromEnv overlays LIGHTNING_* variables onto cfg.
func FromEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return errors.Wrap(err, "parse environment")
	}
	return nil
}

// Validate checks every section.
func (c Config) Validate() error {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if _, err := c.Reduction(); err != nil {
		return err
	}
	return c.TrainerConfig().Validate()
}

// Reduction parses the configured default reduction.
func (c Config) Reduction() (metrics.Reduction, error) {
	if c.Trainer.ReduceFx == "" {
		return metrics.Mean, nil
	}
	return metrics.ParseReduction(c.Trainer.ReduceFx)
}

// TrainerConfig converts the trainer section.
func (c Config) TrainerConfig() trainer.Config {
	t := c.Trainer
	return trainer.Config{
		MaxEpochs:           t.MaxEpochs,
		LimitTrainBatches:   t.LimitTrainBatches,
		LimitValBatches:     t.LimitValBatches,
		LogEveryNSteps:      t.LogEveryNSteps,
		TruncatedBPTTSteps:  t.TruncatedBPTTSteps,
		CheckValEveryNEpoch: t.CheckValEveryNEpoch,
	}
}
