package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darthwaydr007/pytorch-lightning/metrics"
	"github.com/darthwaydr007/pytorch-lightning/pkg/errors"
	"github.com/darthwaydr007/pytorch-lightning/trainer"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, trainer.DefaultConfig(), cfg.TrainerConfig())
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "run.yaml", `
run_id: yaml-run
log_level: debug
trainer:
  max_epochs: 3
  log_every_n_steps: 10
  reduce_fx: max
sinks:
  sqlite_path: /tmp/metrics.db
  log_records: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "yaml-run", cfg.RunID)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 3, cfg.Trainer.MaxEpochs)
	assert.Equal(t, 10, cfg.Trainer.LogEveryNSteps)
	// Unset keys keep their defaults.
	assert.Equal(t, trainer.AllBatches, cfg.Trainer.LimitTrainBatches)
	assert.Equal(t, 1, cfg.Trainer.CheckValEveryNEpoch)
	assert.Equal(t, "/tmp/metrics.db", cfg.Sinks.SQLitePath)
	assert.True(t, cfg.Sinks.LogRecords)

	r, err := cfg.Reduction()
	require.NoError(t, err)
	assert.Equal(t, metrics.Max.Name(), r.Name())
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "run.toml", `
run_id = "toml-run"

[trainer]
max_epochs = 5
limit_train_batches = 8
truncated_bptt_steps = 2

[sinks]
prometheus_namespace = "demo"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "toml-run", cfg.RunID)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 5, cfg.Trainer.MaxEpochs)
	assert.Equal(t, 8, cfg.Trainer.LimitTrainBatches)
	assert.Equal(t, 2, cfg.Trainer.TruncatedBPTTSteps)
	assert.Equal(t, 50, cfg.Trainer.LogEveryNSteps)
	assert.Equal(t, "demo", cfg.Sinks.PrometheusNamespace)
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	path := writeFile(t, "run.yaml", "trainer:\n  max_epochs: 3\n")
	t.Setenv("LIGHTNING_TRAINER_MAX_EPOCHS", "7")
	t.Setenv("LIGHTNING_LOG_LEVEL", "warn")
	t.Setenv("LIGHTNING_SINKS_PLOT_PATH", "loss.png")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Trainer.MaxEpochs)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "loss.png", cfg.Sinks.PlotPath)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "run.json", "{}"))
	var verr *errors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "path", verr.ParamName)

	_, err = Load(writeFile(t, "run.yaml", "unknown_key: 1\n"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "run.toml", "max_epochs = [\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		param  string
		mutate func(*Config)
	}{
		{"log level", "log_level", func(c *Config) { c.LogLevel = "verbose" }},
		{"reduction", "reduce_fx", func(c *Config) { c.Trainer.ReduceFx = "median" }},
		{"epochs", "max_epochs", func(c *Config) { c.Trainer.MaxEpochs = 0 }},
		{"bptt", "truncated_bptt_steps", func(c *Config) { c.Trainer.TruncatedBPTTSteps = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			var verr *errors.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.param, verr.ParamName)
		})
	}
}
