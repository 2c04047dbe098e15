package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darthwaydr007/pytorch-lightning/pkg/errors"
	"github.com/darthwaydr007/pytorch-lightning/sinks"
)

func TestSynthetic(t *testing.T) {
	X, y, err := synthetic(50, 1)
	require.NoError(t, err)
	r, c := X.Dims()
	assert.Equal(t, 50, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 50, y.Len())

	_, _, err = synthetic(5, 1)
	var verr *errors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "samples", verr.ParamName)
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "metrics.db")
	plotPath := filepath.Join(dir, "history.png")
	promPath := filepath.Join(dir, "metrics.prom")
	cfgPath := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
run_id: demo-run
log_level: error
trainer:
  max_epochs: 3
  log_every_n_steps: 5
sinks:
  sqlite_path: `+dbPath+`
  prometheus_namespace: demo
  plot_path: `+plotPath+`
`), 0o644))

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"run", "--config", cfgPath, "--samples", "200", "--batch-size", "20", "--prom-textfile", promPath})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	assert.Contains(t, out.String(), "[epoch 0] done")
	assert.Contains(t, out.String(), "best val_loss")
	assert.FileExists(t, plotPath)

	prom, err := os.ReadFile(promPath)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "demo_metric_value")
	assert.Contains(t, string(prom), `run_id="demo-run"`)

	db, err := sinks.NewSQLiteSink(dbPath, "demo-run")
	require.NoError(t, err)
	defer db.Close()
	latest, err := db.Latest(context.Background())
	require.NoError(t, err)
	assert.Contains(t, latest, "val_loss")
	assert.Contains(t, latest, "train_loss_epoch")
}

func TestRunCommandRejectsBadConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("log_level: loud\n"), 0o644))

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"run", "--config", cfgPath})
	assert.Error(t, cmd.Execute())
}
