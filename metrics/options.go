package metrics

import (
	"github.com/darthwaydr007/pytorch-lightning/core/lifecycle"
)

// LogConfig is the resolved configuration of one Log call.
type LogConfig struct {
	OnStep    bool
	OnEpoch   bool
	ProgBar   bool
	Logger    bool
	Reduce    Reduction
	BatchSize int
}

// granularity names the (OnStep, OnEpoch) combination as used in warnings.
func (c LogConfig) granularity() string {
	switch {
	case c.OnStep && c.OnEpoch:
		return "on_step+on_epoch"
	case c.OnStep:
		return "on_step"
	default:
		return "on_epoch"
	}
}

// LogOption configures a Log or LogDict call.
type LogOption func(*logRequest)

type logRequest struct {
	onStep    *bool
	onEpoch   *bool
	progBar   bool
	logger    bool
	reduce    Reduction
	batchSize int
}

// WithOnStep publishes the value at step granularity.
func WithOnStep(v bool) LogOption {
	return func(r *logRequest) { r.onStep = &v }
}

// WithOnEpoch accumulates the value and publishes it when the epoch closes.
func WithOnEpoch(v bool) LogOption {
	return func(r *logRequest) { r.onEpoch = &v }
}

// WithProgBar publishes the value to the progress-bar view.
func WithProgBar(v bool) LogOption {
	return func(r *logRequest) { r.progBar = v }
}

// WithLogger controls publication to the logged-metrics view. Default true.
func WithLogger(v bool) LogOption {
	return func(r *logRequest) { r.logger = v }
}

// WithReduceFx sets the reduction applied at window close. Default Mean.
func WithReduceFx(fx Reduction) LogOption {
	return func(r *logRequest) { r.reduce = fx }
}

// WithBatchSize overrides the sample weight of this value. Values below 1
// fall back to the batch size set on the controller.
func WithBatchSize(n int) LogOption {
	return func(r *logRequest) { r.batchSize = n }
}

func newLogRequest(opts []LogOption) logRequest {
	r := logRequest{logger: true, reduce: Mean}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// contextDefaults: inside a training step values are per-step, everywhere
// else (epoch hooks, validation) they accumulate over the epoch.
func contextDefaults(state lifecycle.State, stage lifecycle.Stage) (onStep, onEpoch bool) {
	if state == lifecycle.StepOpen && stage == lifecycle.StageTrain {
		return true, false
	}
	return false, true
}

func (r logRequest) resolve(state lifecycle.State, stage lifecycle.Stage, batchSize int) LogConfig {
	defStep, defEpoch := contextDefaults(state, stage)
	cfg := LogConfig{
		OnStep:    defStep,
		OnEpoch:   defEpoch,
		ProgBar:   r.progBar,
		Logger:    r.logger,
		Reduce:    r.reduce.resolved(),
		BatchSize: batchSize,
	}
	if r.onStep != nil {
		cfg.OnStep = *r.onStep
	}
	if r.onEpoch != nil {
		cfg.OnEpoch = *r.onEpoch
	}
	if !cfg.OnStep && !cfg.OnEpoch {
		cfg.OnStep, cfg.OnEpoch = defStep, defEpoch
	}
	if r.batchSize > 0 {
		cfg.BatchSize = r.batchSize
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	return cfg
}
