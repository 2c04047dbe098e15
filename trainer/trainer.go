// Package trainer drives a training loop around a metrics.Controller: it
// opens and closes epoch and step windows, calls the module and callback
// hooks in a fixed order and forwards logged-metrics flushes to sinks.
package trainer

import (
	"context"
	"time"

	"github.com/darthwaydr007/pytorch-lightning/callbacks"
	"github.com/darthwaydr007/pytorch-lightning/core/lifecycle"
	"github.com/darthwaydr007/pytorch-lightning/metrics"
	"github.com/darthwaydr007/pytorch-lightning/pkg/errors"
	"github.com/darthwaydr007/pytorch-lightning/pkg/log"
	"github.com/darthwaydr007/pytorch-lightning/sinks"
)

// AllBatches disables a batch limit.
const AllBatches = -1

// Config holds the loop parameters.
type Config struct {
	// MaxEpochs is the number of epochs to run.
	MaxEpochs int `json:"max_epochs"`
	// LimitTrainBatches caps training batches per epoch. AllBatches runs the
	// whole loader, 0 runs none.
	LimitTrainBatches int `json:"limit_train_batches"`
	// LimitValBatches caps validation batches per epoch; 0 disables validation.
	LimitValBatches int `json:"limit_val_batches"`
	// LogEveryNSteps is the logged-view flush interval for training steps.
	LogEveryNSteps int `json:"log_every_n_steps"`
	// TruncatedBPTTSteps splits each batch into chunks of this many time
	// steps when positive.
	TruncatedBPTTSteps int `json:"truncated_bptt_steps"`
	// CheckValEveryNEpoch runs validation every n-th epoch.
	CheckValEveryNEpoch int `json:"check_val_every_n_epoch"`
}

// DefaultConfig returns the driver defaults.
func DefaultConfig() Config {
	return Config{
		MaxEpochs:           1,
		LimitTrainBatches:   AllBatches,
		LimitValBatches:     AllBatches,
		LogEveryNSteps:      50,
		CheckValEveryNEpoch: 1,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxEpochs < 1 {
		return errors.NewValidationError("max_epochs", "must be at least 1", c.MaxEpochs)
	}
	if c.LimitTrainBatches < AllBatches {
		return errors.NewValidationError("limit_train_batches", "must be -1 (all) or non-negative", c.LimitTrainBatches)
	}
	if c.LimitValBatches < AllBatches {
		return errors.NewValidationError("limit_val_batches", "must be -1 (all) or non-negative", c.LimitValBatches)
	}
	if c.LogEveryNSteps < 0 {
		return errors.NewValidationError("log_every_n_steps", "must not be negative", c.LogEveryNSteps)
	}
	if c.TruncatedBPTTSteps < 0 {
		return errors.NewValidationError("truncated_bptt_steps", "must not be negative", c.TruncatedBPTTSteps)
	}
	if c.CheckValEveryNEpoch < 0 {
		return errors.NewValidationError("check_val_every_n_epoch", "must not be negative", c.CheckValEveryNEpoch)
	}
	return nil
}

func limit(n, max int) int {
	if max == AllBatches || max > n {
		return n
	}
	return max
}

// Trainer runs the loop. A Trainer may Fit several times; each Fit uses a
// fresh controller.
type Trainer struct {
	cfg       Config
	callbacks *callbacks.List
	sink      sinks.Sink
	logger    log.Logger
	ctlLogger log.Logger
	runID     string

	ctl     *metrics.Controller
	env     *callbacks.Env
	flushed int
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithCallbacks appends callbacks, invoked in the given order.
func WithCallbacks(cbs ...callbacks.Callback) Option {
	return func(t *Trainer) {
		for _, cb := range cbs {
			t.callbacks.Add(cb)
		}
	}
}

// WithSinks forwards every logged-metrics flush to the sinks.
func WithSinks(s ...sinks.Sink) Option {
	return func(t *Trainer) {
		if len(s) == 1 {
			t.sink = s[0]
			return
		}
		t.sink = sinks.NewMulti(s...)
	}
}

// WithLogger sets the logger of the driver and of its metrics controller.
func WithLogger(l log.Logger) Option {
	return func(t *Trainer) {
		if l != nil {
			t.logger = l
			t.ctlLogger = l
		}
	}
}

// WithRunID fixes the run id of the next Fit.
func WithRunID(id string) Option {
	return func(t *Trainer) { t.runID = id }
}

// New creates a Trainer. Zero LogEveryNSteps and CheckValEveryNEpoch take the
// defaults.
func New(cfg Config, opts ...Option) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.LogEveryNSteps == 0 {
		cfg.LogEveryNSteps = DefaultConfig().LogEveryNSteps
	}
	if cfg.CheckValEveryNEpoch == 0 {
		cfg.CheckValEveryNEpoch = 1
	}
	t := &Trainer{
		cfg:       cfg,
		callbacks: callbacks.NewList(),
		logger:    log.GetLoggerWithName("trainer"),
		ctlLogger: log.GetLoggerWithName("metrics"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Config returns the effective configuration.
func (t *Trainer) Config() Config { return t.cfg }

// Metrics returns the controller of the current or last Fit.
func (t *Trainer) Metrics() *metrics.Controller { return t.ctl }

// Fit trains module for MaxEpochs epochs or until a callback stops training.
// val may be nil.
func (t *Trainer) Fit(ctx context.Context, module TrainingModule, train, val DataLoader) error {
	if module == nil || train == nil {
		return errors.NewValidationError("module", "module and train loader are required", nil)
	}
	t.ctl = metrics.NewController(
		metrics.WithLogEveryNSteps(t.cfg.LogEveryNSteps),
		metrics.WithRunID(t.runID),
		metrics.WithControllerLogger(t.ctlLogger),
	)
	t.env = &callbacks.Env{Metrics: t.ctl, BatchIdx: -1}
	t.flushed = 0
	logger := t.logger.With(log.RunIDKey, t.ctl.RunID())

	start := time.Now()
	logger.Info("Training started",
		"max_epochs", t.cfg.MaxEpochs,
		"log_every_n_steps", t.cfg.LogEveryNSteps,
	)

	if err := t.callbacks.OnTrainStart(t.env); err != nil {
		return err
	}
	for epoch := 0; epoch < t.cfg.MaxEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "fit cancelled")
		}
		epochStart := time.Now()
		if err := t.runEpoch(ctx, module, train, val, epoch); err != nil {
			logger.Error("Epoch failed", err, log.EpochKey, epoch)
			return err
		}
		logger.Info("Epoch finished",
			log.EpochKey, epoch,
			log.GlobalStepKey, t.ctl.GlobalStep(),
			log.DurationMsKey, time.Since(epochStart).Milliseconds(),
		)
		if t.env.StopTraining {
			logger.Info("Training stopped by callback", log.EpochKey, epoch)
			break
		}
	}
	if err := t.callbacks.OnTrainEnd(t.env); err != nil {
		return err
	}
	logger.Info("Training finished",
		log.GlobalStepKey, t.ctl.GlobalStep(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

func (t *Trainer) runEpoch(ctx context.Context, module TrainingModule, train, val DataLoader, epoch int) error {
	ctl, env := t.ctl, t.env
	ctl.StartEpoch(epoch)
	env.Epoch, env.BatchIdx, env.GlobalStep = epoch, -1, ctl.GlobalStep()

	if err := t.callbacks.OnEpochStart(env); err != nil {
		return err
	}
	if starter, ok := module.(TrainEpochStarter); ok {
		if err := errors.SafeExecute("on_train_epoch_start", func() error { return starter.OnTrainEpochStart(ctl) }); err != nil {
			return err
		}
	}

	var outputs []StepOutput
	n := limit(train.Len(), t.cfg.LimitTrainBatches)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "fit cancelled")
		}
		outs, err := t.runTrainBatch(module, train, i)
		if err != nil {
			return err
		}
		outputs = append(outputs, outs...)
		if env.StopTraining {
			break
		}
	}

	if vm, ok := module.(ValidationModule); ok && val != nil && (epoch+1)%t.cfg.CheckValEveryNEpoch == 0 {
		if err := t.runValidation(ctx, vm, val); err != nil {
			return err
		}
	}

	if ender, ok := module.(TrainingEpochEnder); ok {
		if err := errors.SafeExecute("training_epoch_end", func() error { return ender.TrainingEpochEnd(ctl, outputs) }); err != nil {
			return err
		}
	}
	if err := t.callbacks.OnEpochEnd(env); err != nil {
		return err
	}
	if err := ctl.EndEpoch(); err != nil {
		return err
	}
	env.BatchIdx, env.GlobalStep = -1, ctl.GlobalStep()
	if err := t.flushSinks(ctx); err != nil {
		return err
	}
	return t.callbacks.OnEpochComplete(env)
}

func (t *Trainer) runTrainBatch(module TrainingModule, train DataLoader, batchIdx int) ([]StepOutput, error) {
	ctl, env := t.ctl, t.env
	batch, err := train.Batch(batchIdx)
	if err != nil {
		return nil, errors.Wrapf(err, "load training batch %d", batchIdx)
	}
	if err := ctl.StartStep(batchIdx); err != nil {
		return nil, err
	}
	ctl.SetBatchSize(InferBatchSize(batch))
	env.BatchIdx, env.GlobalStep = batchIdx, ctl.GlobalStep()

	if err := t.callbacks.OnBatchStart(env); err != nil {
		return nil, err
	}

	splits := []any{batch}
	if t.cfg.TruncatedBPTTSteps > 0 {
		if splits, err = t.splitBatch(module, batch); err != nil {
			return nil, err
		}
	}

	var outputs []StepOutput
	for _, split := range splits {
		out, err := t.trainingStep(module, split, batchIdx)
		if err != nil {
			return nil, err
		}
		if out != nil {
			outputs = append(outputs, out)
		}
	}

	if err := t.callbacks.OnBatchEnd(env); err != nil {
		return nil, err
	}
	if err := ctl.EndStep(); err != nil {
		return nil, err
	}
	env.GlobalStep = ctl.GlobalStep()
	return outputs, nil
}

func (t *Trainer) trainingStep(module TrainingModule, batch any, batchIdx int) (StepOutput, error) {
	ctl := t.ctl
	var out StepOutput
	err := errors.SafeExecute("training_step", func() (err error) {
		out, err = module.TrainingStep(ctl, batch, batchIdx)
		return err
	})
	if err != nil {
		return nil, err
	}

	hook := "training_step"
	if ender, ok := module.(TrainingStepEnder); ok {
		hook = "training_step_end"
		err = errors.SafeExecute(hook, func() (err error) {
			out, err = ender.TrainingStepEnd(ctl, out)
			return err
		})
		if err != nil {
			return nil, err
		}
	}
	if err := checkLoss(hook, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *Trainer) splitBatch(module TrainingModule, batch any) ([]any, error) {
	if splitter, ok := module.(BatchSplitter); ok {
		var splits []any
		err := errors.SafeExecute("tbptt_split_batch", func() (err error) {
			splits, err = splitter.TBPTTSplitBatch(batch, t.cfg.TruncatedBPTTSteps)
			return err
		})
		return splits, err
	}
	return SplitTimeDimension(batch, t.cfg.TruncatedBPTTSteps)
}

func (t *Trainer) runValidation(ctx context.Context, module ValidationModule, val DataLoader) error {
	ctl := t.ctl
	ctl.SetStage(lifecycle.StageValidation)
	defer ctl.SetStage(lifecycle.StageTrain)

	var outputs []StepOutput
	n := limit(val.Len(), t.cfg.LimitValBatches)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "fit cancelled")
		}
		batch, err := val.Batch(i)
		if err != nil {
			return errors.Wrapf(err, "load validation batch %d", i)
		}
		if err := ctl.StartStep(i); err != nil {
			return err
		}
		ctl.SetBatchSize(InferBatchSize(batch))

		var out StepOutput
		err = errors.SafeExecute("validation_step", func() (err error) {
			out, err = module.ValidationStep(ctl, batch, i)
			return err
		})
		if err != nil {
			return err
		}
		if out != nil {
			outputs = append(outputs, out)
		}
		if err := ctl.EndStep(); err != nil {
			return err
		}
	}

	if ender, ok := module.(ValidationEpochEnder); ok {
		return errors.SafeExecute("validation_epoch_end", func() error { return ender.ValidationEpochEnd(ctl, outputs) })
	}
	return nil
}

// flushSinks forwards the records appended since the previous flush.
func (t *Trainer) flushSinks(ctx context.Context) error {
	records := t.ctl.HistorySince(t.flushed)
	t.flushed += len(records)
	if t.sink == nil {
		return nil
	}
	for _, r := range records {
		if err := t.sink.LogMetrics(ctx, r); err != nil {
			return errors.Wrapf(err, "forward %s record of epoch %d", r.Kind, r.Epoch)
		}
	}
	return nil
}
