// Package callbacks defines the hooks the training driver invokes around
// epochs and batches, plus built-in callbacks that read and write metrics
// through the run's controller.
package callbacks

import (
	"github.com/darthwaydr007/pytorch-lightning/metrics"
	"github.com/darthwaydr007/pytorch-lightning/pkg/errors"
)

// Env holds the environment passed to callbacks.
type Env struct {
	Metrics      *metrics.Controller
	Epoch        int
	BatchIdx     int
	GlobalStep   int
	StopTraining bool
}

// Callback is invoked by the driver at fixed points of the loop.
//
// OnTrainStart and OnTrainEnd run while no window is open, so logging there
// fails. OnEpochEnd runs before the epoch window closes and may log;
// OnEpochComplete runs after it closed and sees the epoch-level values.
type Callback interface {
	OnTrainStart(env *Env) error
	OnEpochStart(env *Env) error
	OnBatchStart(env *Env) error
	OnBatchEnd(env *Env) error
	OnEpochEnd(env *Env) error
	OnEpochComplete(env *Env) error
	OnTrainEnd(env *Env) error
}

// Base implements every hook as a no-op. Embed it to override a subset.
type Base struct{}

func (Base) OnTrainStart(*Env) error    { return nil }
func (Base) OnEpochStart(*Env) error    { return nil }
func (Base) OnBatchStart(*Env) error    { return nil }
func (Base) OnBatchEnd(*Env) error      { return nil }
func (Base) OnEpochEnd(*Env) error      { return nil }
func (Base) OnEpochComplete(*Env) error { return nil }
func (Base) OnTrainEnd(*Env) error      { return nil }

// Funcs adapts plain functions to a Callback. Nil fields are skipped.
type Funcs struct {
	TrainStart    func(env *Env) error
	EpochStart    func(env *Env) error
	BatchStart    func(env *Env) error
	BatchEnd      func(env *Env) error
	EpochEnd      func(env *Env) error
	EpochComplete func(env *Env) error
	TrainEnd      func(env *Env) error
}

func call(fn func(*Env) error, env *Env) error {
	if fn == nil {
		return nil
	}
	return fn(env)
}

func (f Funcs) OnTrainStart(env *Env) error    { return call(f.TrainStart, env) }
func (f Funcs) OnEpochStart(env *Env) error    { return call(f.EpochStart, env) }
func (f Funcs) OnBatchStart(env *Env) error    { return call(f.BatchStart, env) }
func (f Funcs) OnBatchEnd(env *Env) error      { return call(f.BatchEnd, env) }
func (f Funcs) OnEpochEnd(env *Env) error      { return call(f.EpochEnd, env) }
func (f Funcs) OnEpochComplete(env *Env) error { return call(f.EpochComplete, env) }
func (f Funcs) OnTrainEnd(env *Env) error      { return call(f.TrainEnd, env) }

// List manages multiple callbacks and is itself a Callback.
type List struct {
	callbacks []Callback
}

var _ Callback = (*List)(nil)

// NewList creates a callback list. Nil callbacks are dropped.
func NewList(callbacks ...Callback) *List {
	l := &List{}
	for _, cb := range callbacks {
		l.Add(cb)
	}
	return l
}

// Add appends a callback.
func (l *List) Add(cb Callback) {
	if cb != nil {
		l.callbacks = append(l.callbacks, cb)
	}
}

// Len returns the number of callbacks.
func (l *List) Len() int { return len(l.callbacks) }

// dispatch calls hook on every callback in order and stops at the first
// error. A panicking callback is reported as a PanicError.
func (l *List) dispatch(hook string, env *Env, fn func(Callback, *Env) error) error {
	for _, cb := range l.callbacks {
		if err := errors.SafeExecute(hook, func() error { return fn(cb, env) }); err != nil {
			return errors.Wrapf(err, "callback %T: %s", cb, hook)
		}
	}
	return nil
}

func (l *List) OnTrainStart(env *Env) error {
	return l.dispatch("on_train_start", env, Callback.OnTrainStart)
}

func (l *List) OnEpochStart(env *Env) error {
	return l.dispatch("on_epoch_start", env, Callback.OnEpochStart)
}

func (l *List) OnBatchStart(env *Env) error {
	return l.dispatch("on_batch_start", env, Callback.OnBatchStart)
}

func (l *List) OnBatchEnd(env *Env) error {
	return l.dispatch("on_batch_end", env, Callback.OnBatchEnd)
}

func (l *List) OnEpochEnd(env *Env) error {
	return l.dispatch("on_epoch_end", env, Callback.OnEpochEnd)
}

func (l *List) OnEpochComplete(env *Env) error {
	return l.dispatch("on_epoch_complete", env, Callback.OnEpochComplete)
}

func (l *List) OnTrainEnd(env *Env) error {
	return l.dispatch("on_train_end", env, Callback.OnTrainEnd)
}

// monitoredScalar reads a scalar from the callback view.
func monitoredScalar(env *Env, monitor string) (float64, bool, error) {
	v, ok := env.Metrics.Metric(monitor)
	if !ok {
		return 0, false, nil
	}
	if v.IsMapping() {
		return 0, true, errors.NewUnsupportedMetricShapeError(monitor, "monitored metric must be a scalar", v.String())
	}
	return v.Float(), true, nil
}

func availableMetrics(env *Env) []string {
	return metrics.SortedKeys(env.Metrics.CallbackMetrics(metrics.WithoutEpochCounter()))
}

// Mode selects whether a monitored metric should decrease or increase.
type Mode string

const (
	ModeMin Mode = "min"
	ModeMax Mode = "max"
)

func (m Mode) improved(current, best, minDelta float64) bool {
	if m == ModeMax {
		return current > best+minDelta
	}
	return current < best-minDelta
}

func parseMode(mode Mode) (Mode, error) {
	switch mode {
	case "", ModeMin:
		return ModeMin, nil
	case ModeMax:
		return ModeMax, nil
	}
	return "", errors.NewValidationError("mode", "must be 'min' or 'max'", string(mode))
}
