package callbacks

import (
	"math"

	"github.com/darthwaydr007/pytorch-lightning/pkg/errors"
	"github.com/darthwaydr007/pytorch-lightning/pkg/log"
)

// EarlyStopping stops training when a monitored metric stops improving.
// It reads the callback view after each epoch closed.
type EarlyStopping struct {
	Base

	Monitor  string
	Mode     Mode
	Patience int
	MinDelta float64
	// Strict fails training when the monitored metric is missing.
	Strict bool

	bestScore    float64
	bestEpoch    int
	waitCount    int
	stoppedEpoch int
	logger       log.Logger
}

// EarlyStoppingOption configures EarlyStopping.
type EarlyStoppingOption func(*EarlyStopping)

// WithMode sets the direction of improvement. Default ModeMin.
func WithMode(mode Mode) EarlyStoppingOption {
	return func(es *EarlyStopping) { es.Mode = mode }
}

// WithPatience sets how many epochs without improvement are tolerated.
func WithPatience(n int) EarlyStoppingOption {
	return func(es *EarlyStopping) { es.Patience = n }
}

// WithMinDelta sets the minimum change counted as an improvement.
func WithMinDelta(d float64) EarlyStoppingOption {
	return func(es *EarlyStopping) { es.MinDelta = math.Abs(d) }
}

// WithStrict controls whether a missing monitor is an error. Default true.
func WithStrict(strict bool) EarlyStoppingOption {
	return func(es *EarlyStopping) { es.Strict = strict }
}

// NewEarlyStopping creates an early stopping callback watching monitor.
func NewEarlyStopping(monitor string, opts ...EarlyStoppingOption) (*EarlyStopping, error) {
	es := &EarlyStopping{
		Monitor:      monitor,
		Mode:         ModeMin,
		Patience:     3,
		Strict:       true,
		bestEpoch:    -1,
		stoppedEpoch: -1,
		logger:       log.GetLoggerWithName("callbacks"),
	}
	for _, opt := range opts {
		opt(es)
	}
	if monitor == "" {
		return nil, errors.NewValidationError("monitor", "must not be empty", monitor)
	}
	mode, err := parseMode(es.Mode)
	if err != nil {
		return nil, err
	}
	es.Mode = mode
	if es.Patience < 1 {
		return nil, errors.NewValidationError("patience", "must be at least 1", es.Patience)
	}
	es.bestScore = es.initialScore()
	return es, nil
}

func (es *EarlyStopping) initialScore() float64 {
	if es.Mode == ModeMax {
		return math.Inf(-1)
	}
	return math.Inf(1)
}

// OnTrainStart resets the state so the callback can be reused.
func (es *EarlyStopping) OnTrainStart(*Env) error {
	es.bestScore = es.initialScore()
	es.bestEpoch = -1
	es.waitCount = 0
	es.stoppedEpoch = -1
	return nil
}

// OnEpochComplete compares the monitored value with the best so far.
func (es *EarlyStopping) OnEpochComplete(env *Env) error {
	current, ok, err := monitoredScalar(env, es.Monitor)
	if err != nil {
		return err
	}
	if !ok {
		if es.Strict {
			return errors.Newf("early stopping conditioned on metric `%s` which is not available. Available metrics: %v",
				es.Monitor, availableMetrics(env))
		}
		es.logger.Warn("Early stopping monitor not available", log.MonitorKey, es.Monitor, log.EpochKey, env.Epoch)
		return nil
	}

	if err := errors.CheckScalar(es.Monitor, current, env.Epoch); err != nil {
		es.logger.Warn("Stopping on non-finite monitored metric", err, log.MonitorKey, es.Monitor)
		es.stop(env)
		return nil
	}

	if es.Mode.improved(current, es.bestScore, es.MinDelta) {
		es.bestScore = current
		es.bestEpoch = env.Epoch
		es.waitCount = 0
		es.logger.Debug("Monitored metric improved",
			log.MonitorKey, es.Monitor,
			log.BestScoreKey, current,
			log.EpochKey, env.Epoch,
		)
		return nil
	}

	es.waitCount++
	if es.waitCount >= es.Patience {
		es.logger.Info("Early stopping",
			log.MonitorKey, es.Monitor,
			log.BestScoreKey, es.bestScore,
			log.EpochKey, env.Epoch,
		)
		es.stop(env)
	}
	return nil
}

func (es *EarlyStopping) stop(env *Env) {
	es.stoppedEpoch = env.Epoch
	env.StopTraining = true
}

// BestScore returns the best monitored value seen.
func (es *EarlyStopping) BestScore() float64 { return es.bestScore }

// BestEpoch returns the epoch of the best value, -1 before any.
func (es *EarlyStopping) BestEpoch() int { return es.bestEpoch }

// StoppedEpoch returns the epoch training was stopped at, -1 if it was not.
func (es *EarlyStopping) StoppedEpoch() int { return es.stoppedEpoch }
