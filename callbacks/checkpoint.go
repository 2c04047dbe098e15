package callbacks

import (
	"math"

	"github.com/darthwaydr007/pytorch-lightning/pkg/errors"
	"github.com/darthwaydr007/pytorch-lightning/pkg/log"
)

// SaveFunc persists the model state for an epoch.
type SaveFunc func(epoch int, score float64) error

// ModelCheckpoint calls a save function when the monitored metric improves,
// or after every Period-th epoch when Monitor is empty.
type ModelCheckpoint struct {
	Base

	Monitor string
	Mode    Mode
	Period  int

	save      SaveFunc
	bestScore float64
	bestEpoch int
	saved     []int
	logger    log.Logger
}

// NewModelCheckpoint creates a checkpoint callback. An empty monitor saves
// every period epochs without comparing scores.
func NewModelCheckpoint(monitor string, mode Mode, period int, save SaveFunc) (*ModelCheckpoint, error) {
	if save == nil {
		return nil, errors.NewValidationError("save", "must not be nil", nil)
	}
	m, err := parseMode(mode)
	if err != nil {
		return nil, err
	}
	if period < 1 {
		period = 1
	}
	mc := &ModelCheckpoint{
		Monitor:   monitor,
		Mode:      m,
		Period:    period,
		save:      save,
		bestEpoch: -1,
		logger:    log.GetLoggerWithName("callbacks"),
	}
	mc.bestScore = mc.initialScore()
	return mc, nil
}

func (mc *ModelCheckpoint) initialScore() float64 {
	if mc.Mode == ModeMax {
		return math.Inf(-1)
	}
	return math.Inf(1)
}

// OnTrainStart resets the best score.
func (mc *ModelCheckpoint) OnTrainStart(*Env) error {
	mc.bestScore = mc.initialScore()
	mc.bestEpoch = -1
	mc.saved = nil
	return nil
}

// OnEpochComplete saves when the period elapsed and the score improved.
func (mc *ModelCheckpoint) OnEpochComplete(env *Env) error {
	if (env.Epoch+1)%mc.Period != 0 {
		return nil
	}

	score := math.NaN()
	if mc.Monitor != "" {
		current, ok, err := monitoredScalar(env, mc.Monitor)
		if err != nil {
			return err
		}
		if !ok {
			mc.logger.Warn("Checkpoint monitor not available", log.MonitorKey, mc.Monitor, log.EpochKey, env.Epoch)
			return nil
		}
		if !mc.Mode.improved(current, mc.bestScore, 0) {
			return nil
		}
		score = current
		mc.bestScore = current
		mc.bestEpoch = env.Epoch
	}

	if err := mc.save(env.Epoch, score); err != nil {
		return errors.Wrapf(err, "failed to save checkpoint for epoch %d", env.Epoch)
	}
	mc.saved = append(mc.saved, env.Epoch)
	mc.logger.Info("Checkpoint saved", log.EpochKey, env.Epoch, log.MonitorKey, mc.Monitor, log.BestScoreKey, score)
	return nil
}

// BestScore returns the best monitored value seen.
func (mc *ModelCheckpoint) BestScore() float64 { return mc.bestScore }

// BestEpoch returns the epoch of the best checkpoint, -1 before any.
func (mc *ModelCheckpoint) BestEpoch() int { return mc.bestEpoch }

// SavedEpochs lists the epochs a checkpoint was written for.
func (mc *ModelCheckpoint) SavedEpochs() []int {
	return append([]int(nil), mc.saved...)
}
