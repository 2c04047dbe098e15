// Package lifecycle tracks the accumulation-window state of a training run.
package lifecycle

import (
	"fmt"
	"sync"

	"github.com/darthwaydr007/pytorch-lightning/pkg/errors"
)

// State is the window state of a run: Idle → EpochOpen → StepOpen → EpochOpen → … → Idle.
type State int

const (
	// Idle means no window is open; logging is rejected.
	Idle State = iota
	// EpochOpen means an epoch window is open and no step is running.
	EpochOpen
	// StepOpen means a step window is open inside the epoch window.
	StepOpen
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case EpochOpen:
		return "epoch_open"
	case StepOpen:
		return "step_open"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Stage is the phase of the driver the current windows belong to.
type Stage int

const (
	StageTrain Stage = iota
	StageValidation
)

func (s Stage) String() string {
	if s == StageValidation {
		return "validation"
	}
	return "train"
}

// Tracker manages the window state of one run in a thread-safe manner.
// Transition methods report whether they changed anything so callers can
// treat repeated boundary calls as no-ops.
type Tracker struct {
	mu sync.RWMutex

	state      State
	stage      Stage
	epoch      int
	batchIdx   int
	globalStep int
	everOpened bool
}

// NewTracker creates a Tracker in the Idle state.
func NewTracker() *Tracker {
	return &Tracker{state: Idle, batchIdx: -1}
}

// Current returns the current window state.
func (t *Tracker) Current() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// OpenEpoch moves Idle to EpochOpen. It returns false and changes nothing
// when an epoch is already open.
func (t *Tracker) OpenEpoch(epoch int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Idle {
		return false
	}
	t.state = EpochOpen
	t.epoch = epoch
	t.batchIdx = -1
	t.stage = StageTrain
	t.everOpened = true
	return true
}

// OpenStep moves EpochOpen to StepOpen. Callers close a running step first.
func (t *Tracker) OpenStep(batchIdx int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Idle {
		return errors.NewNoOpenWindowError("StartStep", "")
	}
	t.state = StepOpen
	t.batchIdx = batchIdx
	return nil
}

// CloseStep moves StepOpen back to EpochOpen and advances the global step for
// training steps. It returns false when no step was open.
func (t *Tracker) CloseStep() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StepOpen {
		return false
	}
	t.state = EpochOpen
	if t.stage == StageTrain {
		t.globalStep++
	}
	return true
}

// CloseEpoch moves EpochOpen to Idle. It returns false when already Idle.
func (t *Tracker) CloseEpoch() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == Idle {
		return false
	}
	t.state = Idle
	t.stage = StageTrain
	return true
}

// SetStage switches between training and validation windows.
func (t *Tracker) SetStage(stage Stage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stage = stage
}

// Stage returns the current stage.
func (t *Tracker) Stage() Stage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stage
}

// Epoch returns the index of the open (or last closed) epoch.
func (t *Tracker) Epoch() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.epoch
}

// GlobalStep returns the number of completed training steps.
func (t *Tracker) GlobalStep() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.globalStep
}

// Started reports whether any epoch was ever opened.
func (t *Tracker) Started() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.everOpened
}

// Snapshot is the complete window state, used for logging and debugging.
type Snapshot struct {
	State      string `json:"state"`
	Stage      string `json:"stage"`
	Epoch      int    `json:"epoch"`
	BatchIdx   int    `json:"batch_idx"`
	GlobalStep int    `json:"global_step"`
}

// Snapshot returns the current state as a Snapshot struct.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Snapshot{
		State:      t.state.String(),
		Stage:      t.stage.String(),
		Epoch:      t.epoch,
		BatchIdx:   t.batchIdx,
		GlobalStep: t.globalStep,
	}
}
