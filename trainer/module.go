package trainer

import (
	"sort"

	"github.com/darthwaydr007/pytorch-lightning/metrics"
	"github.com/darthwaydr007/pytorch-lightning/pkg/errors"
)

// StepOutput is the payload returned by a step hook. Training outputs must
// carry a "loss" key; a nil output skips the batch.
type StepOutput map[string]any

// Keys returns the sorted keys of the output.
func (o StepOutput) Keys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Loss returns the "loss" entry.
func (o StepOutput) Loss() (any, bool) {
	v, ok := o["loss"]
	return v, ok
}

// TrainingModule is the minimum a model provides to be fitted. Every hook
// receives the run's controller; it is the only way to log.
type TrainingModule interface {
	TrainingStep(ctl *metrics.Controller, batch any, batchIdx int) (StepOutput, error)
}

// TrainingStepEnder post-processes each training step output.
type TrainingStepEnder interface {
	TrainingStepEnd(ctl *metrics.Controller, out StepOutput) (StepOutput, error)
}

// TrainingEpochEnder receives every training output of the epoch.
type TrainingEpochEnder interface {
	TrainingEpochEnd(ctl *metrics.Controller, outputs []StepOutput) error
}

// TrainEpochStarter runs after the epoch window opened.
type TrainEpochStarter interface {
	OnTrainEpochStart(ctl *metrics.Controller) error
}

// ValidationModule runs a validation loop after the training batches.
type ValidationModule interface {
	ValidationStep(ctl *metrics.Controller, batch any, batchIdx int) (StepOutput, error)
}

// ValidationEpochEnder receives every validation output of the epoch.
type ValidationEpochEnder interface {
	ValidationEpochEnd(ctl *metrics.Controller, outputs []StepOutput) error
}

// BatchSplitter splits a batch along its time dimension for truncated
// back-propagation through time. Without it SplitTimeDimension is used.
type BatchSplitter interface {
	TBPTTSplitBatch(batch any, splitSize int) ([]any, error)
}

// DataLoader provides indexed batches.
type DataLoader interface {
	Len() int
	Batch(i int) (any, error)
}

// SliceLoader serves pre-built batches.
type SliceLoader []any

func (l SliceLoader) Len() int { return len(l) }

func (l SliceLoader) Batch(i int) (any, error) {
	if i < 0 || i >= len(l) {
		return nil, errors.Newf("batch index %d out of range [0, %d)", i, len(l))
	}
	return l[i], nil
}

// RepeatLoader serves the same batch n times.
type RepeatLoader struct {
	Item  any
	Count int
}

func (l RepeatLoader) Len() int { return l.Count }

func (l RepeatLoader) Batch(i int) (any, error) {
	if i < 0 || i >= l.Count {
		return nil, errors.Newf("batch index %d out of range [0, %d)", i, l.Count)
	}
	return l.Item, nil
}
