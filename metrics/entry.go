package metrics

import (
	"github.com/darthwaydr007/pytorch-lightning/pkg/errors"
)

type sample struct {
	value  Value
	weight float64
}

// Entry holds the buffers of one (name, OnStep, OnEpoch) combination.
// Step and epoch buffers are independent: a step close drains only the step
// buffer, so epoch reductions always see every raw value of the epoch.
type Entry struct {
	name   string
	config LogConfig

	// namespaced entries publish their step part under a per-epoch name.
	namespaced     bool
	epochStepNames map[int]string
	stepName       string
	epochName      string
	alias          string

	shape    Value
	hasShape bool

	stepBuf  []sample
	epochBuf []sample

	lastStep  Value
	hasStep   bool
	lastEpoch Value
	hasEpoch  bool
}

func newEntry(name string, cfg LogConfig) *Entry {
	return &Entry{name: name, config: cfg}
}

// Name returns the name the entry was logged under.
func (e *Entry) Name() string { return e.name }

// Config returns the granularity and publication flags of the entry.
func (e *Entry) Config() LogConfig { return e.config }

// LastStepValue returns the most recent step reduction.
func (e *Entry) LastStepValue() (Value, bool) { return e.lastStep, e.hasStep }

// LastEpochValue returns the most recent epoch reduction.
func (e *Entry) LastEpochValue() (Value, bool) { return e.lastEpoch, e.hasEpoch }

// accepts reports an error when v does not match the shape of the values
// already recorded.
func (e *Entry) accepts(v Value) error {
	if e.hasShape && !e.shape.sameShape(v) {
		return errors.NewUnsupportedMetricShapeError(e.name,
			"shape changed from "+e.shape.shapeString()+" to "+v.shapeString(), v)
	}
	return nil
}

func (e *Entry) record(s sample) error {
	if err := e.accepts(s.value); err != nil {
		return err
	}
	if !e.hasShape {
		e.shape = s.value
		e.hasShape = true
	}
	if e.config.OnStep {
		e.stepBuf = append(e.stepBuf, s)
	}
	if e.config.OnEpoch {
		e.epochBuf = append(e.epochBuf, s)
	}
	return nil
}

func (e *Entry) pendingStep() bool { return len(e.stepBuf) > 0 }

func (e *Entry) pendingEpoch() bool { return len(e.epochBuf) > 0 }

// closeStep reduces and drains the step buffer. ok is false when the buffer
// was empty.
func (e *Entry) closeStep() (v Value, ok bool, err error) {
	if len(e.stepBuf) == 0 {
		return Value{}, false, nil
	}
	v, err = e.reduceSamples(e.stepBuf)
	e.stepBuf = e.stepBuf[:0]
	if err != nil {
		return Value{}, false, err
	}
	e.lastStep, e.hasStep = v, true
	return v, true, nil
}

// closeEpoch reduces and drains the epoch buffer.
func (e *Entry) closeEpoch() (v Value, ok bool, err error) {
	if len(e.epochBuf) == 0 {
		return Value{}, false, nil
	}
	v, err = e.reduceSamples(e.epochBuf)
	e.epochBuf = e.epochBuf[:0]
	if err != nil {
		return Value{}, false, err
	}
	e.lastEpoch, e.hasEpoch = v, true
	return v, true, nil
}

func (e *Entry) reduceSamples(buf []sample) (Value, error) {
	values := make([]Value, len(buf))
	weights := make([]float64, len(buf))
	for i, s := range buf {
		values[i] = s.value
		weights[i] = s.weight
	}
	return e.config.Reduce.reduce(e.name, values, weights)
}
