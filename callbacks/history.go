package callbacks

import (
	"sync"

	"github.com/darthwaydr007/pytorch-lightning/metrics"
)

// RecordHistory snapshots the callback view after each completed epoch.
type RecordHistory struct {
	Base

	mu      sync.Mutex
	epochs  []int
	history map[string][]metrics.Value
}

// NewRecordHistory creates an empty recorder.
func NewRecordHistory() *RecordHistory {
	return &RecordHistory{history: make(map[string][]metrics.Value)}
}

// OnEpochComplete appends every published value. Names that appear in a
// later epoch are not back-filled.
func (r *RecordHistory) OnEpochComplete(env *Env) error {
	view := env.Metrics.CallbackMetrics(metrics.WithoutEpochCounter())
	r.mu.Lock()
	defer r.mu.Unlock()
	r.epochs = append(r.epochs, env.Epoch)
	for name, v := range view {
		r.history[name] = append(r.history[name], v)
	}
	return nil
}

// Epochs returns the completed epochs in order.
func (r *RecordHistory) Epochs() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.epochs...)
}

// Values returns the recorded values of one published name.
func (r *RecordHistory) Values(name string) []metrics.Value {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]metrics.Value(nil), r.history[name]...)
}

// Scalars returns the recorded values of a scalar metric as floats.
func (r *RecordHistory) Scalars(name string) []float64 {
	values := r.Values(name)
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v.Float()
	}
	return out
}

// Names returns every recorded name, sorted.
func (r *RecordHistory) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	view := make(map[string]metrics.Value, len(r.history))
	for name := range r.history {
		view[name] = metrics.Value{}
	}
	return metrics.SortedKeys(view)
}
