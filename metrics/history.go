package metrics

import (
	"sort"
)

// RecordKind distinguishes step flushes from epoch flushes.
type RecordKind string

const (
	RecordStep  RecordKind = "step"
	RecordEpoch RecordKind = "epoch"
)

// LogRecord is one flush of the logged-metrics view. Step is the number of
// completed training steps when the record was produced.
type LogRecord struct {
	Kind    RecordKind       `json:"kind"`
	Stage   string           `json:"stage"`
	Epoch   int              `json:"epoch"`
	Step    int              `json:"step"`
	Metrics map[string]Value `json:"metrics"`
}

// Names returns the published names carried by the record, sorted.
func (r LogRecord) Names() []string {
	return SortedKeys(r.Metrics)
}

func (r LogRecord) clone() LogRecord {
	r.Metrics = copyView(r.Metrics, "")
	return r
}

// SortedKeys returns the keys of a view in lexical order.
func SortedKeys(view map[string]Value) []string {
	keys := make([]string, 0, len(view))
	for k := range view {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
