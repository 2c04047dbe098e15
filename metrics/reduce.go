package metrics

import (
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/darthwaydr007/pytorch-lightning/pkg/errors"
)

// Reduction folds a sequence of values into one. The zero Reduction behaves
// as Mean.
type Reduction struct {
	name string
	fn   func(values, weights []float64) float64
}

var (
	// Mean is the weighted arithmetic mean; weights are batch sizes.
	Mean = Reduction{name: "mean", fn: func(v, w []float64) float64 { return stat.Mean(v, w) }}
	// Min keeps the smallest value.
	Min = Reduction{name: "min", fn: func(v, _ []float64) float64 { return floats.Min(v) }}
	// Max keeps the largest value.
	Max = Reduction{name: "max", fn: func(v, _ []float64) float64 { return floats.Max(v) }}
	// Sum adds all values.
	Sum = Reduction{name: "sum", fn: func(v, _ []float64) float64 { return floats.Sum(v) }}
)

var builtinReductions = map[string]Reduction{
	Mean.name: Mean,
	Min.name:  Min,
	Max.name:  Max,
	Sum.name:  Sum,
}

// Custom wraps a user reduction. fn receives a non-empty sequence it may keep.
func Custom(name string, fn func(values []float64) float64) Reduction {
	if fn == nil {
		return Mean
	}
	return Reduction{
		name: name,
		fn: func(v, _ []float64) float64 {
			return fn(append([]float64(nil), v...))
		},
	}
}

// ParseReduction resolves "mean", "min", "max" or "sum" (case-insensitive).
func ParseReduction(name string) (Reduction, error) {
	if r, ok := builtinReductions[strings.ToLower(strings.TrimSpace(name))]; ok {
		return r, nil
	}
	known := make([]string, 0, len(builtinReductions))
	for k := range builtinReductions {
		known = append(known, k)
	}
	sort.Strings(known)
	return Reduction{}, errors.NewValidationError("reduce_fx", "must be one of "+strings.Join(known, ", "), name)
}

// Name returns the policy name.
func (r Reduction) Name() string {
	return r.resolved().name
}

func (r Reduction) String() string {
	return r.Name()
}

func (r Reduction) resolved() Reduction {
	if r.fn == nil {
		return Mean
	}
	return r
}

// Reduce folds values with policy using equal weights.
func Reduce(values []Value, policy Reduction) (Value, error) {
	return policy.reduce("", values, nil)
}

// ReduceWeighted folds values with per-value weights. Only Mean uses weights.
func ReduceWeighted(values []Value, weights []float64, policy Reduction) (Value, error) {
	if weights != nil && len(weights) != len(values) {
		return Value{}, errors.NewValidationError("weights", "must have one weight per value", len(weights))
	}
	return policy.reduce("", values, weights)
}

// reduce applies the policy elementwise. A single value is returned as is.
func (r Reduction) reduce(metric string, values []Value, weights []float64) (Value, error) {
	p := r.resolved()
	if len(values) == 0 {
		return Value{}, errors.NewEmptyReductionError(metric, p.name)
	}
	if len(values) == 1 {
		return values[0], nil
	}

	first := values[0]
	for _, v := range values[1:] {
		if !first.sameShape(v) {
			return Value{}, errors.NewUnsupportedMetricShapeError(metric,
				"values in one window must share a shape, first was "+first.shapeString()+", got "+v.shapeString(), v)
		}
	}

	xs := make([]float64, len(values))
	if !first.IsMapping() {
		for i, v := range values {
			xs[i] = v.scalar
		}
		return Scalar(p.fn(xs, weights)), nil
	}

	out := make(map[string]float64, len(first.fields))
	for key := range first.fields {
		for i, v := range values {
			xs[i] = v.fields[key]
		}
		out[key] = p.fn(xs, weights)
	}
	return Value{fields: out}, nil
}
