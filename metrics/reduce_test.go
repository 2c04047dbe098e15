package metrics

import (
	"math"
	"testing"

	"github.com/darthwaydr007/pytorch-lightning/pkg/errors"
)

func scalars(xs ...float64) []Value {
	out := make([]Value, len(xs))
	for i, x := range xs {
		out[i] = Scalar(x)
	}
	return out
}

func TestReduce(t *testing.T) {
	tests := []struct {
		name   string
		values []Value
		policy Reduction
		want   Value
	}{
		{name: "mean", values: scalars(1, 2, 3), policy: Mean, want: Scalar(2)},
		{name: "zero value is mean", values: scalars(1, 3), policy: Reduction{}, want: Scalar(2)},
		{name: "min", values: scalars(4, -1, 3), policy: Min, want: Scalar(-1)},
		{name: "max", values: scalars(4, -1, 3), policy: Max, want: Scalar(4)},
		{name: "sum", values: scalars(4, -1, 3), policy: Sum, want: Scalar(6)},
		{name: "singleton is returned unreduced", values: scalars(7), policy: Sum, want: Scalar(7)},
		{
			name:   "custom",
			values: scalars(1, 9, 4),
			policy: Custom("range", func(xs []float64) float64 {
				lo, hi := xs[0], xs[0]
				for _, x := range xs {
					lo, hi = math.Min(lo, x), math.Max(hi, x)
				}
				return hi - lo
			}),
			want: Scalar(8),
		},
		{
			name: "mapping is reduced per sub-key",
			values: []Value{
				Mapping(map[string]float64{"d1": 2, "d2": 1}),
				Mapping(map[string]float64{"d1": 4, "d2": 5}),
			},
			policy: Max,
			want:   Mapping(map[string]float64{"d1": 4, "d2": 5}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Reduce(tt.values, tt.policy)
			if err != nil {
				t.Fatalf("Reduce() error = %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Reduce() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReduceWeightedMean(t *testing.T) {
	got, err := ReduceWeighted(scalars(1, 4), []float64{1, 3}, Mean)
	if err != nil {
		t.Fatalf("ReduceWeighted() error = %v", err)
	}
	if math.Abs(got.Float()-3.25) > 1e-12 {
		t.Errorf("weighted mean = %v, want 3.25", got.Float())
	}

	// Weights do not change non-mean policies.
	got, err = ReduceWeighted(scalars(1, 4), []float64{10, 1}, Max)
	if err != nil || got.Float() != 4 {
		t.Errorf("weighted max = %v, %v", got, err)
	}

	if _, err := ReduceWeighted(scalars(1, 4), []float64{1}, Mean); err == nil {
		t.Errorf("expected an error for mismatched weights")
	}
}

func TestReduceEmpty(t *testing.T) {
	for _, policy := range []Reduction{Mean, Min, Max, Sum} {
		t.Run(policy.Name(), func(t *testing.T) {
			_, err := Reduce(nil, policy)
			var emptyErr *errors.EmptyReductionError
			if !errors.As(err, &emptyErr) {
				t.Fatalf("expected EmptyReductionError, got %v", err)
			}
			if emptyErr.Policy != policy.Name() {
				t.Errorf("Policy = %q, want %q", emptyErr.Policy, policy.Name())
			}
		})
	}
}

func TestReduceMixedShapes(t *testing.T) {
	_, err := Reduce([]Value{Scalar(1), Mapping(map[string]float64{"a": 1})}, Mean)
	var shapeErr *errors.UnsupportedMetricShapeError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("expected UnsupportedMetricShapeError, got %v", err)
	}
}

func TestParseReduction(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "mean", want: "mean"},
		{in: " MAX ", want: "max"},
		{in: "min", want: "min"},
		{in: "sum", want: "sum"},
		{in: "median", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseReduction(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseReduction() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got.Name() != tt.want {
				t.Errorf("ParseReduction() = %s, want %s", got.Name(), tt.want)
			}
		})
	}
}
