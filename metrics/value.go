// Package metrics implements the training-loop metrics aggregation engine:
// values logged during steps and epochs are buffered per metric, reduced at
// window boundaries and published into three read-only views (logged
// metrics, progress-bar metrics and callback metrics).
//
// A Controller is scoped to one training run and is passed explicitly to
// every hook that logs; there is no package-level metric state.
//
//	ctl := metrics.NewController()
//	ctl.StartEpoch(0)
//	_ = ctl.StartStep(0)
//	_ = ctl.Log("loss", 0.42, metrics.WithOnStep(true), metrics.WithOnEpoch(true))
//	_ = ctl.EndStep()
//	_ = ctl.EndEpoch()
//	ctl.LoggedMetrics() // loss_step, loss_epoch, epoch
package metrics

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/darthwaydr007/pytorch-lightning/pkg/errors"
)

// Value is a scalar or a one-level mapping from sub-key to scalar.
// Values are immutable once built.
type Value struct {
	scalar float64
	fields map[string]float64
}

// Scalar returns a scalar Value.
func Scalar(v float64) Value {
	return Value{scalar: v}
}

// Mapping returns a mapping Value holding a copy of m.
func Mapping(m map[string]float64) Value {
	fields := make(map[string]float64, len(m))
	for k, v := range m {
		fields[k] = v
	}
	return Value{fields: fields}
}

// IsMapping reports whether v is a mapping value.
func (v Value) IsMapping() bool {
	return v.fields != nil
}

// Float returns the scalar. Mapping values return NaN.
func (v Value) Float() float64 {
	if v.fields != nil {
		return math.NaN()
	}
	return v.scalar
}

// Field returns one sub-key of a mapping value.
func (v Value) Field(key string) (float64, bool) {
	f, ok := v.fields[key]
	return f, ok
}

// Fields returns a copy of the sub-keys of a mapping value, nil for scalars.
func (v Value) Fields() map[string]float64 {
	if v.fields == nil {
		return nil
	}
	out := make(map[string]float64, len(v.fields))
	for k, f := range v.fields {
		out[k] = f
	}
	return out
}

// Keys returns the sorted sub-keys of a mapping value.
func (v Value) Keys() []string {
	keys := make([]string, 0, len(v.fields))
	for k := range v.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal reports whether two values have the same shape and contents.
func (v Value) Equal(o Value) bool {
	if !v.sameShape(o) {
		return false
	}
	if v.fields == nil {
		return v.scalar == o.scalar || (math.IsNaN(v.scalar) && math.IsNaN(o.scalar))
	}
	for k, f := range v.fields {
		if o.fields[k] != f {
			return false
		}
	}
	return true
}

func (v Value) sameShape(o Value) bool {
	if (v.fields == nil) != (o.fields == nil) {
		return false
	}
	if len(v.fields) != len(o.fields) {
		return false
	}
	for k := range v.fields {
		if _, ok := o.fields[k]; !ok {
			return false
		}
	}
	return true
}

func (v Value) shapeString() string {
	if v.fields == nil {
		return "scalar"
	}
	return "mapping{" + strings.Join(v.Keys(), ",") + "}"
}

func (v Value) String() string {
	if v.fields == nil {
		return strconv.FormatFloat(v.scalar, 'g', -1, 64)
	}
	parts := make([]string, 0, len(v.fields))
	for _, k := range v.Keys() {
		parts = append(parts, k+": "+strconv.FormatFloat(v.fields[k], 'g', -1, 64))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// MarshalJSON encodes scalars as numbers and mappings as objects.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.fields == nil {
		return json.Marshal(v.scalar)
	}
	return json.Marshal(v.fields)
}

// ToValue converts a logged Go value into a Value.
//
// Accepted: integer and float kinds, Value, gonum matrices or vectors with
// exactly one element, and string-keyed maps whose leaves are any of those
// scalar forms. Everything else fails with UnsupportedMetricShapeError.
func ToValue(name string, raw any) (Value, error) {
	switch x := raw.(type) {
	case Value:
		if x.IsMapping() && len(x.fields) == 0 {
			return Value{}, errors.NewUnsupportedMetricShapeError(name, "empty mapping", raw)
		}
		return x, nil
	case *Value:
		if x == nil {
			return Value{}, errors.NewUnsupportedMetricShapeError(name, "nil value", raw)
		}
		return ToValue(name, *x)
	case map[string]float64:
		if len(x) == 0 {
			return Value{}, errors.NewUnsupportedMetricShapeError(name, "empty mapping", raw)
		}
		return Mapping(x), nil
	}

	if f, ok, err := scalarOf(name, raw); ok || err != nil {
		return Scalar(f), err
	}

	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.Map {
		return Value{}, errors.NewUnsupportedMetricShapeError(name, "expected a number, a single-element tensor or a mapping of numbers", raw)
	}
	if rv.Type().Key().Kind() != reflect.String {
		return Value{}, errors.NewUnsupportedMetricShapeError(name, "mapping keys must be strings", raw)
	}
	if rv.Len() == 0 {
		return Value{}, errors.NewUnsupportedMetricShapeError(name, "empty mapping", raw)
	}

	fields := make(map[string]float64, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		key := iter.Key().String()
		leaf := iter.Value().Interface()
		if isMapping(leaf) {
			return Value{}, errors.NewUnsupportedMetricShapeError(name, fmt.Sprintf("mapping '%s' is nested more than one level", key), raw)
		}
		f, ok, err := scalarOf(name, leaf)
		if err != nil {
			return Value{}, err
		}
		if !ok {
			return Value{}, errors.NewUnsupportedMetricShapeError(name, fmt.Sprintf("leaf '%s' is not numeric", key), leaf)
		}
		fields[key] = f
	}
	return Value{fields: fields}, nil
}

// scalarOf reports ok=false when raw is not a scalar form at all, and an
// error when it is tensor-like but not a single element.
func scalarOf(name string, raw any) (float64, bool, error) {
	switch x := raw.(type) {
	case nil:
		return 0, false, nil
	case Value:
		if x.IsMapping() {
			return 0, false, nil
		}
		return x.scalar, true, nil
	case float64:
		return x, true, nil
	case float32:
		return float64(x), true, nil
	case int:
		return float64(x), true, nil
	case int64:
		return float64(x), true, nil
	case mat.Matrix:
		r, c := x.Dims()
		if r*c != 1 {
			return 0, false, errors.NewUnsupportedMetricShapeError(name, fmt.Sprintf("tensor has %dx%d elements, expected exactly one", r, c), raw)
		}
		return x.At(0, 0), true, nil
	}

	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true, nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true, nil
	}
	return 0, false, nil
}

func isMapping(v any) bool {
	if mv, ok := v.(Value); ok {
		return mv.IsMapping()
	}
	return v != nil && reflect.ValueOf(v).Kind() == reflect.Map
}
