package metrics

import (
	"encoding/json"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/darthwaydr007/pytorch-lightning/pkg/errors"
)

type namedFloat float32

func TestToValue(t *testing.T) {
	tests := []struct {
		name    string
		raw     any
		want    Value
		wantErr bool
	}{
		{name: "float64", raw: 0.5, want: Scalar(0.5)},
		{name: "float32", raw: float32(0.25), want: Scalar(0.25)},
		{name: "int", raw: 3, want: Scalar(3)},
		{name: "uint8", raw: uint8(7), want: Scalar(7)},
		{name: "named float kind", raw: namedFloat(1.5), want: Scalar(1.5)},
		{name: "value passthrough", raw: Scalar(2), want: Scalar(2)},
		{name: "single element matrix", raw: mat.NewDense(1, 1, []float64{4}), want: Scalar(4)},
		{name: "single element vector", raw: mat.NewVecDense(1, []float64{-1}), want: Scalar(-1)},
		{name: "float mapping", raw: map[string]float64{"d1": 2, "d2": 1}, want: Mapping(map[string]float64{"d1": 2, "d2": 1})},
		{name: "any mapping", raw: map[string]any{"d1": 2, "d2": mat.NewDense(1, 1, []float64{3})}, want: Mapping(map[string]float64{"d1": 2, "d2": 3})},
		{name: "int mapping", raw: map[string]int{"k": 9}, want: Mapping(map[string]float64{"k": 9})},
		{name: "string", raw: "bad", wantErr: true},
		{name: "bool", raw: true, wantErr: true},
		{name: "nil", raw: nil, wantErr: true},
		{name: "multi element vector", raw: mat.NewVecDense(3, []float64{1, 2, 3}), wantErr: true},
		{name: "nested mapping", raw: map[string]any{"outer": map[string]float64{"inner": 1}}, wantErr: true},
		{name: "string leaf", raw: map[string]any{"k": "v"}, wantErr: true},
		{name: "empty mapping", raw: map[string]float64{}, wantErr: true},
		{name: "empty mapping value", raw: Mapping(map[string]float64{}), wantErr: true},
		{name: "empty mapping value pointer", raw: func() *Value { v := Mapping(nil); return &v }(), wantErr: true},
		{name: "non string keys", raw: map[int]float64{1: 1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToValue("m", tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ToValue() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var shapeErr *errors.UnsupportedMetricShapeError
				if !errors.As(err, &shapeErr) {
					t.Fatalf("expected UnsupportedMetricShapeError, got %T", err)
				}
				if shapeErr.Metric != "m" {
					t.Errorf("Metric = %q, want %q", shapeErr.Metric, "m")
				}
				return
			}
			if !got.Equal(tt.want) {
				t.Errorf("ToValue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValueAccessors(t *testing.T) {
	s := Scalar(1.5)
	if s.IsMapping() || s.Float() != 1.5 || s.Fields() != nil {
		t.Errorf("unexpected scalar accessors: %v", s)
	}

	src := map[string]float64{"b": 2, "a": 1}
	m := Mapping(src)
	src["a"] = 100
	if v, _ := m.Field("a"); v != 1 {
		t.Errorf("Mapping must copy its input, got a=%v", v)
	}
	if !math.IsNaN(m.Float()) {
		t.Errorf("Float() on a mapping should be NaN")
	}
	if got := m.String(); got != "{a: 1, b: 2}" {
		t.Errorf("String() = %q", got)
	}
	fields := m.Fields()
	fields["a"] = 7
	if v, _ := m.Field("a"); v != 1 {
		t.Errorf("Fields must return a copy")
	}
}

func TestValueMarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{name: "scalar", v: Scalar(0.5), want: `0.5`},
		{name: "mapping", v: Mapping(map[string]float64{"d2": 1, "d1": 2}), want: `{"d1":2,"d2":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.v)
			if err != nil {
				t.Fatalf("Marshal error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("Marshal() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestValueEqualShape(t *testing.T) {
	a := Mapping(map[string]float64{"x": 1})
	b := Mapping(map[string]float64{"y": 1})
	if a.Equal(b) {
		t.Errorf("mappings with different keys must differ")
	}
	if a.Equal(Scalar(1)) {
		t.Errorf("mapping and scalar must differ")
	}
	if !Scalar(math.NaN()).Equal(Scalar(math.NaN())) {
		t.Errorf("NaN scalars compare equal")
	}
}
