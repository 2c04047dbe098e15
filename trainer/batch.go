package trainer

import (
	"reflect"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/darthwaydr007/pytorch-lightning/pkg/errors"
)

var matrixType = reflect.TypeOf((*mat.Matrix)(nil)).Elem()

// InferBatchSize returns the number of samples in a batch: the row count of
// the first matrix or the outer length of the first numeric slice found, walking
// maps in key order and slices from their first element. String data is
// ignored. It falls back to 1.
func InferBatchSize(batch any) int {
	if n, ok := batchSize(reflect.ValueOf(batch)); ok && n > 0 {
		return n
	}
	return 1
}

func batchSize(v reflect.Value) (int, bool) {
	for v.IsValid() && (v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer) {
		if v.Type().Implements(matrixType) && !v.IsNil() {
			break
		}
		if v.IsNil() {
			return 0, false
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return 0, false
	}
	if v.Type().Implements(matrixType) {
		r, _ := v.Interface().(mat.Matrix).Dims()
		return r, true
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			return 0, false
		}
		if isNumericTensor(v.Type()) {
			return v.Len(), true
		}
		for i := 0; i < v.Len(); i++ {
			if n, ok := batchSize(v.Index(i)); ok {
				return n, true
			}
		}
	case reflect.Map:
		keys := v.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return keyString(keys[i]) < keyString(keys[j]) })
		for _, k := range keys {
			if n, ok := batchSize(v.MapIndex(k)); ok {
				return n, true
			}
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if !v.Type().Field(i).IsExported() {
				continue
			}
			if n, ok := batchSize(v.Field(i)); ok {
				return n, true
			}
		}
	}
	return 0, false
}

func keyString(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	return k.Type().String()
}

// isNumericTensor reports whether t is a (possibly nested) slice or array
// of numbers, whose outer length is the batch dimension.
func isNumericTensor(t reflect.Type) bool {
	for t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		t = t.Elem()
	}
	return isNumericKind(t.Kind())
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// SplitTimeDimension splits a batch into chunks of splitSize time steps.
// The batch is a single item or a []any tuple; matrices are split by column
// and [][]float64 by inner index, other items are repeated in every chunk.
func SplitTimeDimension(batch any, splitSize int) ([]any, error) {
	if splitSize < 1 {
		return nil, errors.NewValidationError("truncated_bptt_steps", "must be at least 1", splitSize)
	}
	items, tuple := batch.([]any)
	if !tuple {
		items = []any{batch}
	}

	steps := -1
	for _, item := range items {
		n, ok := timeLength(item)
		if !ok {
			continue
		}
		if steps >= 0 && n != steps {
			return nil, errors.NewValidationError("batch", "time dimensions differ between batch items", n)
		}
		steps = n
	}
	if steps < 0 {
		return nil, errors.NewValidationError("batch", "no item has a time dimension to split", batch)
	}

	var chunks []any
	for start := 0; start < steps; start += splitSize {
		end := min(start+splitSize, steps)
		chunk := make([]any, len(items))
		for i, item := range items {
			chunk[i] = sliceTime(item, start, end)
		}
		if tuple {
			chunks = append(chunks, chunk)
		} else {
			chunks = append(chunks, chunk[0])
		}
	}
	return chunks, nil
}

func timeLength(item any) (int, bool) {
	switch x := item.(type) {
	case *mat.Dense:
		_, c := x.Dims()
		return c, true
	case [][]float64:
		if len(x) == 0 {
			return 0, false
		}
		return len(x[0]), true
	}
	return 0, false
}

func sliceTime(item any, start, end int) any {
	switch x := item.(type) {
	case *mat.Dense:
		r, _ := x.Dims()
		return x.Slice(0, r, start, end)
	case [][]float64:
		out := make([][]float64, len(x))
		for i, row := range x {
			out[i] = row[start:end]
		}
		return out
	}
	return item
}
