// Package sinks forwards logged-metrics flushes to external consumers:
// structured logs, Prometheus collectors and a SQLite history table.
//
// A sink receives every metrics.LogRecord the controller appends, in order.
// The training driver calls LogMetrics after each epoch with the records
// produced since the previous call.
package sinks

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/darthwaydr007/pytorch-lightning/metrics"
	"github.com/darthwaydr007/pytorch-lightning/pkg/errors"
)

// Sink consumes logged-metrics flushes.
type Sink interface {
	LogMetrics(ctx context.Context, record metrics.LogRecord) error
	Close() error
}

// Func adapts a function to a Sink with a no-op Close.
type Func func(ctx context.Context, record metrics.LogRecord) error

func (f Func) LogMetrics(ctx context.Context, record metrics.LogRecord) error { return f(ctx, record) }

func (Func) Close() error { return nil }

// Multi fans a record out to several sinks concurrently.
type Multi struct {
	sinks []Sink
}

// NewMulti creates a fan-out sink. Nil sinks are dropped.
func NewMulti(sinks ...Sink) *Multi {
	m := &Multi{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// LogMetrics forwards record to every sink concurrently. A failing sink does
// not cancel the others; their errors are joined.
func (m *Multi) LogMetrics(ctx context.Context, record metrics.LogRecord) error {
	var g errgroup.Group
	errs := make([]error, len(m.sinks))
	for i, s := range m.sinks {
		g.Go(func() error {
			errs[i] = s.LogMetrics(ctx, record)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Close closes every sink and joins their errors.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// flatten expands mapping values into "name/field" series so every sink
// stores plain scalars.
func flatten(record metrics.LogRecord) []series {
	var out []series
	for _, name := range record.Names() {
		v := record.Metrics[name]
		if !v.IsMapping() {
			out = append(out, series{name: name, value: v.Float()})
			continue
		}
		for _, k := range v.Keys() {
			f, _ := v.Field(k)
			out = append(out, series{name: name, field: k, value: f})
		}
	}
	return out
}

type series struct {
	name  string
	field string
	value float64
}

func (s series) key() string {
	if s.field == "" {
		return s.name
	}
	return s.name + "/" + s.field
}
