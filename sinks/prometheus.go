package sinks

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/darthwaydr007/pytorch-lightning/metrics"
	"github.com/darthwaydr007/pytorch-lightning/pkg/errors"
)

// PrometheusSink exposes the latest value of every published metric as a
// gauge and counts flushes by kind.
type PrometheusSink struct {
	runID   string
	values  *prometheus.GaugeVec
	steps   *prometheus.GaugeVec
	records *prometheus.CounterVec
}

// PrometheusOption configures a PrometheusSink.
type PrometheusOption func(*prometheusConfig)

type prometheusConfig struct {
	namespace  string
	registerer prometheus.Registerer
}

// WithNamespace prefixes collector names (default "lightning").
func WithNamespace(ns string) PrometheusOption {
	return func(c *prometheusConfig) { c.namespace = ns }
}

// WithRegisterer registers the collectors with r instead of the default
// registry.
func WithRegisterer(r prometheus.Registerer) PrometheusOption {
	return func(c *prometheusConfig) { c.registerer = r }
}

// NewPrometheusSink creates and registers the collectors for one run.
func NewPrometheusSink(runID string, opts ...PrometheusOption) (*PrometheusSink, error) {
	cfg := prometheusConfig{namespace: "lightning", registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &PrometheusSink{
		runID: runID,
		values: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.namespace,
				Name:      "metric_value",
				Help:      "Latest logged value per published metric name.",
			},
			[]string{"run_id", "metric", "stage"},
		),
		steps: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.namespace,
				Name:      "global_step",
				Help:      "Completed training steps at the last flush.",
			},
			[]string{"run_id"},
		),
		records: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.namespace,
				Name:      "log_records_total",
				Help:      "Logged-metrics flushes received, by kind.",
			},
			[]string{"run_id", "kind"},
		),
	}
	for _, c := range []prometheus.Collector{s.values, s.steps, s.records} {
		if err := cfg.registerer.Register(c); err != nil {
			return nil, errors.Wrap(err, "register prometheus collector")
		}
	}
	return s, nil
}

func (s *PrometheusSink) LogMetrics(ctx context.Context, record metrics.LogRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, p := range flatten(record) {
		s.values.WithLabelValues(s.runID, p.key(), record.Stage).Set(p.value)
	}
	s.steps.WithLabelValues(s.runID).Set(float64(record.Step))
	s.records.WithLabelValues(s.runID, string(record.Kind)).Inc()
	return nil
}

// Collectors returns the registered collectors.
func (s *PrometheusSink) Collectors() []prometheus.Collector {
	return []prometheus.Collector{s.values, s.steps, s.records}
}

func (s *PrometheusSink) Close() error { return nil }
