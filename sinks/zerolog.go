package sinks

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"github.com/darthwaydr007/pytorch-lightning/metrics"
	"github.com/darthwaydr007/pytorch-lightning/pkg/log"
)

// ZerologSink writes one structured log line per record.
type ZerologSink struct {
	logger zerolog.Logger
	level  zerolog.Level
}

// ZerologOption configures a ZerologSink.
type ZerologOption func(*ZerologSink)

// WithZerologLevel sets the level of emitted lines (default info).
func WithZerologLevel(level zerolog.Level) ZerologOption {
	return func(s *ZerologSink) { s.level = level }
}

// NewZerologSink writes JSON lines to w.
func NewZerologSink(w io.Writer, opts ...ZerologOption) *ZerologSink {
	return NewZerologSinkFrom(zerolog.New(w).With().Timestamp().Logger(), opts...)
}

// NewZerologSinkFrom reuses an existing zerolog logger.
func NewZerologSinkFrom(logger zerolog.Logger, opts ...ZerologOption) *ZerologSink {
	s := &ZerologSink{
		logger: logger.With().Str(log.SinkKey, "zerolog").Logger(),
		level:  zerolog.InfoLevel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ZerologSink) LogMetrics(ctx context.Context, record metrics.LogRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	values := zerolog.Dict()
	for _, p := range flatten(record) {
		values = values.Float64(p.key(), p.value)
	}
	s.logger.WithLevel(s.level).
		Str(log.RecordKindKey, string(record.Kind)).
		Str(log.StageKey, record.Stage).
		Int(log.EpochKey, record.Epoch).
		Int(log.GlobalStepKey, record.Step).
		Dict("metrics", values).
		Msg("Metrics logged")
	return nil
}

func (s *ZerologSink) Close() error { return nil }
