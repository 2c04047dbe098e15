// Package log defines standard attribute keys for training-metrics logging.
//
// Keys follow a hierarchical naming convention ("metric.name",
// "training.epoch") so log lines from the engine, the driver and sinks can be
// filtered consistently.

package log

// Run and component context.
const (
	// RunIDKey identifies one training run (one metrics controller).
	RunIDKey = "run.id"

	// ComponentKey identifies the package emitting the record.
	// Examples: "metrics", "trainer", "callbacks", "sinks"
	ComponentKey = "component"

	// StageKey is the driver stage: "train" or "validation".
	StageKey = "training.stage"

	// HookKey names the user hook being executed, e.g. "training_step".
	HookKey = "training.hook"
)

// Lifecycle position.
const (
	// EpochKey records the current epoch index.
	EpochKey = "training.epoch"

	// BatchIdxKey records the batch index inside the current epoch.
	BatchIdxKey = "training.batch_idx"

	// GlobalStepKey records the number of completed training steps.
	GlobalStepKey = "training.global_step"

	// BatchSizeKey records the inferred batch size used as sample weight.
	BatchSizeKey = "data.batch_size"

	// WindowStateKey records the controller window state.
	WindowStateKey = "window.state"
)

// Metric context.
const (
	// MetricNameKey is the name passed to Log.
	MetricNameKey = "metric.name"

	// PublishedNameKey is the key under which a value appears in a view.
	PublishedNameKey = "metric.published"

	// ReductionKey names the reduction policy ("mean", "max", ...).
	ReductionKey = "metric.reduction"

	// MetricValueKey records a reduced metric value.
	MetricValueKey = "metric.value"

	// MetricCountKey records how many metrics a flush carried.
	MetricCountKey = "metric.count"

	// RecordKindKey is "step" or "epoch" for a logged-metrics flush.
	RecordKindKey = "record.kind"
)

// Consumers.
const (
	// SinkKey names the sink receiving a flush: "zerolog", "prometheus", "sqlite".
	SinkKey = "sink.name"

	// MonitorKey names the metric watched by a callback.
	MonitorKey = "callback.monitor"

	// BestScoreKey records the best monitored score so far.
	BestScoreKey = "callback.best_score"

	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"
)

// Error context.
const (
	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"

	// StacktraceKey contains stack trace information for debugging.
	StacktraceKey = "error.stacktrace"
)

// Standard attribute values.
const (
	StageTrain      = "train"
	StageValidation = "validation"

	RecordKindStep  = "step"
	RecordKindEpoch = "epoch"
)
