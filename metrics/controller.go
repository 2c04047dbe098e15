package metrics

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/darthwaydr007/pytorch-lightning/core/lifecycle"
	"github.com/darthwaydr007/pytorch-lightning/pkg/errors"
	"github.com/darthwaydr007/pytorch-lightning/pkg/log"
)

// Controller aggregates the metrics of one training run. All methods are
// safe for concurrent use; boundary calls are serialized with logging calls.
type Controller struct {
	mu sync.RWMutex

	runID          string
	logEveryNSteps int
	batchSize      int

	tracker  *lifecycle.Tracker
	registry *registry
	history  []LogRecord
	logger   log.Logger
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithLogEveryNSteps flushes training-step values to the logged view only on
// every n-th global step. Values below 1 mean every step.
func WithLogEveryNSteps(n int) ControllerOption {
	return func(c *Controller) {
		if n < 1 {
			n = 1
		}
		c.logEveryNSteps = n
	}
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) ControllerOption {
	return func(c *Controller) {
		if id != "" {
			c.runID = id
		}
	}
}

// WithControllerLogger sets the logger used for boundary diagnostics.
func WithControllerLogger(l log.Logger) ControllerOption {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewController creates an Idle controller.
func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		runID:          uuid.NewString(),
		logEveryNSteps: 1,
		batchSize:      1,
		tracker:        lifecycle.NewTracker(),
		registry:       newRegistry(),
		logger:         log.GetLoggerWithName("metrics"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(log.RunIDKey, c.runID)
	return c
}

// RunID returns the identifier of this run.
func (c *Controller) RunID() string { return c.runID }

// LogEveryNSteps returns the training-step flush interval.
func (c *Controller) LogEveryNSteps() int { return c.logEveryNSteps }

// State returns the current window state.
func (c *Controller) State() lifecycle.State { return c.tracker.Current() }

// Snapshot returns the window position for diagnostics.
func (c *Controller) Snapshot() lifecycle.Snapshot { return c.tracker.Snapshot() }

// Epoch returns the index of the open (or last closed) epoch.
func (c *Controller) Epoch() int { return c.tracker.Epoch() }

// GlobalStep returns the number of completed training steps.
func (c *Controller) GlobalStep() int { return c.tracker.GlobalStep() }

// StartEpoch opens the epoch window. It is a no-op when one is already open.
func (c *Controller) StartEpoch(epoch int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.tracker.OpenEpoch(epoch) {
		c.logger.Debug("Epoch already open", log.EpochKey, c.tracker.Epoch())
		return
	}
	c.batchSize = 1
	c.logger.Debug("Epoch opened", log.EpochKey, epoch)
}

// StartStep opens a step window inside the open epoch, closing a step that is
// still open. It fails with NoOpenWindowError when no epoch is open.
func (c *Controller) StartStep(batchIdx int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tracker.Current() == lifecycle.Idle {
		return errors.NewNoOpenWindowError("StartStep", "")
	}
	var closeErr error
	if c.tracker.Current() == lifecycle.StepOpen {
		closeErr = c.endStepLocked()
	}
	if err := c.tracker.OpenStep(batchIdx); err != nil {
		return err
	}
	c.batchSize = 1
	return closeErr
}

// SetBatchSize sets the weight of values logged without WithBatchSize.
func (c *Controller) SetBatchSize(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < 1 {
		n = 1
	}
	c.batchSize = n
}

// SetStage switches subsequent windows between training and validation.
func (c *Controller) SetStage(stage lifecycle.Stage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracker.SetStage(stage)
}

// Stage returns the current stage.
func (c *Controller) Stage() lifecycle.Stage { return c.tracker.Stage() }

// Log records one value under name. The value must be a number, a
// single-element gonum matrix or a one-level string-keyed mapping of those.
func (c *Controller) Log(name string, value any, opts ...LogOption) error {
	v, err := ToValue(name, value)
	if err != nil {
		return err
	}
	req := newLogRequest(opts)

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logLocked(name, v, req)
}

// LogDict logs every entry of values with the same options. Every value is
// converted and checked against its existing entry before anything is
// recorded, so a failing key leaves no partial state. Keys are logged in
// sorted order.
func (c *Controller) LogDict(values map[string]any, opts ...LogOption) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	converted := make([]Value, len(keys))
	for i, k := range keys {
		v, err := ToValue(k, values[k])
		if err != nil {
			return err
		}
		converted[i] = v
	}
	req := newLogRequest(opts)

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, k := range keys {
		if _, err := c.checkLocked(k, converted[i], req); err != nil {
			return err
		}
	}
	for i, k := range keys {
		if err := c.logLocked(k, converted[i], req); err != nil {
			return err
		}
	}
	return nil
}

// checkLocked validates a log call without side effects and returns the
// resolved configuration.
func (c *Controller) checkLocked(name string, v Value, req logRequest) (LogConfig, error) {
	if name == "" {
		return LogConfig{}, errors.NewValidationError("name", "metric name must not be empty", name)
	}
	state := c.tracker.Current()
	if state == lifecycle.Idle {
		return LogConfig{}, errors.NewNoOpenWindowError("Log", name)
	}
	cfg := req.resolve(state, c.tracker.Stage(), c.batchSize)
	if e := c.registry.lookup(name, cfg, c.tracker.Stage()); e != nil {
		if err := e.accepts(v); err != nil {
			return LogConfig{}, err
		}
	}
	return cfg, nil
}

func (c *Controller) logLocked(name string, v Value, req logRequest) error {
	cfg, err := c.checkLocked(name, v, req)
	if err != nil {
		return err
	}
	stage := c.tracker.Stage()
	e, warning := c.registry.resolve(name, cfg, c.tracker.Epoch(), stage)
	if warning != nil {
		errors.Warn(warning)
	}
	return e.record(sample{value: v, weight: float64(cfg.BatchSize)})
}

// EndStep closes the open step: step buffers are reduced and published to the
// progress-bar and callback views. Training steps reach the logged view and
// the history only on every LogEveryNSteps-th global step; validation steps
// always do. It is a no-op when no step is open.
func (c *Controller) EndStep() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endStepLocked()
}

func (c *Controller) endStepLocked() error {
	if c.tracker.Current() != lifecycle.StepOpen {
		return nil
	}
	stage := c.tracker.Stage()
	completed := c.tracker.GlobalStep()
	if stage == lifecycle.StageTrain {
		completed++
	}
	flush := stage == lifecycle.StageValidation || completed%c.logEveryNSteps == 0
	c.tracker.CloseStep()

	record, err := c.closeStepBuffers(flush)
	if flush && len(record.Metrics) > 0 {
		c.appendRecord(record)
	}
	return err
}

// closeStepBuffers reduces every pending step buffer of the open epoch.
func (c *Controller) closeStepBuffers(flush bool) (LogRecord, error) {
	epoch := c.tracker.Epoch()
	record := LogRecord{
		Kind:    RecordStep,
		Stage:   c.tracker.Stage().String(),
		Epoch:   epoch,
		Step:    c.tracker.GlobalStep(),
		Metrics: make(map[string]Value),
	}

	var errs []error
	for _, e := range c.registry.pending(true) {
		v, ok, err := e.closeStep()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !ok {
			continue
		}
		name, logged, warning := c.registry.publishStep(e, v, epoch, flush)
		if warning != nil {
			errors.Warn(warning)
		}
		if logged {
			record.Metrics[name] = v
		}
	}
	if flush && len(record.Metrics) > 0 {
		c.registry.publishCounter(epoch)
		record.Metrics[EpochCounterName] = Scalar(float64(epoch))
	}
	return record, errors.Join(errs...)
}

// EndEpoch closes any open step, reduces every epoch buffer, publishes the
// results together with the epoch counter and returns to Idle. Calling it
// again without a new StartEpoch is a no-op.
func (c *Controller) EndEpoch() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tracker.Current() == lifecycle.Idle {
		return nil
	}
	var errs []error
	if err := c.endStepLocked(); err != nil {
		errs = append(errs, err)
	}

	// Step-granular values logged outside a step window, e.g. from an epoch
	// hook, close with the epoch.
	record, err := c.closeStepBuffers(true)
	if err != nil {
		errs = append(errs, err)
	}
	record.Kind = RecordEpoch

	epoch := c.tracker.Epoch()
	for _, e := range c.registry.pending(false) {
		v, ok, err := e.closeEpoch()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !ok {
			continue
		}
		if name, logged := c.registry.publishEpoch(e, v); logged {
			record.Metrics[name] = v
		}
	}
	c.registry.publishCounter(epoch)
	record.Metrics[EpochCounterName] = Scalar(float64(epoch))
	c.appendRecord(record)

	c.tracker.CloseEpoch()
	c.logger.Debug("Epoch closed",
		log.EpochKey, epoch,
		log.GlobalStepKey, c.tracker.GlobalStep(),
		log.MetricCountKey, len(record.Metrics),
	)
	return errors.Join(errs...)
}

func (c *Controller) appendRecord(r LogRecord) {
	c.history = append(c.history, r)
	c.logger.Debug("Metrics flushed",
		log.RecordKindKey, string(r.Kind),
		log.EpochKey, r.Epoch,
		log.GlobalStepKey, r.Step,
		log.MetricCountKey, len(r.Metrics),
	)
}

// History returns every logged-metrics flush so far, oldest first.
func (c *Controller) History() []LogRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]LogRecord, len(c.history))
	for i, r := range c.history {
		out[i] = r.clone()
	}
	return out
}

// HistorySince returns the records appended after the first n.
func (c *Controller) HistorySince(n int) []LogRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if n < 0 {
		n = 0
	}
	if n >= len(c.history) {
		return nil
	}
	out := make([]LogRecord, 0, len(c.history)-n)
	for _, r := range c.history[n:] {
		out = append(out, r.clone())
	}
	return out
}
