package metrics

// ViewOption filters a view.
type ViewOption func(*viewFilter)

type viewFilter struct {
	skipCounter bool
}

// WithoutEpochCounter drops the synthetic epoch counter from the view.
func WithoutEpochCounter() ViewOption {
	return func(f *viewFilter) { f.skipCounter = true }
}

func (f viewFilter) skip() string {
	if f.skipCounter {
		return EpochCounterName
	}
	return ""
}

func newViewFilter(opts []ViewOption) viewFilter {
	var f viewFilter
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// LoggedMetrics returns the values sent to experiment loggers, including the
// epoch counter once an epoch has closed.
func (c *Controller) LoggedMetrics(opts ...ViewOption) map[string]Value {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyView(c.registry.logged, newViewFilter(opts).skip())
}

// ProgressBarMetrics returns the values of entries logged with WithProgBar.
// It never contains the epoch counter.
func (c *Controller) ProgressBarMetrics() map[string]Value {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyView(c.registry.progressBar, "")
}

// CallbackMetrics returns every published value visible to callbacks: the
// union of logger and progress-bar entries, bare aliases of dual-granularity
// entries and the epoch counter.
func (c *Controller) CallbackMetrics(opts ...ViewOption) map[string]Value {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyView(c.registry.callback, newViewFilter(opts).skip())
}

// Metric returns the current callback-view value of a published name.
func (c *Controller) Metric(name string) (Value, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.registry.callback[name]
	return v, ok
}

// EntryInfo describes one registered entry and the names it publishes under.
type EntryInfo struct {
	Name       string
	Config     LogConfig
	Namespaced bool
	StepName   string
	EpochName  string
	Alias      string
}

// Entries lists registered entries in creation order.
func (c *Controller) Entries() []EntryInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]EntryInfo, 0, len(c.registry.order))
	for _, e := range c.registry.order {
		out = append(out, EntryInfo{
			Name:       e.name,
			Config:     e.config,
			Namespaced: e.namespaced,
			StepName:   e.stepName,
			EpochName:  e.epochName,
			Alias:      e.alias,
		})
	}
	return out
}
