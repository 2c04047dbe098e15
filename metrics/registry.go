package metrics

import (
	"github.com/darthwaydr007/pytorch-lightning/core/lifecycle"
	"github.com/darthwaydr007/pytorch-lightning/pkg/errors"
)

type entryKey struct {
	name    string
	stage   lifecycle.Stage
	onStep  bool
	onEpoch bool
}

func newEntryKey(name string, cfg LogConfig, stage lifecycle.Stage) entryKey {
	return entryKey{name: name, stage: stage, onStep: cfg.OnStep, onEpoch: cfg.OnEpoch}
}

func (k entryKey) granularity() string {
	return LogConfig{OnStep: k.onStep, OnEpoch: k.onEpoch}.granularity()
}

// registry owns every entry of a run and the three published views.
// It is not safe for concurrent use; Controller serializes access.
type registry struct {
	entries  map[entryKey]*Entry
	order    []*Entry
	declared map[string]entryKey
	names    *nameTable

	logged      map[string]Value
	progressBar map[string]Value
	callback    map[string]Value
}

func newRegistry() *registry {
	return &registry{
		entries:     make(map[entryKey]*Entry),
		declared:    make(map[string]entryKey),
		names:       newNameTable(),
		logged:      make(map[string]Value),
		progressBar: make(map[string]Value),
		callback:    make(map[string]Value),
	}
}

// lookup returns the existing entry for (name, stage, granularity) without
// creating one.
func (r *registry) lookup(name string, cfg LogConfig, stage lifecycle.Stage) *Entry {
	return r.entries[newEntryKey(name, cfg, stage)]
}

// resolve returns the entry for (name, stage, cfg.OnStep, cfg.OnEpoch),
// creating it on first use. The first combination seen for a name is its
// declaration; a later different combination, including the same flags in
// the other stage, gets a namespaced entry and a warning.
func (r *registry) resolve(name string, cfg LogConfig, epoch int, stage lifecycle.Stage) (*Entry, *errors.MetricCollisionWarning) {
	key := newEntryKey(name, cfg, stage)
	if e, ok := r.entries[key]; ok {
		return e, nil
	}

	e := newEntry(name, cfg)
	declared, seen := r.declared[name]
	collided := seen && declared != key
	if !seen {
		r.declared[name] = key
	}
	e.namespaced = collided || stage == lifecycle.StageValidation

	var fellBack, c bool
	if cfg.OnStep {
		if e.namespaced {
			_, c = r.claimNamespacedStep(e, epoch)
		} else {
			preferred := name
			if cfg.OnEpoch {
				preferred = stepName(name)
			}
			e.stepName, c = r.names.claim(preferred, e, epoch)
		}
		fellBack = fellBack || c
	}
	if cfg.OnEpoch {
		preferred := name
		if cfg.OnStep || collided {
			preferred = epochName(name)
		}
		e.epochName, c = r.names.claim(preferred, e, epoch)
		fellBack = fellBack || c
	}
	if cfg.OnStep && cfg.OnEpoch && !collided {
		if r.names.tryClaim(name, e) {
			e.alias = name
		} else {
			fellBack = true
		}
	}

	r.entries[key] = e
	r.order = append(r.order, e)

	if !collided && !fellBack {
		return e, nil
	}
	declaredAs, requestedAs := cfg.granularity(), cfg.granularity()
	if seen {
		declaredAs = declared.granularity()
		if declared.stage != stage {
			declaredAs += " in " + declared.stage.String()
			requestedAs += " in " + stage.String()
		}
	}
	return e, errors.NewMetricCollisionWarning(name, declaredAs, requestedAs, r.publishedNames(e, epoch), epoch)
}

// publishedNames lists the names e holds in epoch.
func (r *registry) publishedNames(e *Entry, epoch int) []string {
	var names []string
	if e.config.OnStep {
		if e.namespaced {
			names = append(names, e.epochStepNames[epoch])
		} else {
			names = append(names, e.stepName)
		}
	}
	if e.config.OnEpoch {
		names = append(names, e.epochName)
	}
	if e.alias != "" {
		names = append(names, e.alias)
	}
	return names
}

// publishStep writes a closed step value. Namespaced entries resolve their
// step name against the epoch of the close. logged reports whether the value
// entered the logged view.
func (r *registry) publishStep(e *Entry, v Value, epoch int, flush bool) (name string, logged bool, warning *errors.MetricCollisionWarning) {
	name = e.stepName
	if e.namespaced {
		var fellBack bool
		name, fellBack = r.claimNamespacedStep(e, epoch)
		if fellBack {
			warning = errors.NewMetricCollisionWarning(e.name, r.declared[e.name].granularity(), e.config.granularity(), []string{name}, epoch)
		}
	}
	return name, r.publish(e, name, v, flush), warning
}

// claimNamespacedStep returns the step name of a namespaced entry for epoch,
// claiming it on first use. fellBack is true only on the claim that fell
// back.
func (r *registry) claimNamespacedStep(e *Entry, epoch int) (name string, fellBack bool) {
	if cached, ok := e.epochStepNames[epoch]; ok {
		return cached, false
	}
	name, fellBack = r.names.claim(namespacedStepName(e.name, epoch), e, epoch)
	if e.epochStepNames == nil {
		e.epochStepNames = make(map[int]string)
	}
	e.epochStepNames[epoch] = name
	return name, fellBack
}

// publishEpoch writes a closed epoch value; epoch values are always flushed.
func (r *registry) publishEpoch(e *Entry, v Value) (name string, logged bool) {
	return e.epochName, r.publish(e, e.epochName, v, true)
}

func (r *registry) publish(e *Entry, name string, v Value, flush bool) bool {
	cfg := e.config
	if !cfg.ProgBar && !cfg.Logger {
		return false
	}
	if cfg.ProgBar {
		r.progressBar[name] = v
	}
	r.callback[name] = v
	if e.alias != "" {
		r.callback[e.alias] = v
	}
	if cfg.Logger && flush {
		r.logged[name] = v
		return true
	}
	return false
}

func (r *registry) publishCounter(epoch int) {
	v := Scalar(float64(epoch))
	r.logged[EpochCounterName] = v
	r.callback[EpochCounterName] = v
}

// pending returns entries with values waiting in the step (or epoch) buffer,
// in creation order.
func (r *registry) pending(step bool) []*Entry {
	var out []*Entry
	for _, e := range r.order {
		if (step && e.pendingStep()) || (!step && e.pendingEpoch()) {
			out = append(out, e)
		}
	}
	return out
}

func copyView(src map[string]Value, skip string) map[string]Value {
	out := make(map[string]Value, len(src))
	for k, v := range src {
		if k == skip {
			continue
		}
		out[k] = v
	}
	return out
}
