package callbacks

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/darthwaydr007/pytorch-lightning/metrics"
)

// ProgressReporter prints the progress-bar view every period batches and
// the callback view when an epoch completes.
type ProgressReporter struct {
	Base

	out    io.Writer
	period int
}

// NewProgressReporter writes progress lines to out.
func NewProgressReporter(out io.Writer, period int) *ProgressReporter {
	if period <= 0 {
		period = 1
	}
	return &ProgressReporter{out: out, period: period}
}

// OnBatchEnd prints the progress-bar metrics.
func (p *ProgressReporter) OnBatchEnd(env *Env) error {
	if (env.BatchIdx+1)%p.period != 0 {
		return nil
	}
	view := env.Metrics.ProgressBarMetrics()
	if len(view) == 0 {
		return nil
	}
	_, err := fmt.Fprintf(p.out, "[epoch %d][batch %d]%s\n", env.Epoch, env.BatchIdx, formatView(view))
	return err
}

// OnEpochComplete prints the epoch summary.
func (p *ProgressReporter) OnEpochComplete(env *Env) error {
	view := env.Metrics.CallbackMetrics(metrics.WithoutEpochCounter())
	_, err := fmt.Fprintf(p.out, "[epoch %d] done%s\n", env.Epoch, formatView(view))
	return err
}

func formatView(view map[string]metrics.Value) string {
	var b strings.Builder
	for _, name := range metrics.SortedKeys(view) {
		b.WriteString("\t")
		b.WriteString(name)
		b.WriteString(": ")
		v := view[name]
		if v.IsMapping() {
			b.WriteString(v.String())
			continue
		}
		fmt.Fprintf(&b, "%.6f", v.Float())
	}
	return b.String()
}

// TimeLimit stops training once the elapsed time since OnTrainStart exceeds
// maxDuration. The check runs after every batch.
type TimeLimit struct {
	Base

	maxDuration time.Duration
	start       time.Time
	now         func() time.Time
}

// NewTimeLimit creates a TimeLimit callback.
func NewTimeLimit(maxDuration time.Duration) *TimeLimit {
	return &TimeLimit{maxDuration: maxDuration, now: time.Now}
}

func (tl *TimeLimit) OnTrainStart(*Env) error {
	tl.start = tl.now()
	return nil
}

func (tl *TimeLimit) OnBatchEnd(env *Env) error {
	if tl.now().Sub(tl.start) > tl.maxDuration {
		env.StopTraining = true
	}
	return nil
}
