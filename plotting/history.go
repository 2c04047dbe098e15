// Package plotting renders logged-metrics history as line charts.
package plotting

import (
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/darthwaydr007/pytorch-lightning/metrics"
	"github.com/darthwaydr007/pytorch-lightning/pkg/errors"
)

// Series returns the points of a published name over the history, with the
// global step on the x axis. Mapping values are addressed as "name/field".
func Series(records []metrics.LogRecord, name string) plotter.XYs {
	var xys plotter.XYs
	for _, r := range records {
		y, ok := lookup(r, name)
		if !ok {
			continue
		}
		xys = append(xys, plotter.XY{X: float64(r.Step), Y: y})
	}
	return xys
}

func lookup(r metrics.LogRecord, name string) (float64, bool) {
	if v, ok := r.Metrics[name]; ok && !v.IsMapping() {
		return v.Float(), true
	}
	for i := len(name) - 1; i > 0; i-- {
		if name[i] != '/' {
			continue
		}
		if v, ok := r.Metrics[name[:i]]; ok && v.IsMapping() {
			return v.Field(name[i+1:])
		}
	}
	return 0, false
}

// History plots one line per name. Names without any point are an error.
func History(records []metrics.LogRecord, names ...string) (*plot.Plot, error) {
	if len(names) == 0 {
		return nil, errors.NewValidationError("names", "at least one metric name is required", names)
	}
	p := plot.New()
	p.Title.Text = "Metrics"
	p.X.Label.Text = "global step"
	p.Y.Label.Text = "value"
	p.Add(plotter.NewGrid())

	for i, name := range names {
		xys := Series(records, name)
		if len(xys) == 0 {
			return nil, errors.Newf("metric %q has no logged values", name)
		}
		line, points, err := plotter.NewLinePoints(xys)
		if err != nil {
			return nil, errors.Wrapf(err, "plot %s", name)
		}
		line.Color = plotutil.Color(i)
		points.Color = plotutil.Color(i)
		points.Shape = plotutil.Shape(i)
		p.Add(line, points)
		p.Legend.Add(name, line, points)
	}
	return p, nil
}

// Save renders History to path; the format follows the file extension.
func Save(path string, records []metrics.LogRecord, names ...string) error {
	p, err := History(records, names...)
	if err != nil {
		return err
	}
	return errors.Wrap(p.Save(6*vg.Inch, 4*vg.Inch, path), "save plot")
}
