// Package lightning is a training-loop metrics aggregation engine for Go.
//
// Model code logs scalar or mapping values from its step and epoch hooks.
// The engine buffers them per metric, reduces them when a step or epoch
// window closes, and publishes the results into three views: logged
// metrics for experiment loggers, progress-bar metrics, and callback
// metrics for early stopping and checkpointing.
//
// # Quick Start
//
//	type model struct{}
//
//	func (model) TrainingStep(ctl *metrics.Controller, batch any, i int) (trainer.StepOutput, error) {
//	    loss := compute(batch)
//	    if err := ctl.Log("train_loss", loss, metrics.WithOnEpoch(true)); err != nil {
//	        return nil, err
//	    }
//	    return trainer.StepOutput{"loss": loss}, nil
//	}
//
//	tr, err := trainer.New(trainer.DefaultConfig(),
//	    trainer.WithSinks(sinks.NewZerologSink(os.Stderr)),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := tr.Fit(ctx, model{}, loader, nil); err != nil {
//	    log.Fatal(err)
//	}
//	tr.Metrics().LoggedMetrics() // train_loss_step, train_loss_epoch, epoch
//
// # Packages
//
//   - metrics: the controller, values, reductions and the published views
//   - trainer: the epoch and batch loop driving the controller
//   - callbacks: early stopping, checkpointing, progress and time limits
//   - sinks: zerolog, Prometheus and SQLite destinations for flushed records
//   - plotting: metric history charts
//   - config: YAML, TOML and environment configuration
//   - linear, preprocessing: a small SGD regressor used by cmd/metricsdemo
//   - core/lifecycle: the step and epoch window state machine
//   - core/parallel: chunked CPU-parallel helpers
//   - pkg/errors, pkg/log: error types and structured logging
package lightning
