package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"github.com/darthwaydr007/pytorch-lightning/callbacks"
	"github.com/darthwaydr007/pytorch-lightning/config"
	"github.com/darthwaydr007/pytorch-lightning/linear"
	"github.com/darthwaydr007/pytorch-lightning/pkg/errors"
	"github.com/darthwaydr007/pytorch-lightning/pkg/log"
	"github.com/darthwaydr007/pytorch-lightning/plotting"
	"github.com/darthwaydr007/pytorch-lightning/preprocessing"
	"github.com/darthwaydr007/pytorch-lightning/sinks"
	"github.com/darthwaydr007/pytorch-lightning/trainer"
)

type runOptions struct {
	configPath     string
	samples        int
	batchSize      int
	learningRate   float64
	patience       int
	timeLimit      time.Duration
	promTextfile   string
	seed           uint64
	progressPeriod int
}

func newRunCmd() *cobra.Command {
	opts := runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fit the demo model",
		Long:  `Fit a linear regressor on y = 2*x0 - 3*x1 + 1 plus noise and report metrics.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "YAML or TOML config file")
	flags.IntVar(&opts.samples, "samples", 1000, "number of synthetic samples")
	flags.IntVar(&opts.batchSize, "batch-size", 32, "rows per batch")
	flags.Float64Var(&opts.learningRate, "lr", 0.05, "SGD learning rate")
	flags.IntVar(&opts.patience, "patience", 3, "early stopping patience on val_loss")
	flags.DurationVar(&opts.timeLimit, "time-limit", 0, "stop training after this duration (0 disables)")
	flags.StringVar(&opts.promTextfile, "prom-textfile", "", "write the Prometheus registry to this file after training")
	flags.Uint64Var(&opts.seed, "seed", 42, "random seed for the synthetic data")
	flags.IntVar(&opts.progressPeriod, "progress-every", 10, "print progress every n batches")

	return cmd
}

func run(ctx context.Context, cmd *cobra.Command, opts runOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	var logger log.Logger = log.NewConsoleLogger(cmd.ErrOrStderr(), level)
	log.SetLogger(logger)

	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger = logger.With(log.RunIDKey, runID)

	reduceFx, err := cfg.Reduction()
	if err != nil {
		return err
	}

	X, y, err := synthetic(opts.samples, opts.seed)
	if err != nil {
		return err
	}
	split := opts.samples * 4 / 5
	rows, cols := X.Dims()
	train, err := linear.Batches(X.Slice(0, split, 0, cols).(*mat.Dense), y.SliceVec(0, split).(*mat.VecDense), opts.batchSize)
	if err != nil {
		return err
	}
	val, err := linear.Batches(X.Slice(split, rows, 0, cols).(*mat.Dense), y.SliceVec(split, rows).(*mat.VecDense), opts.batchSize)
	if err != nil {
		return err
	}

	model, err := linear.NewRegressor(cols, linear.WithLearningRate(opts.learningRate), linear.WithReduceFx(reduceFx))
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	sinkList, err := buildSinks(cfg, runID, registry, cmd)
	if err != nil {
		return err
	}
	defer func() {
		for _, s := range sinkList {
			if cerr := s.Close(); cerr != nil {
				logger.Warn("Failed to close sink", log.ErrAttrKey, cerr)
			}
		}
	}()

	early, err := callbacks.NewEarlyStopping("val_loss", callbacks.WithPatience(opts.patience))
	if err != nil {
		return err
	}
	history := callbacks.NewRecordHistory()
	cbs := []callbacks.Callback{
		callbacks.NewProgressReporter(cmd.OutOrStdout(), opts.progressPeriod),
		early,
		history,
	}
	if opts.timeLimit > 0 {
		cbs = append(cbs, callbacks.NewTimeLimit(opts.timeLimit))
	}

	trainerOpts := []trainer.Option{
		trainer.WithCallbacks(cbs...),
		trainer.WithLogger(logger),
		trainer.WithRunID(runID),
	}
	if len(sinkList) > 0 {
		trainerOpts = append(trainerOpts, trainer.WithSinks(sinkList...))
	}
	tr, err := trainer.New(cfg.TrainerConfig(), trainerOpts...)
	if err != nil {
		return err
	}
	if err := tr.Fit(ctx, model, train, val); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "weights: %v intercept: %.4f best val_loss: %.6f (epoch %d)\n",
		model.Weights(), model.Intercept(), early.BestScore(), early.BestEpoch())

	if cfg.Sinks.PlotPath != "" {
		if err := plotting.Save(cfg.Sinks.PlotPath, tr.Metrics().History(), "train_loss_step", "val_loss"); err != nil {
			return err
		}
		logger.Info("Plot saved", "path", cfg.Sinks.PlotPath)
	}
	if opts.promTextfile != "" {
		if err := prometheus.WriteToTextfile(opts.promTextfile, registry); err != nil {
			return errors.Wrap(err, "write prometheus textfile")
		}
	}
	return nil
}

func buildSinks(cfg config.Config, runID string, registry prometheus.Registerer, cmd *cobra.Command) ([]sinks.Sink, error) {
	var out []sinks.Sink
	if cfg.Sinks.LogRecords {
		out = append(out, sinks.NewZerologSink(cmd.ErrOrStderr()))
	}
	if ns := cfg.Sinks.PrometheusNamespace; ns != "" {
		s, err := sinks.NewPrometheusSink(runID, sinks.WithNamespace(ns), sinks.WithRegisterer(registry))
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if path := cfg.Sinks.SQLitePath; path != "" {
		s, err := sinks.NewSQLiteSink(path, runID)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// synthetic builds standardized features and y = 2*x0 - 3*x1 + 1 + noise.
func synthetic(n int, seed uint64) (*mat.Dense, *mat.VecDense, error) {
	if n < 10 {
		return nil, nil, errors.NewValidationError("samples", "must be at least 10", n)
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	raw := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		raw.Set(i, 0, rng.NormFloat64()*5+10)
		raw.Set(i, 1, rng.Float64()*100)
	}
	X, err := preprocessing.NewStandardScaler(true, true).FitTransform(raw)
	if err != nil {
		return nil, nil, err
	}
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		y.SetVec(i, 2*X.At(i, 0)-3*X.At(i, 1)+1+rng.NormFloat64()*0.1)
	}
	return X, y, nil
}
