package linear

import "github.com/darthwaydr007/pytorch-lightning/metrics"

// Option configures a Regressor
type Option func(*Regressor)

// WithLearningRate sets the SGD step size
func WithLearningRate(lr float64) Option {
	return func(r *Regressor) {
		r.learningRate = lr
	}
}

// WithFitIntercept sets whether to learn an intercept
func WithFitIntercept(fit bool) Option {
	return func(r *Regressor) {
		r.fitIntercept = fit
	}
}

// WithL2 sets the ridge penalty applied to the weights
func WithL2(alpha float64) Option {
	return func(r *Regressor) {
		r.l2 = alpha
	}
}

// WithParallelThreshold sets the batch size above which gradients are
// computed across CPU cores
func WithParallelThreshold(n int) Option {
	return func(r *Regressor) {
		r.parallelThreshold = n
	}
}

// WithReduceFx sets how train_loss is reduced over the epoch
func WithReduceFx(fx metrics.Reduction) Option {
	return func(r *Regressor) {
		r.reduceFx = fx
	}
}
