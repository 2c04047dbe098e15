// Package linear provides a linear regression module trained by mini-batch
// SGD through the training driver, logging its losses through the metrics
// controller.
package linear

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/darthwaydr007/pytorch-lightning/core/parallel"
	"github.com/darthwaydr007/pytorch-lightning/metrics"
	"github.com/darthwaydr007/pytorch-lightning/pkg/errors"
	"github.com/darthwaydr007/pytorch-lightning/trainer"
)

// Batch は特徴量行列と目的変数のミニバッチ
type Batch struct {
	X *mat.Dense
	Y *mat.VecDense
}

// Batches は X, y を batchSize 行ずつのバッチに分割する。最後のバッチは短くなりうる
func Batches(X *mat.Dense, y *mat.VecDense, batchSize int) (trainer.SliceLoader, error) {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewValidationError("X", "empty data", [2]int{r, c})
	}
	if y.Len() != r {
		return nil, errors.NewValidationError("y", "length must match the rows of X", y.Len())
	}
	if batchSize < 1 {
		return nil, errors.NewValidationError("batch_size", "must be at least 1", batchSize)
	}

	var loader trainer.SliceLoader
	for start := 0; start < r; start += batchSize {
		end := min(start+batchSize, r)
		loader = append(loader, Batch{
			X: X.Slice(start, end, 0, c).(*mat.Dense),
			Y: y.SliceVec(start, end).(*mat.VecDense),
		})
	}
	return loader, nil
}

// Regressor は確率的勾配降下法で学習する線形回帰モジュール
//
// 損失は平均二乗誤差。学習ステップでは train_loss を、検証ステップでは
// val_loss と val_r2 を、エポック終了時には weight_norm を記録する。
type Regressor struct {
	weights   *mat.VecDense
	intercept float64

	learningRate      float64
	fitIntercept      bool
	l2                float64
	parallelThreshold int
	reduceFx          metrics.Reduction
}

var (
	_ trainer.TrainingModule     = (*Regressor)(nil)
	_ trainer.ValidationModule   = (*Regressor)(nil)
	_ trainer.TrainingEpochEnder = (*Regressor)(nil)
)

// NewRegressor は nFeatures 個の特徴量を持つ回帰モジュールを作成する
func NewRegressor(nFeatures int, opts ...Option) (*Regressor, error) {
	if nFeatures < 1 {
		return nil, errors.NewValidationError("n_features", "must be at least 1", nFeatures)
	}
	r := &Regressor{
		weights:           mat.NewVecDense(nFeatures, nil),
		learningRate:      0.01,
		fitIntercept:      true,
		parallelThreshold: 1000,
		reduceFx:          metrics.Mean,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.learningRate <= 0 {
		return nil, errors.NewValidationError("learning_rate", "must be positive", r.learningRate)
	}
	if r.l2 < 0 {
		return nil, errors.NewValidationError("l2", "must not be negative", r.l2)
	}
	return r, nil
}

// Weights は学習された重み（係数）のコピーを返す
func (r *Regressor) Weights() []float64 {
	return mat.Col(nil, 0, r.weights)
}

// Intercept は学習された切片を返す
func (r *Regressor) Intercept() float64 { return r.intercept }

// Predict は X に対する予測値を返す
func (r *Regressor) Predict(X mat.Matrix) (*mat.VecDense, error) {
	rows, c := X.Dims()
	if c != r.weights.Len() {
		return nil, errors.NewValidationError("X", "feature count differs from the model", c)
	}
	pred := mat.NewVecDense(rows, nil)
	pred.MulVec(X, r.weights)
	if r.intercept != 0 {
		for i := 0; i < rows; i++ {
			pred.SetVec(i, pred.AtVec(i)+r.intercept)
		}
	}
	return pred, nil
}

// TrainingStep は1バッチ分の勾配降下を行い、更新前の損失を返す
func (r *Regressor) TrainingStep(ctl *metrics.Controller, batch any, _ int) (trainer.StepOutput, error) {
	b, err := asBatch(batch)
	if err != nil {
		return nil, err
	}
	pred, err := r.Predict(b.X)
	if err != nil {
		return nil, err
	}
	loss, err := metrics.MSE(b.Y, pred)
	if err != nil {
		return nil, err
	}
	r.update(b, pred)

	if err := ctl.Log("train_loss", loss,
		metrics.WithOnEpoch(true), metrics.WithProgBar(true), metrics.WithReduceFx(r.reduceFx)); err != nil {
		return nil, err
	}
	return trainer.StepOutput{"loss": loss}, nil
}

// ValidationStep は検証バッチの損失と決定係数を記録する
func (r *Regressor) ValidationStep(ctl *metrics.Controller, batch any, _ int) (trainer.StepOutput, error) {
	b, err := asBatch(batch)
	if err != nil {
		return nil, err
	}
	pred, err := r.Predict(b.X)
	if err != nil {
		return nil, err
	}
	loss, err := metrics.MSE(b.Y, pred)
	if err != nil {
		return nil, err
	}
	values := map[string]any{"val_loss": loss}
	// 分散のないバッチでは決定係数を記録しない
	if r2, err := metrics.R2Score(b.Y, pred); err == nil {
		values["val_r2"] = r2
	}
	if err := ctl.LogDict(values, metrics.WithProgBar(true)); err != nil {
		return nil, err
	}
	return trainer.StepOutput{"val_loss": loss}, nil
}

// TrainingEpochEnd は重みのL2ノルムを記録する
func (r *Regressor) TrainingEpochEnd(ctl *metrics.Controller, _ []trainer.StepOutput) error {
	return ctl.Log("weight_norm", floats.Norm(r.weights.RawVector().Data, 2))
}

// update は MSE の勾配 2/n * X^T (pred - y) で重みを更新する
func (r *Regressor) update(b Batch, pred *mat.VecDense) {
	n, c := b.X.Dims()
	grad := parallel.SumChunks(n, r.parallelThreshold, c+1, func(start, end int, acc []float64) {
		for i := start; i < end; i++ {
			res := pred.AtVec(i) - b.Y.AtVec(i)
			for j := 0; j < c; j++ {
				acc[j] += res * b.X.At(i, j)
			}
			acc[c] += res
		}
	})
	scale := 2 / float64(n)
	for j := 0; j < c; j++ {
		w := r.weights.AtVec(j)
		r.weights.SetVec(j, w-r.learningRate*(scale*grad[j]+2*r.l2*w))
	}
	if r.fitIntercept {
		r.intercept -= r.learningRate * scale * grad[c]
	}
}

func asBatch(batch any) (Batch, error) {
	switch b := batch.(type) {
	case Batch:
		return b, nil
	case *Batch:
		if b != nil {
			return *b, nil
		}
	}
	return Batch{}, errors.NewValidationError("batch", "expected a linear.Batch", batch)
}
