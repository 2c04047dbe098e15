package linear

import (
	"context"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/darthwaydr007/pytorch-lightning/metrics"
	"github.com/darthwaydr007/pytorch-lightning/pkg/log"
	"github.com/darthwaydr007/pytorch-lightning/preprocessing"
	"github.com/darthwaydr007/pytorch-lightning/trainer"
)

// synthetic returns standardized features and y = 2*x0 - 3*x1 + 1.
func synthetic(t *testing.T, n int) (*mat.Dense, *mat.VecDense) {
	t.Helper()
	raw := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		raw.Set(i, 0, float64(i)/10)
		raw.Set(i, 1, float64(i%7))
	}
	X, err := preprocessing.NewStandardScaler(true, true).FitTransform(raw)
	if err != nil {
		t.Fatalf("FitTransform: %v", err)
	}
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		y.SetVec(i, 2*X.At(i, 0)-3*X.At(i, 1)+1)
	}
	return X, y
}

func TestBatches(t *testing.T) {
	X, y := synthetic(t, 10)
	loader, err := Batches(X, y, 4)
	if err != nil {
		t.Fatalf("Batches: %v", err)
	}
	if loader.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", loader.Len())
	}
	last, _ := loader.Batch(2)
	if got := trainer.InferBatchSize(last); got != 2 {
		t.Errorf("InferBatchSize(last) = %d, want 2", got)
	}

	if _, err := Batches(X, mat.NewVecDense(3, nil), 4); err == nil {
		t.Error("mismatched y should fail")
	}
	if _, err := Batches(X, y, 0); err == nil {
		t.Error("zero batch size should fail")
	}
}

func TestRegressorFit(t *testing.T) {
	X, y := synthetic(t, 100)
	train, err := Batches(X, y, 20)
	if err != nil {
		t.Fatalf("Batches: %v", err)
	}

	model, err := NewRegressor(2, WithLearningRate(0.1), WithParallelThreshold(8))
	if err != nil {
		t.Fatalf("NewRegressor: %v", err)
	}

	cfg := trainer.DefaultConfig()
	cfg.MaxEpochs = 100
	cfg.LogEveryNSteps = 5
	logger, _ := log.NewTestLogger(log.LevelInfo)
	tr, err := trainer.New(cfg, trainer.WithLogger(logger))
	if err != nil {
		t.Fatalf("trainer.New: %v", err)
	}
	if err := tr.Fit(context.Background(), model, train, train); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	w := model.Weights()
	if math.Abs(w[0]-2) > 0.05 || math.Abs(w[1]+3) > 0.05 {
		t.Errorf("weights = %v, want ~[2 -3]", w)
	}
	if math.Abs(model.Intercept()-1) > 0.05 {
		t.Errorf("intercept = %v, want ~1", model.Intercept())
	}

	ctl := tr.Metrics()
	logged := ctl.LoggedMetrics()
	for _, name := range []string{"train_loss_step", "train_loss_epoch", "val_loss", "val_r2", "weight_norm", "epoch"} {
		if _, ok := logged[name]; !ok {
			t.Errorf("logged view is missing %q: %v", name, metrics.SortedKeys(logged))
		}
	}
	if got := logged["val_loss"].Float(); got > 1e-3 {
		t.Errorf("val_loss = %v, want < 1e-3", got)
	}
	if got := logged["val_r2"].Float(); got < 0.99 {
		t.Errorf("val_r2 = %v, want > 0.99", got)
	}

	history := ctl.History()
	first, last := history[0].Metrics["train_loss_step"], logged["train_loss_step"]
	if last.Float() >= first.Float() {
		t.Errorf("train loss did not decrease: first %v, last %v", first, last)
	}
}

func TestRegressorRejectsBadInput(t *testing.T) {
	if _, err := NewRegressor(0); err == nil {
		t.Error("zero features should fail")
	}
	if _, err := NewRegressor(1, WithLearningRate(0)); err == nil {
		t.Error("zero learning rate should fail")
	}
	if _, err := NewRegressor(1, WithL2(-1)); err == nil {
		t.Error("negative l2 should fail")
	}

	model, err := NewRegressor(2)
	if err != nil {
		t.Fatalf("NewRegressor: %v", err)
	}
	if _, err := model.Predict(mat.NewDense(1, 3, nil)); err == nil {
		t.Error("Predict with wrong feature count should fail")
	}

	ctl := metrics.NewController()
	ctl.StartEpoch(0)
	if err := ctl.StartStep(0); err != nil {
		t.Fatalf("StartStep: %v", err)
	}
	if _, err := model.TrainingStep(ctl, "not a batch", 0); err == nil {
		t.Error("TrainingStep with a foreign batch should fail")
	}
}

func TestRegressorL2ShrinksWeights(t *testing.T) {
	X, y := synthetic(t, 50)
	b := Batch{X: X, Y: y}

	plain, _ := NewRegressor(2, WithLearningRate(0.1))
	ridge, _ := NewRegressor(2, WithLearningRate(0.1), WithL2(0.5))
	for i := 0; i < 200; i++ {
		for _, m := range []*Regressor{plain, ridge} {
			pred, err := m.Predict(b.X)
			if err != nil {
				t.Fatalf("Predict: %v", err)
			}
			m.update(b, pred)
		}
	}
	norm := func(w []float64) float64 { return math.Hypot(w[0], w[1]) }
	if norm(ridge.Weights()) >= norm(plain.Weights()) {
		t.Errorf("ridge weights %v not smaller than plain %v", ridge.Weights(), plain.Weights())
	}
}
