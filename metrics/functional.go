package metrics

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/darthwaydr007/pytorch-lightning/pkg/errors"
)

// 学習ステップ内で損失やスコアを計算するための関数群。
// 結果は Controller.Log にそのまま渡せる float64 を返す。

// MSE は平均二乗誤差を計算する
func MSE(yTrue, yPred mat.Vector) (float64, error) {
	diff, err := residuals("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return floats.Dot(diff, diff) / float64(len(diff)), nil
}

// RMSE は平方根平均二乗誤差を計算する
func RMSE(yTrue, yPred mat.Vector) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差を計算する
func MAE(yTrue, yPred mat.Vector) (float64, error) {
	diff, err := residuals("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return floats.Norm(diff, 1) / float64(len(diff)), nil
}

// R2Score は決定係数を計算する。yTrue に分散がない場合はエラー
func R2Score(yTrue, yPred mat.Vector) (float64, error) {
	diff, err := residuals("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	truth := mat.Col(nil, 0, yTrue)
	tss := stat.Variance(truth, nil) * float64(len(truth)-1)
	if tss == 0 || math.IsNaN(tss) {
		return 0, errors.NewValidationError("yTrue", "R2Score: total sum of squares is zero", len(truth))
	}
	return 1 - floats.Dot(diff, diff)/tss, nil
}

// residuals は yTrue - yPred を返す。長さ不一致・空入力は ValidationError
func residuals(op string, yTrue, yPred mat.Vector) ([]float64, error) {
	if yTrue == nil || yPred == nil || yTrue.Len() == 0 {
		return nil, errors.NewValidationError("yTrue", op+": empty vector", 0)
	}
	if yTrue.Len() != yPred.Len() {
		return nil, errors.NewValidationError("yPred", op+": length must match yTrue", yPred.Len())
	}
	diff := mat.Col(nil, 0, yTrue)
	floats.Sub(diff, mat.Col(nil, 0, yPred))
	return diff, nil
}
