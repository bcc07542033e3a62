// Package preprocessing はカウント行列をモデル入力へ変換する前処理を提供する。
package preprocessing

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scigo-autozi/core/model"
	"github.com/YuminosukeSato/scigo-autozi/pkg/errors"
)

// Log1pTransformer はカウントを log(1+x) に変換する。
// エンコーダ入力の分散を抑えるために使用し、元のカウントは変更しない。
type Log1pTransformer struct {
	state *model.StateManager

	// NFeatures は Fit で見た特徴量の数
	NFeatures int

	// MeanCounts は各特徴量の変換前の平均カウント
	MeanCounts []float64
}

// NewLog1pTransformer は新しいLog1pTransformerを作成する
//
// 使用例:
//
//	tr := preprocessing.NewLog1pTransformer()
//	logX, err := tr.FitTransform(counts)
func NewLog1pTransformer() *Log1pTransformer {
	return &Log1pTransformer{state: model.NewStateManager()}
}

// Fit は特徴量数と平均カウントを記録する
func (t *Log1pTransformer) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("Log1pTransformer.Fit", "empty data", errors.ErrEmptyData)
	}

	means := make([]float64, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := X.At(i, j)
			if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.NewConfigurationError("counts", "counts must be non-negative and finite", v)
			}
			means[j] += v
		}
	}
	floats.Scale(1/float64(r), means)

	err := t.state.WithStateMut(func() error {
		t.NFeatures = c
		t.MeanCounts = means
		return nil
	})
	if err != nil {
		return err
	}
	// WithStateMut は書き込みロックを保持するため、次元はロック解放後に記録する
	t.state.SetDimensions(c, r)
	return nil
}

// Transform は log(1+x) を要素ごとに適用した新しい行列を返す
func (t *Log1pTransformer) Transform(X mat.Matrix) (*mat.Dense, error) {
	if t.state.Steps() == 0 {
		return nil, errors.NewNotTrainedError("Log1pTransformer", "Transform")
	}
	r, c := X.Dims()
	if c != t.NFeatures {
		return nil, errors.NewDimensionError("Log1pTransformer.Transform", t.NFeatures, c, 1)
	}

	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, _ int, v float64) float64 {
		return math.Log1p(v)
	}, X)
	return out, nil
}

// FitTransform はFitとTransformを同時に実行する
func (t *Log1pTransformer) FitTransform(X mat.Matrix) (*mat.Dense, error) {
	if err := t.Fit(X); err != nil {
		return nil, err
	}
	return t.Transform(X)
}

// LibrarySize は各セルの総カウント（行和）を返す
func LibrarySize(X mat.Matrix) []float64 {
	r, c := X.Dims()
	sizes := make([]float64, r)
	if d, ok := X.(mat.RawMatrixer); ok {
		raw := d.RawMatrix()
		for i := 0; i < r; i++ {
			sizes[i] = floats.Sum(raw.Data[i*raw.Stride : i*raw.Stride+c])
		}
		return sizes
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			sizes[i] += X.At(i, j)
		}
	}
	return sizes
}

var _ model.Transformer = (*Log1pTransformer)(nil)
