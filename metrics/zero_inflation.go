// Package metrics はゼロ過剰（zero-inflation）判定とその要約統計を提供する。
package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scigo-autozi/distributions"
	"github.com/YuminosukeSato/scigo-autozi/pkg/errors"
)

// ZeroInflationThreshold は判定に使う事後確率の閾値
// p_g がこの値を「超える」場合のみゼロ過剰と判定する（0.5ちょうどは非ゼロ過剰）
const ZeroInflationThreshold = 0.5

// ExpressionThreshold は発現フィルタの平均カウント閾値
const ExpressionThreshold = 1.0

// ZeroInflationCall は特徴量ごとの判定結果
type ZeroInflationCall struct {
	// Probabilities は p_g = CDF_Beta(0.5; α_g, β_g)
	Probabilities []float64

	// IsZeroInflated は p_g > 0.5 のとき true
	IsZeroInflated []bool
}

// ZeroInflationSummary は判定結果と発現フィルタの要約
type ZeroInflationSummary struct {
	NumFeatures                        int
	NumZeroInflated                    int
	NumExpressed                       int
	NumZeroInflatedExpressed           int
	FractionZeroInflated               float64
	FractionExpressed                  float64
	FractionZeroInflatedAmongExpressed float64
}

// ZeroInflationProbability は Beta(α, β) 事後分布で δ ≤ 0.5 となる確率を計算する
//
// α == β の場合は対称性により厳密に 0.5 を返す
func ZeroInflationProbability(alpha, beta float64) float64 {
	return distributions.BetaCDF(ZeroInflationThreshold, alpha, beta)
}

// ClassifyZeroInflation は事後パラメータから各特徴量のゼロ過剰判定を行う
//
// パラメータ:
//   - alpha, beta: 特徴量ごとの Beta 事後分布の形状パラメータ（同じ長さ、正の値）
//
// 使用例:
//
//	alpha, beta, err := autozi.GetZIPosterior(m)
//	call, err := metrics.ClassifyZeroInflation(alpha, beta)
func ClassifyZeroInflation(alpha, beta []float64) (*ZeroInflationCall, error) {
	if len(alpha) == 0 {
		return nil, errors.NewModelError("ClassifyZeroInflation", "empty posterior", errors.ErrEmptyData)
	}
	if len(alpha) != len(beta) {
		return nil, errors.NewDimensionError("ClassifyZeroInflation", len(alpha), len(beta), 1)
	}

	call := &ZeroInflationCall{
		Probabilities:  make([]float64, len(alpha)),
		IsZeroInflated: make([]bool, len(alpha)),
	}
	for g := range alpha {
		a, b := alpha[g], beta[g]
		if !(a > 0) || !(b > 0) || math.IsInf(a, 0) || math.IsInf(b, 0) {
			return nil, errors.NewConfigurationError("posterior",
				"Beta shape parameters must be positive and finite", [2]float64{a, b})
		}
		p := ZeroInflationProbability(a, b)
		call.Probabilities[g] = p
		call.IsZeroInflated[g] = p > ZeroInflationThreshold
	}
	return call, nil
}

// ExpressionFilter は細胞間の平均カウントが 1 を超える特徴量を true とする
func ExpressionFilter(counts mat.Matrix) []bool {
	r, c := counts.Dims()
	sums := make([]float64, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			sums[j] += counts.At(i, j)
		}
	}
	mask := make([]bool, c)
	for j, s := range sums {
		mask[j] = r > 0 && s/float64(r) > ExpressionThreshold
	}
	return mask
}

// SummarizeZeroInflation は3つの割合を計算する。入力は変更しない。
//
// 発現フィルタを通過した特徴量が無い場合、条件付き割合は NaN となり
// UndefinedMetricWarning を発生させる。
func SummarizeZeroInflation(call *ZeroInflationCall, expressed []bool) (ZeroInflationSummary, error) {
	if call == nil || len(call.IsZeroInflated) == 0 {
		return ZeroInflationSummary{}, errors.NewModelError("SummarizeZeroInflation", "empty call", errors.ErrEmptyData)
	}
	n := len(call.IsZeroInflated)
	if len(expressed) != n {
		return ZeroInflationSummary{}, errors.NewDimensionError("SummarizeZeroInflation", n, len(expressed), 1)
	}

	s := ZeroInflationSummary{NumFeatures: n}
	for g, zi := range call.IsZeroInflated {
		if zi {
			s.NumZeroInflated++
		}
		if expressed[g] {
			s.NumExpressed++
			if zi {
				s.NumZeroInflatedExpressed++
			}
		}
	}
	s.FractionZeroInflated = float64(s.NumZeroInflated) / float64(n)
	s.FractionExpressed = float64(s.NumExpressed) / float64(n)
	if s.NumExpressed == 0 {
		s.FractionZeroInflatedAmongExpressed = math.NaN()
		errors.Warn(errors.NewUndefinedMetricWarning("fraction_zi_among_expressed",
			"no features pass the expression filter", s.FractionZeroInflatedAmongExpressed))
	} else {
		s.FractionZeroInflatedAmongExpressed = float64(s.NumZeroInflatedExpressed) / float64(s.NumExpressed)
	}
	return s, nil
}
