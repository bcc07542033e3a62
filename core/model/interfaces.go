// Package model はモデル共通のインターフェースと状態管理、重みの永続化を提供する。
package model

import (
	"gonum.org/v1/gonum/mat"
)

// Transformer はデータ変換のインターフェース
type Transformer interface {
	// Fit は変換に必要なパラメータを学習する
	Fit(X mat.Matrix) error

	// Transform はデータを変換する
	Transform(X mat.Matrix) (*mat.Dense, error)

	// FitTransform はFitとTransformを同時に実行する
	FitTransform(X mat.Matrix) (*mat.Dense, error)
}

// WeightExporter は学習済みパラメータを ModelWeights として入出力できるモデル
type WeightExporter interface {
	// ExportWeights は現在のパラメータのディープコピーを返す
	ExportWeights() (*ModelWeights, error)

	// ImportWeights はパラメータを復元する
	ImportWeights(w *ModelWeights) error
}

// Persistable はディレクトリ単位で保存できるモデル
type Persistable interface {
	// Save はモデルを dir に保存する。overwrite が false で既存のモデルがある場合は失敗する
	Save(dir string, overwrite bool) error
}
