package model

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// ModelWeights はモデルの重みを表す構造体（シリアライゼーション用）
//
// 行列とベクトルを名前付きで保持するため、任意の層構成のモデルを
// 同じ JSON スキーマで保存できる。float64 は最短表現で書き出されるので
// 読み戻した値はビット単位で一致する。
type ModelWeights struct {
	// ModelType はモデルの種類（AutoZI等）
	ModelType string `json:"model_type"`

	// Version はシリアライズ形式のバージョン（互換性チェック用）
	Version string `json:"version"`

	// RunID は学習を行ったインスタンスの識別子
	RunID string `json:"run_id,omitempty"`

	// Matrices は名前付きの重み行列
	Matrices map[string]MatrixData `json:"matrices"`

	// Vectors は名前付きのベクトル（バイアス、分散、事前・事後分布のパラメータ等）
	Vectors map[string][]float64 `json:"vectors"`

	// Labels は名前付きの文字列リスト（特徴量名、バッチ語彙等）
	Labels map[string][]string `json:"labels,omitempty"`

	// Hyperparameters はモデルのハイパーパラメータ
	Hyperparameters map[string]interface{} `json:"hyperparameters"`

	// State は学習状態
	State ModelState `json:"state"`
}

// MatrixData は行優先で格納された行列
type MatrixData struct {
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"`
}

// NewModelWeights は空のModelWeightsを作成する
func NewModelWeights(modelType, version string) *ModelWeights {
	return &ModelWeights{
		ModelType:       modelType,
		Version:         version,
		Matrices:        make(map[string]MatrixData),
		Vectors:         make(map[string][]float64),
		Labels:          make(map[string][]string),
		Hyperparameters: make(map[string]interface{}),
	}
}

// SetMatrix は行列のコピーを name で登録する
func (mw *ModelWeights) SetMatrix(name string, m mat.Matrix) {
	r, c := m.Dims()
	data := make([]float64, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			data[i*c+j] = m.At(i, j)
		}
	}
	mw.Matrices[name] = MatrixData{Rows: r, Cols: c, Data: data}
}

// Matrix は name の行列を新しい *mat.Dense として返す
func (mw *ModelWeights) Matrix(name string) (*mat.Dense, error) {
	md, ok := mw.Matrices[name]
	if !ok {
		return nil, fmt.Errorf("matrix %q not found", name)
	}
	if md.Rows <= 0 || md.Cols <= 0 || len(md.Data) != md.Rows*md.Cols {
		return nil, fmt.Errorf("matrix %q is malformed: %dx%d with %d values", name, md.Rows, md.Cols, len(md.Data))
	}
	data := make([]float64, len(md.Data))
	copy(data, md.Data)
	return mat.NewDense(md.Rows, md.Cols, data), nil
}

// SetVector はベクトルのコピーを name で登録する
func (mw *ModelWeights) SetVector(name string, v []float64) {
	c := make([]float64, len(v))
	copy(c, v)
	mw.Vectors[name] = c
}

// Vector は name のベクトルのコピーを返す
func (mw *ModelWeights) Vector(name string) ([]float64, error) {
	v, ok := mw.Vectors[name]
	if !ok {
		return nil, fmt.Errorf("vector %q not found", name)
	}
	c := make([]float64, len(v))
	copy(c, v)
	return c, nil
}

// SetLabels は文字列リストのコピーを name で登録する
func (mw *ModelWeights) SetLabels(name string, labels []string) {
	c := make([]string, len(labels))
	copy(c, labels)
	mw.Labels[name] = c
}

// Label は name の文字列リストのコピーを返す
func (mw *ModelWeights) Label(name string) ([]string, error) {
	l, ok := mw.Labels[name]
	if !ok {
		return nil, fmt.Errorf("labels %q not found", name)
	}
	c := make([]string, len(l))
	copy(c, l)
	return c, nil
}

// ToJSON はModelWeightsをJSON形式にシリアライズ
func (mw *ModelWeights) ToJSON() ([]byte, error) {
	return json.MarshalIndent(mw, "", "  ")
}

// FromJSON はJSON形式からModelWeightsをデシリアライズ
func (mw *ModelWeights) FromJSON(data []byte) error {
	return json.Unmarshal(data, mw)
}

// Validate はModelWeightsの妥当性を検証
func (mw *ModelWeights) Validate() error {
	if mw.ModelType == "" {
		return fmt.Errorf("model_type is required")
	}

	if mw.Version == "" {
		return fmt.Errorf("version is required")
	}

	if mw.State.Trained && len(mw.Matrices) == 0 {
		return fmt.Errorf("trained model must have weight matrices")
	}

	for _, name := range sortedKeys(mw.Matrices) {
		md := mw.Matrices[name]
		if len(md.Data) != md.Rows*md.Cols {
			return fmt.Errorf("matrix %q: expected %d values, got %d", name, md.Rows*md.Cols, len(md.Data))
		}
		if err := checkFinite(name, md.Data); err != nil {
			return err
		}
	}
	for _, name := range sortedKeys(mw.Vectors) {
		if err := checkFinite(name, mw.Vectors[name]); err != nil {
			return err
		}
	}

	return nil
}

// Clone はModelWeightsのディープコピーを作成
func (mw *ModelWeights) Clone() *ModelWeights {
	clone := NewModelWeights(mw.ModelType, mw.Version)
	clone.RunID = mw.RunID
	clone.State = mw.State

	for k, md := range mw.Matrices {
		data := make([]float64, len(md.Data))
		copy(data, md.Data)
		clone.Matrices[k] = MatrixData{Rows: md.Rows, Cols: md.Cols, Data: data}
	}
	for k, v := range mw.Vectors {
		clone.SetVector(k, v)
	}
	for k, v := range mw.Labels {
		clone.SetLabels(k, v)
	}
	for k, v := range mw.Hyperparameters {
		clone.Hyperparameters[k] = v
	}

	return clone
}

func checkFinite(name string, values []float64) error {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%q contains non-finite value %v at index %d", name, v, i)
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
