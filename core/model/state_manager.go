package model

import (
	"sync"

	"github.com/YuminosukeSato/scigo-autozi/pkg/errors"
)

// StateManager はモデルの学習状態をスレッドセーフに管理する。
//
// 状態は Untrained → Trained(Frozen) の一方向にのみ遷移する。
// Frozen になったモデルのパラメータは WithStateMut で変更できない。
type StateManager struct {
	mu sync.RWMutex

	trained   bool
	frozen    bool
	steps     int
	nFeatures int
	nSamples  int
}

// NewStateManager は未学習状態の StateManager を作成する
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsTrained は少なくとも1回の学習ステップが完了し、学習が終了しているかを返す
func (s *StateManager) IsTrained() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trained
}

// IsFrozen はモデルが凍結済み（読み取り専用）かを返す
func (s *StateManager) IsFrozen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frozen
}

// Steps は適用済みの最適化ステップ数を返す
func (s *StateManager) Steps() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.steps
}

// MarkTrained は学習終了を記録し、モデルを凍結する。
// ステップが一度も適用されていない場合は何もしない。
func (s *StateManager) MarkTrained() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.steps == 0 {
		return
	}
	s.trained = true
	s.frozen = true
}

// SetDimensions は学習時に見た特徴量数とセル数を記録する
func (s *StateManager) SetDimensions(nFeatures, nSamples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nFeatures = nFeatures
	s.nSamples = nSamples
}

// GetDimensions は記録済みの特徴量数とセル数を返す
func (s *StateManager) GetDimensions() (nFeatures, nSamples int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nFeatures, s.nSamples
}

// RequireTrained は未学習なら NotTrainedError を返す
func (s *StateManager) RequireTrained(modelName, method string) error {
	if !s.IsTrained() {
		return errors.NewNotTrainedError(modelName, method)
	}
	return nil
}

// ModelState はシリアライズ用の状態スナップショット
type ModelState struct {
	Trained   bool `json:"trained" yaml:"trained"`
	Frozen    bool `json:"frozen" yaml:"frozen"`
	Steps     int  `json:"steps" yaml:"steps"`
	NFeatures int  `json:"n_features,omitempty" yaml:"n_features,omitempty"`
	NSamples  int  `json:"n_samples,omitempty" yaml:"n_samples,omitempty"`
}

// GetState は現在の状態を返す
func (s *StateManager) GetState() ModelState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ModelState{
		Trained:   s.trained,
		Frozen:    s.frozen,
		Steps:     s.steps,
		NFeatures: s.nFeatures,
		NSamples:  s.nSamples,
	}
}

// SetState は永続化された状態を復元する
func (s *StateManager) SetState(state ModelState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trained = state.Trained
	s.frozen = state.Frozen
	s.steps = state.Steps
	s.nFeatures = state.NFeatures
	s.nSamples = state.NSamples
}

// WithState は読み取りロックを保持したまま fn を実行する
func (s *StateManager) WithState(fn func() error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn()
}

// WithStateMut は書き込みロックを保持したまま fn を実行する。
// fn が nil を返した場合は1ステップ適用されたものとして数える。
// 凍結済みモデルには ErrModelFrozen を返す。
func (s *StateManager) WithStateMut(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen {
		return errors.NewModelError("WithStateMut", "parameter update rejected", errors.ErrModelFrozen)
	}
	if err := fn(); err != nil {
		return err
	}
	s.steps++
	return nil
}

// Rollback は fn を書き込みロック下で実行し、ステップ数を 0 に戻す。
// 学習失敗時にパラメータをスナップショットへ戻すために使う。
func (s *StateManager) Rollback(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
	s.steps = 0
	s.trained = false
	s.frozen = false
}

// Restore は書き込みロック下で fn を実行し、成功した場合は state を適用する。
// 保存済みモデルの読み込みに使う。凍結済みモデルには ErrModelFrozen を返す。
func (s *StateManager) Restore(state ModelState, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen {
		return errors.NewModelError("Restore", "parameter update rejected", errors.ErrModelFrozen)
	}
	if err := fn(); err != nil {
		return err
	}
	s.trained = state.Trained
	s.frozen = state.Frozen
	s.steps = state.Steps
	s.nFeatures = state.NFeatures
	s.nSamples = state.NSamples
	return nil
}
