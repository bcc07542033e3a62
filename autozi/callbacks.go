package autozi

import (
	"time"

	"github.com/YuminosukeSato/scigo-autozi/pkg/log"
)

// CallbackEnv is passed to callbacks after every epoch.
type CallbackEnv struct {
	Model          *Model
	Epoch          int
	MaxEpochs      int
	TrainLoss      float64
	ValidationLoss float64
	BeginTime      time.Time
	EndTime        time.Time

	// StopTraining may be set by a callback to end training after this epoch.
	StopTraining bool
}

// Callback is invoked after each epoch. A returned error aborts training.
type Callback func(env *CallbackEnv) error

// LogEvaluation logs train and validation losses every period epochs.
func LogEvaluation(logger log.Logger, period int) Callback {
	if period < 1 {
		period = 1
	}
	return func(env *CallbackEnv) error {
		if env.Epoch%period == 0 {
			logger.Info("Epoch finished",
				log.EpochKey, env.Epoch,
				log.LossKey, env.TrainLoss,
				log.ValidationLossKey, env.ValidationLoss,
				log.DurationMsKey, env.EndTime.Sub(env.BeginTime).Milliseconds(),
			)
		}
		return nil
	}
}

// TimeLimit stops training once maxDuration has elapsed since the first epoch.
func TimeLimit(maxDuration time.Duration) Callback {
	var start time.Time
	return func(env *CallbackEnv) error {
		if start.IsZero() {
			start = env.BeginTime
		}
		if env.EndTime.Sub(start) > maxDuration {
			env.StopTraining = true
		}
		return nil
	}
}

// callbackList runs callbacks in order with a shared environment.
type callbackList struct {
	callbacks []Callback
	env       *CallbackEnv
}

func newCallbackList(m *Model, maxEpochs int, callbacks ...Callback) *callbackList {
	return &callbackList{
		callbacks: callbacks,
		env:       &CallbackEnv{Model: m, MaxEpochs: maxEpochs},
	}
}

func (cl *callbackList) beforeEpoch(epoch int) {
	cl.env.Epoch = epoch
	cl.env.BeginTime = time.Now()
}

func (cl *callbackList) afterEpoch(trainLoss, validationLoss float64) error {
	cl.env.EndTime = time.Now()
	cl.env.TrainLoss = trainLoss
	cl.env.ValidationLoss = validationLoss
	for _, cb := range cl.callbacks {
		if err := cb(cl.env); err != nil {
			return err
		}
	}
	return nil
}

func (cl *callbackList) shouldStop() bool {
	return cl.env.StopTraining
}
