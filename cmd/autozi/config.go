package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/YuminosukeSato/scigo-autozi/autozi"
	"github.com/YuminosukeSato/scigo-autozi/pkg/errors"
)

// Configuration keys. Nested keys map to YAML sections and to environment
// variables such as AUTOZI_TRAIN_MAX_EPOCHS.
const (
	keyLogLevel   = "log.level"
	keyLogConsole = "log.console"

	keyLatentDim   = "model.latent_dim"
	keyHiddenSize  = "model.hidden_size"
	keyDropoutRate = "model.dropout_rate"
	keyPriorAlpha  = "model.prior_alpha"
	keyPriorBeta   = "model.prior_beta"
	keyModelSeed   = "model.seed"

	keyTrainSize     = "train.train_size"
	keyMaxEpochs     = "train.max_epochs"
	keyBatchSize     = "train.batch_size"
	keyLearningRate  = "train.lr"
	keyWeightDecay   = "train.weight_decay"
	keyEarlyStopping = "train.early_stopping"
	keyPatience      = "train.early_stopping_patience"
	keyTrainSeed     = "train.seed"
)

// flagKeys binds command line flags to configuration keys.
var flagKeys = map[string]string{
	"log-level":      keyLogLevel,
	"log-console":    keyLogConsole,
	"latent-dim":     keyLatentDim,
	"hidden-size":    keyHiddenSize,
	"dropout-rate":   keyDropoutRate,
	"prior-alpha":    keyPriorAlpha,
	"prior-beta":     keyPriorBeta,
	"seed":           keyModelSeed,
	"train-size":     keyTrainSize,
	"max-epochs":     keyMaxEpochs,
	"batch-size":     keyBatchSize,
	"lr":             keyLearningRate,
	"weight-decay":   keyWeightDecay,
	"early-stopping": keyEarlyStopping,
	"patience":       keyPatience,
	"train-seed":     keyTrainSeed,
}

func setDefaults() {
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keyLogConsole, true)

	m := autozi.DefaultModelConfig()
	v.SetDefault(keyLatentDim, m.LatentDim)
	v.SetDefault(keyHiddenSize, m.HiddenSize)
	v.SetDefault(keyDropoutRate, m.DropoutRate)
	v.SetDefault(keyPriorAlpha, autozi.DefaultPriorAlpha)
	v.SetDefault(keyPriorBeta, autozi.DefaultPriorBeta)
	v.SetDefault(keyModelSeed, m.Seed)

	t := autozi.DefaultTrainConfig()
	v.SetDefault(keyTrainSize, t.TrainSize)
	v.SetDefault(keyMaxEpochs, t.MaxEpochs)
	v.SetDefault(keyBatchSize, t.BatchSize)
	v.SetDefault(keyLearningRate, t.LearningRate)
	v.SetDefault(keyWeightDecay, t.WeightDecay)
	v.SetDefault(keyEarlyStopping, t.EarlyStopping)
	v.SetDefault(keyPatience, t.Patience)
	v.SetDefault(keyTrainSeed, t.Seed)
}

// initConfig layers defaults, the config file, the environment and the flags
// of cmd.
func initConfig(cmd *cobra.Command) error {
	setDefaults()
	v.SetEnvPrefix("AUTOZI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "read config %s", cfgFile)
		}
	}

	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || bindErr != nil {
			return
		}
		bindErr = v.BindPFlag(key, f)
	})
	return bindErr
}

func addModelFlags(fs *pflag.FlagSet) {
	fs.Int("latent-dim", autozi.DefaultLatentDim, "latent dimensionality")
	fs.Int("hidden-size", autozi.DefaultHiddenSize, "hidden layer width")
	fs.Float64("dropout-rate", autozi.DefaultDropoutRate, "encoder dropout rate")
	fs.Float64("prior-alpha", autozi.DefaultPriorAlpha, "Beta prior alpha shared by all features")
	fs.Float64("prior-beta", autozi.DefaultPriorBeta, "Beta prior beta shared by all features")
	fs.Int64("seed", 0, "weight initialization seed")
}

func addTrainFlags(fs *pflag.FlagSet) {
	fs.Float64("train-size", autozi.DefaultTrainSize, "fraction of cells used for training")
	fs.Int("max-epochs", autozi.DefaultMaxEpochs, "maximum number of epochs")
	fs.Int("batch-size", autozi.DefaultBatchSize, "minibatch size")
	fs.Float64("lr", autozi.DefaultLearningRate, "learning rate")
	fs.Float64("weight-decay", autozi.DefaultWeightDecay, "decoupled weight decay")
	fs.Bool("early-stopping", true, "stop when the validation loss stops improving")
	fs.Int("patience", autozi.DefaultPatience, "epochs without improvement before stopping")
	fs.Int64("train-seed", 0, "split, minibatch and sampling seed")
}

func modelOptions() []autozi.Option {
	return []autozi.Option{
		autozi.WithLatentDim(v.GetInt(keyLatentDim)),
		autozi.WithHiddenSize(v.GetInt(keyHiddenSize)),
		autozi.WithDropoutRate(v.GetFloat64(keyDropoutRate)),
		autozi.WithPrior(v.GetFloat64(keyPriorAlpha), v.GetFloat64(keyPriorBeta)),
		autozi.WithSeed(v.GetInt64(keyModelSeed)),
	}
}

func trainConfig() autozi.TrainConfig {
	return autozi.TrainConfig{
		TrainSize:     v.GetFloat64(keyTrainSize),
		MaxEpochs:     v.GetInt(keyMaxEpochs),
		BatchSize:     v.GetInt(keyBatchSize),
		LearningRate:  v.GetFloat64(keyLearningRate),
		WeightDecay:   v.GetFloat64(keyWeightDecay),
		EarlyStopping: v.GetBool(keyEarlyStopping),
		Patience:      v.GetInt(keyPatience),
		Seed:          v.GetInt64(keyTrainSeed),
	}
}
