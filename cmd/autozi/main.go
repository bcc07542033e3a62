// Command autozi fits a zero-inflation-aware variational model to
// single-cell count matrices and classifies features as zero-inflated.
//
//	autozi train --out model/ pbmc1.tsv pbmc2.tsv
//	autozi extract --model model/ --adata pbmc.azd pbmc1.tsv pbmc2.tsv
//	autozi classify --model model/ pbmc1.tsv pbmc2.tsv
//
// Settings come from flags, an optional YAML file (--config) and AUTOZI_*
// environment variables, in that order of precedence.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/YuminosukeSato/scigo-autozi/pkg/log"
)

var (
	cfgFile string
	v       = viper.New()
)

var rootCmd = &cobra.Command{
	Use:           "autozi",
	Short:         "Zero-inflation detection for single-cell count data",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(cmd); err != nil {
			return err
		}
		return log.SetupLogger(os.Stderr, v.GetString(keyLogLevel), v.GetBool(keyLogConsole))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("log-console", true, "human readable log output")

	rootCmd.AddCommand(newTrainCmd(), newExtractCmd(), newClassifyCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "autozi: %v\n", err)
		os.Exit(1)
	}
}
