package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/scigo-autozi/anndata"
	"github.com/YuminosukeSato/scigo-autozi/autozi"
)

func newTrainCmd() *cobra.Command {
	var (
		outDir    string
		adataPath string
		plotPath  string
		overwrite bool
		quiet     bool
	)
	cmd := &cobra.Command{
		Use:   "train [flags] counts.tsv...",
		Short: "Fit a model; each input file is one batch",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			adata, err := anndata.LoadTSV(ctx, args...)
			if err != nil {
				return err
			}
			m, err := autozi.SetupAnnData(adata, modelOptions()...)
			if err != nil {
				return err
			}

			cfg := trainConfig()
			if !quiet {
				bar := newEpochBar(cfg.MaxEpochs)
				defer bar.Finish()
				cfg.Callbacks = append(cfg.Callbacks, progressCallback(bar))
			}
			trainer, err := autozi.NewTrainer(cfg)
			if err != nil {
				return err
			}
			res, err := trainer.Train(ctx, m)
			if err != nil {
				return err
			}

			if err := m.Save(outDir, overwrite); err != nil {
				return err
			}
			if plotPath != "" {
				if err := res.History.SavePlot(plotPath); err != nil {
					return err
				}
			}
			summary, err := autozi.Annotate(m, adata)
			if err != nil {
				return err
			}
			if adataPath != "" {
				if err := anndata.Write(adataPath, adata, overwrite); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			printTraining(out, adata, res)
			printSummary(out, summary)
			fmt.Fprintf(out, "model:      %s (%s)\n", outDir, humanize.Bytes(dirSize(outDir)))
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&outDir, "out", "o", "autozi-model", "directory to save the trained model to")
	fs.StringVar(&adataPath, "adata", "", "write the annotated data set to this file")
	fs.StringVar(&plotPath, "plot", "", "write the loss curves to this image (.png, .svg, .pdf)")
	fs.BoolVar(&overwrite, "overwrite", false, "replace existing outputs")
	fs.BoolVarP(&quiet, "quiet", "q", false, "hide the progress bar")
	addModelFlags(fs)
	addTrainFlags(fs)
	return cmd
}

func newEpochBar(maxEpochs int) *progressbar.ProgressBar {
	return progressbar.NewOptions(maxEpochs,
		progressbar.OptionSetDescription("training"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("epochs"),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionClearOnFinish(),
	)
}

// progressCallback advances bar once per epoch and shows the latest losses.
func progressCallback(bar *progressbar.ProgressBar) autozi.Callback {
	return func(env *autozi.CallbackEnv) error {
		bar.Describe(fmt.Sprintf("epoch %d train %.2f val %.2f", env.Epoch, env.TrainLoss, env.ValidationLoss))
		return bar.Add(1)
	}
}

func dirSize(dir string) uint64 {
	var total uint64
	_ = filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			total += uint64(info.Size())
		}
		return nil
	})
	return total
}
