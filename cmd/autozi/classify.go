package main

import (
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/scigo-autozi/anndata"
	"github.com/YuminosukeSato/scigo-autozi/autozi"
	"github.com/YuminosukeSato/scigo-autozi/metrics"
)

func newClassifyCmd() *cobra.Command {
	var (
		modelDir  string
		csvPath   string
		adataPath string
		overwrite bool
	)
	cmd := &cobra.Command{
		Use:   "classify [flags] [counts.tsv...]",
		Short: "Call zero-inflated features from a trained model",
		Long: "Call zero-inflated features from a trained model. With count files the " +
			"expression filter (mean count > 1) and the conditional fraction are reported too.",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := autozi.Load(modelDir)
			if err != nil {
				return err
			}
			alpha, beta, err := m.GetZIPosterior()
			if err != nil {
				return err
			}
			call, err := metrics.ClassifyZeroInflation(alpha, beta)
			if err != nil {
				return err
			}

			var expressed []bool
			if len(args) > 0 {
				adata, err := anndata.LoadTSV(cmd.Context(), args...)
				if err != nil {
					return err
				}
				summary, err := autozi.Annotate(m, adata)
				if err != nil {
					return err
				}
				expressed = adata.VarFlags[autozi.VarFlagExpressed]
				printSummary(cmd.OutOrStdout(), summary)
				if adataPath != "" {
					if err := anndata.Write(adataPath, adata, overwrite); err != nil {
						return err
					}
				}
			} else {
				printCalls(cmd.OutOrStdout(), call)
			}

			if csvPath != "" {
				df := callFrame(m.FeatureNames(), alpha, beta, call, expressed)
				if err := writeFrame(csvPath, df, overwrite); err != nil {
					return err
				}
			}
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&modelDir, "model", "m", "autozi-model", "directory of a saved model")
	fs.StringVar(&csvPath, "csv", "", "write the per-feature calls as CSV")
	fs.StringVar(&adataPath, "adata", "", "write the annotated data set to this file (needs count files)")
	fs.BoolVar(&overwrite, "overwrite", false, "replace existing outputs")
	return cmd
}

func callFrame(features []string, alpha, beta []float64, call *metrics.ZeroInflationCall, expressed []bool) dataframe.DataFrame {
	cols := []series.Series{
		series.New(features, series.String, "feature"),
		series.New(alpha, series.Float, autozi.VarAlpha),
		series.New(beta, series.Float, autozi.VarBeta),
		series.New(autozi.PosteriorMeans(alpha, beta), series.Float, autozi.VarPosteriorMean),
		series.New(call.Probabilities, series.Float, autozi.VarZIProbability),
		series.New(call.IsZeroInflated, series.Bool, autozi.VarFlagIsZI),
	}
	if expressed != nil {
		cols = append(cols, series.New(expressed, series.Bool, autozi.VarFlagExpressed))
	}
	return dataframe.New(cols...)
}
