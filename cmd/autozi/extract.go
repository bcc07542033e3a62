package main

import (
	"fmt"
	"os"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/scigo-autozi/anndata"
	"github.com/YuminosukeSato/scigo-autozi/autozi"
	"github.com/YuminosukeSato/scigo-autozi/pkg/errors"
)

func newExtractCmd() *cobra.Command {
	var (
		modelDir  string
		csvPath   string
		adataPath string
		overwrite bool
	)
	cmd := &cobra.Command{
		Use:   "extract [flags] counts.tsv...",
		Short: "Compute the latent embedding of every cell",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := autozi.Load(modelDir)
			if err != nil {
				return err
			}
			adata, err := anndata.LoadTSV(cmd.Context(), args...)
			if err != nil {
				return err
			}
			latent, err := m.GetLatent(adata.Counts, adata.Batch)
			if err != nil {
				return err
			}
			if err := adata.SetObsm(anndata.ObsmLatent, latent.Values); err != nil {
				return err
			}

			if csvPath != "" {
				if err := writeLatentCSV(csvPath, latent, overwrite); err != nil {
					return err
				}
			}
			if adataPath != "" {
				if err := anndata.Write(adataPath, adata, overwrite); err != nil {
					return err
				}
			}
			cells, k := latent.Dims()
			fmt.Fprintf(cmd.OutOrStdout(), "latent:     %s cells x %d dimensions\n", formatCount(cells), k)
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&modelDir, "model", "m", "autozi-model", "directory of a saved model")
	fs.StringVar(&csvPath, "csv", "", "write the embedding as CSV (CellID, z1..zK)")
	fs.StringVar(&adataPath, "adata", "", "write the annotated data set to this file")
	fs.BoolVar(&overwrite, "overwrite", false, "replace existing outputs")
	return cmd
}

func writeLatentCSV(path string, latent *autozi.LatentEmbedding, overwrite bool) error {
	cells, k := latent.Dims()
	cols := make([]series.Series, 0, k+1)
	cols = append(cols, series.New(latent.CellIDs, series.String, anndata.CellIDColumn))
	for j := 0; j < k; j++ {
		values := make([]float64, cells)
		for i := range values {
			values[i] = latent.Values.At(i, j)
		}
		cols = append(cols, series.New(values, series.Float, fmt.Sprintf("z%d", j+1)))
	}
	return writeFrame(path, dataframe.New(cols...), overwrite)
}

func writeFrame(path string, df dataframe.DataFrame, overwrite bool) error {
	if df.Err != nil {
		return errors.Wrap(df.Err, "build table")
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := df.WriteCSV(f); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return f.Close()
}
