package anndata

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scigo-autozi/core/parallel"
	"github.com/YuminosukeSato/scigo-autozi/pkg/errors"
	"github.com/YuminosukeSato/scigo-autozi/pkg/log"
)

// CellIDColumn is the header of the first column in a filtered expression matrix.
const CellIDColumn = "CellID"

// FilteredMatrixSuffix is appended to the sample name by the filtering step.
const FilteredMatrixSuffix = ".filtered_transposed_expression_matrix.txt"

type table struct {
	cellIDs  []string
	features []string
	values   []float64
}

// BatchNameFromPath derives the batch label of a file from its base name.
func BatchNameFromPath(path string) string {
	base := filepath.Base(path)
	if strings.HasSuffix(base, FilteredMatrixSuffix) {
		return strings.TrimSuffix(base, FilteredMatrixSuffix)
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// LoadTSV reads one or more tab-separated cell × feature matrices. Each file
// has a CellID column followed by one column per feature, and contributes one
// batch named after the file. Files are parsed concurrently and concatenated
// in argument order; all files must list the same features in the same order.
func LoadTSV(ctx context.Context, paths ...string) (*AnnotatedData, error) {
	if len(paths) == 0 {
		return nil, errors.NewConfigurationError("paths", "at least one input file is required", 0)
	}
	logger := log.GetLoggerWithName("anndata")

	tables := make([]*table, len(paths))
	err := parallel.ForEach(ctx, len(paths), 0, func(_ context.Context, i int) error {
		t, err := readTable(paths[i])
		if err != nil {
			return err
		}
		tables[i] = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	features := tables[0].features
	var (
		cellIDs []string
		labels  []string
		values  []float64
	)
	for i, t := range tables {
		if err := sameFeatures(features, t.features); err != nil {
			return nil, errors.NewConfigurationError("features",
				fmt.Sprintf("%s does not match the feature order of %s: %v", paths[i], paths[0], err), len(t.features))
		}
		batch := BatchNameFromPath(paths[i])
		cellIDs = append(cellIDs, t.cellIDs...)
		for range t.cellIDs {
			labels = append(labels, batch)
		}
		values = append(values, t.values...)
	}

	counts, err := NewCountMatrix(mat.NewDense(len(cellIDs), len(features), values), cellIDs, features)
	if err != nil {
		return nil, err
	}
	batch, err := NewBatchLabel(labels)
	if err != nil {
		return nil, err
	}

	for _, name := range batch.Categories() {
		logger.Info("Batch loaded", "batch", name, log.SamplesKey, batch.Counts()[name])
	}
	logger.Info("Count matrices loaded",
		log.SamplesKey, counts.NumCells(),
		log.FeaturesKey, counts.NumFeatures(),
		log.BatchesKey, len(batch.Categories()),
	)
	return NewAnnotatedData(counts, batch)
}

func readTable(path string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "anndata: open %s", path)
	}
	defer f.Close()

	df := dataframe.ReadCSV(f,
		dataframe.WithDelimiter('\t'),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.Float),
		dataframe.WithTypes(map[string]series.Type{CellIDColumn: series.String}),
	)
	if df.Err != nil {
		return nil, errors.Wrapf(df.Err, "anndata: parse %s", path)
	}

	names := df.Names()
	if len(names) < 2 || names[0] != CellIDColumn {
		return nil, errors.NewConfigurationError("header",
			fmt.Sprintf("%s must start with a %s column followed by feature columns", path, CellIDColumn), names)
	}
	nRows := df.Nrow()
	if nRows == 0 {
		return nil, errors.NewConfigurationError("cells", path+" contains no cells", 0)
	}

	features := names[1:]
	values := make([]float64, nRows*len(features))
	for j, name := range features {
		col := df.Col(name).Float()
		for i, v := range col {
			values[i*len(features)+j] = v
		}
	}
	return &table{
		cellIDs:  df.Col(CellIDColumn).Records(),
		features: features,
		values:   values,
	}, nil
}

func sameFeatures(want, got []string) error {
	if len(want) != len(got) {
		return errors.Newf("expected %d features, got %d", len(want), len(got))
	}
	for i := range want {
		if want[i] != got[i] {
			return errors.Newf("feature %d is %q, expected %q", i, got[i], want[i])
		}
	}
	return nil
}
