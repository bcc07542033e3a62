package anndata

import (
	"context"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scigo-autozi/pkg/errors"
)

func TestNewCountMatrix(t *testing.T) {
	data := mat.NewDense(2, 3, []float64{0, 1, 2, 3, 4, 5})
	c, err := NewCountMatrix(data, nil, []string{"a", "b", "c"})
	require.NoError(t, err)

	n, g := c.Dims()
	assert.Equal(t, 2, n)
	assert.Equal(t, 3, g)
	assert.Equal(t, []string{"cell_0", "cell_1"}, c.CellIDs())
	assert.Equal(t, []float64{1.5, 2.5, 3.5}, c.MeanCounts())

	// input is copied
	data.Set(0, 0, 100)
	assert.Equal(t, 0.0, c.At(0, 0))

	sub := c.Rows([]int{1, 0})
	assert.Equal(t, []float64{3, 4, 5, 0, 1, 2}, sub.RawMatrix().Data)
}

func TestNewCountMatrix_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data mat.Matrix
	}{
		{"negative", mat.NewDense(1, 2, []float64{1, -1})},
		{"nan", mat.NewDense(1, 2, []float64{1, math.NaN()})},
		{"nil", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCountMatrix(tt.data, nil, nil)
			var cfgErr *errors.ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Equal(t, "counts", cfgErr.ParamName)
		})
	}

	_, err := NewCountMatrix(mat.NewDense(2, 1, nil), []string{"only-one"}, nil)
	var dimErr *errors.DimensionError
	require.True(t, errors.As(err, &dimErr))
}

func TestNewCountMatrix_RoundsNonInteger(t *testing.T) {
	var warnings []error
	errors.SetZerologWarnFunc(func(w error) { warnings = append(warnings, w) })
	t.Cleanup(func() { errors.SetZerologWarnFunc(nil) })

	c, err := NewCountMatrix(mat.NewDense(1, 2, []float64{1.4, 2.6}), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3}, c.Row(0))
	require.Len(t, warnings, 1)
	var conv *errors.DataConversionWarning
	assert.True(t, errors.As(warnings[0], &conv))
}

func TestBatchLabel(t *testing.T) {
	b, err := NewBatchLabel([]string{"pbmc2", "pbmc1", "pbmc2"})
	require.NoError(t, err)

	assert.Equal(t, []string{"pbmc1", "pbmc2"}, b.Categories())
	assert.Equal(t, []int{1, 0, 1}, b.Codes())
	assert.Equal(t, map[string]int{"pbmc1": 1, "pbmc2": 2}, b.Counts())

	_, err = b.EncodeWith([]string{"pbmc1"})
	var cfgErr *errors.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))

	_, err = NewBatchLabel(nil)
	assert.True(t, errors.As(err, &cfgErr))
	_, err = NewBatchLabel([]string{"a", ""})
	assert.True(t, errors.As(err, &cfgErr))

	oh := OneHot([]int{1, 0}, 2)
	assert.Equal(t, []float64{0, 1, 1, 0}, oh.RawMatrix().Data)
}

func TestNewAnnotatedData_BatchMismatch(t *testing.T) {
	counts, err := NewCountMatrix(mat.NewDense(3, 2, nil), nil, nil)
	require.NoError(t, err)
	batch, err := NewBatchLabel([]string{"a", "b"})
	require.NoError(t, err)

	_, err = NewAnnotatedData(counts, batch)
	var cfgErr *errors.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "batch", cfgErr.ParamName)
}

func newTestData(t *testing.T) *AnnotatedData {
	t.Helper()
	counts, err := NewCountMatrix(mat.NewDense(3, 2, []float64{0, 1, 2, 3, 4, 5}), []string{"c1", "c2", "c3"}, []string{"g1", "g2"})
	require.NoError(t, err)
	batch, err := NewBatchLabel([]string{"a", "a", "b"})
	require.NoError(t, err)
	a, err := NewAnnotatedData(counts, batch)
	require.NoError(t, err)
	return a
}

func TestAnnotatedData_WriteRead(t *testing.T) {
	a := newTestData(t)
	require.NoError(t, a.SetObsm(ObsmLatent, mat.NewDense(3, 2, []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6})))
	require.NoError(t, a.SetVar("zi_probability", []float64{0.7, 0.2}))
	require.NoError(t, a.SetVarFlags("is_zi", []bool{true, false}))
	a.Uns["fraction_zi"] = 0.5

	path := filepath.Join(t.TempDir(), "data.adata.gob.gz")
	require.NoError(t, Write(path, a, false))

	got, err := Read(path)
	require.NoError(t, err)
	assert.True(t, mat.Equal(a.Counts.Matrix(), got.Counts.Matrix()))
	assert.Equal(t, []string{"c1", "c2", "c3"}, got.Counts.CellIDs())
	assert.Equal(t, []string{"a", "a", "b"}, got.Batch.Labels())
	assert.True(t, mat.Equal(a.Obsm[ObsmLatent], got.Obsm[ObsmLatent]))
	assert.True(t, mat.Equal(a.Layers[LayerCounts], got.Layers[LayerCounts]))
	assert.Equal(t, []float64{0.7, 0.2}, got.Var["zi_probability"])
	assert.Equal(t, []bool{true, false}, got.VarFlags["is_zi"])
	assert.Equal(t, 0.5, got.Uns["fraction_zi"])
	assert.Equal(t, float64(SchemaVersion), got.Uns[UnsSchema])

	err = Write(path, a, false)
	assert.True(t, errors.Is(err, fs.ErrExist))
	assert.NoError(t, Write(path, a, true))
}

func TestAnnotatedData_DimensionChecks(t *testing.T) {
	a := newTestData(t)
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(a.SetObsm("bad", mat.NewDense(2, 2, nil)), &dimErr))
	assert.True(t, errors.As(a.SetVar("bad", []float64{1}), &dimErr))
	assert.True(t, errors.As(a.SetVarFlags("bad", []bool{true, false, true}), &dimErr))
}

func TestRead_MissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing.gob.gz"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTSV(t *testing.T) {
	dir := t.TempDir()
	p1 := writeFile(t, dir, "PBMC1"+FilteredMatrixSuffix, "CellID\tGENE1\tGENE2\nAAA\t1\t0\nAAC\t3\t2\n")
	p2 := writeFile(t, dir, "PBMC2.txt", "CellID\tGENE1\tGENE2\nTTT\t0\t5\n")

	a, err := LoadTSV(context.Background(), p1, p2)
	require.NoError(t, err)

	assert.Equal(t, []string{"AAA", "AAC", "TTT"}, a.Counts.CellIDs())
	assert.Equal(t, []string{"GENE1", "GENE2"}, a.Counts.FeatureNames())
	assert.Equal(t, []string{"PBMC1", "PBMC1", "PBMC2"}, a.Batch.Labels())
	assert.Equal(t, []float64{1, 0, 3, 2, 0, 5}, a.Counts.Dense().RawMatrix().Data)
	assert.Equal(t, map[string]int{"PBMC1": 2, "PBMC2": 1}, a.Batch.Counts())
}

func TestLoadTSV_FeatureMismatch(t *testing.T) {
	dir := t.TempDir()
	p1 := writeFile(t, dir, "a.txt", "CellID\tGENE1\tGENE2\nAAA\t1\t0\n")
	p2 := writeFile(t, dir, "b.txt", "CellID\tGENE2\tGENE1\nTTT\t0\t5\n")

	_, err := LoadTSV(context.Background(), p1, p2)
	var cfgErr *errors.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "features", cfgErr.ParamName)
}

func TestLoadTSV_Errors(t *testing.T) {
	_, err := LoadTSV(context.Background())
	var cfgErr *errors.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))

	_, err = LoadTSV(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.txt", "Barcode\tGENE1\nAAA\t1\n")
	_, err = LoadTSV(context.Background(), bad)
	assert.True(t, errors.As(err, &cfgErr))
}

func TestBatchNameFromPath(t *testing.T) {
	assert.Equal(t, "PBMC1", BatchNameFromPath("/data/PBMC1"+FilteredMatrixSuffix))
	assert.Equal(t, "sample", BatchNameFromPath("sample.tsv"))
}
