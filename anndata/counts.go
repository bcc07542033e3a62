// Package anndata holds single-cell count data and its annotations: the
// cell × feature count matrix, the per-cell batch label, and the container
// that carries the learned latent embedding and per-feature results to disk.
package anndata

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scigo-autozi/pkg/errors"
)

// CountMatrix is an immutable N cells × G features matrix of non-negative
// integer counts.
type CountMatrix struct {
	data         *mat.Dense
	cellIDs      []string
	featureNames []string
}

// NewCountMatrix validates and copies data. Negative or non-finite entries
// are rejected with a ConfigurationError; non-integer entries are rounded to
// the nearest integer and a DataConversionWarning is raised. cellIDs and
// featureNames may be nil, in which case positional names are generated.
func NewCountMatrix(data mat.Matrix, cellIDs, featureNames []string) (*CountMatrix, error) {
	if data == nil {
		return nil, errors.NewConfigurationError("counts", "count matrix is required", nil)
	}
	n, g := data.Dims()
	if n == 0 || g == 0 {
		return nil, errors.NewConfigurationError("counts", "count matrix must have at least one cell and one feature", fmt.Sprintf("%dx%d", n, g))
	}
	if cellIDs != nil && len(cellIDs) != n {
		return nil, errors.NewDimensionError("NewCountMatrix", n, len(cellIDs), 0)
	}
	if featureNames != nil && len(featureNames) != g {
		return nil, errors.NewDimensionError("NewCountMatrix", g, len(featureNames), 1)
	}

	out := mat.NewDense(n, g, nil)
	rounded := 0
	for i := 0; i < n; i++ {
		row := out.RawRowView(i)
		for j := 0; j < g; j++ {
			v := data.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, errors.NewConfigurationError("counts", fmt.Sprintf("non-finite count at cell %d, feature %d", i, j), v)
			}
			if v < 0 {
				return nil, errors.NewConfigurationError("counts", fmt.Sprintf("negative count at cell %d, feature %d", i, j), v)
			}
			if r := math.Round(v); r != v {
				rounded++
				v = r
			}
			row[j] = v
		}
	}
	if rounded > 0 {
		errors.Warn(errors.NewDataConversionWarning("float64", "integer counts",
			fmt.Sprintf("%d non-integer entries rounded to the nearest integer", rounded)))
	}

	return &CountMatrix{
		data:         out,
		cellIDs:      namesOrDefault(cellIDs, n, "cell_%d"),
		featureNames: namesOrDefault(featureNames, g, "feature_%d"),
	}, nil
}

func namesOrDefault(names []string, n int, format string) []string {
	out := make([]string, n)
	if names == nil {
		for i := range out {
			out[i] = fmt.Sprintf(format, i)
		}
		return out
	}
	copy(out, names)
	return out
}

// Dims returns the number of cells and features.
func (c *CountMatrix) Dims() (cells, features int) {
	return c.data.Dims()
}

// NumCells returns N.
func (c *CountMatrix) NumCells() int {
	r, _ := c.data.Dims()
	return r
}

// NumFeatures returns G.
func (c *CountMatrix) NumFeatures() int {
	_, g := c.data.Dims()
	return g
}

// At returns the count of feature j in cell i.
func (c *CountMatrix) At(i, j int) float64 {
	return c.data.At(i, j)
}

// Matrix returns a read-only view of the counts. Callers must not mutate it.
func (c *CountMatrix) Matrix() mat.Matrix {
	return c.data
}

// Row returns the counts of cell i. The slice aliases internal storage and
// must not be modified.
func (c *CountMatrix) Row(i int) []float64 {
	return c.data.RawRowView(i)
}

// Dense returns a mutable copy of the counts.
func (c *CountMatrix) Dense() *mat.Dense {
	return mat.DenseCopyOf(c.data)
}

// Rows returns a new matrix holding the given cells in order.
func (c *CountMatrix) Rows(idx []int) *mat.Dense {
	out := mat.NewDense(len(idx), c.NumFeatures(), nil)
	for k, i := range idx {
		copy(out.RawRowView(k), c.data.RawRowView(i))
	}
	return out
}

// CellIDs returns a copy of the cell identifiers.
func (c *CountMatrix) CellIDs() []string {
	return append([]string(nil), c.cellIDs...)
}

// FeatureNames returns a copy of the feature names.
func (c *CountMatrix) FeatureNames() []string {
	return append([]string(nil), c.featureNames...)
}

// MeanCounts returns the mean count of each feature across cells.
func (c *CountMatrix) MeanCounts() []float64 {
	n, g := c.data.Dims()
	means := make([]float64, g)
	for i := 0; i < n; i++ {
		floats.Add(means, c.data.RawRowView(i))
	}
	floats.Scale(1/float64(n), means)
	return means
}

// BatchLabel assigns each cell to one of a fixed set of batches.
type BatchLabel struct {
	labels     []string
	categories []string
	codes      []int
}

// NewBatchLabel builds the categorical vocabulary (sorted distinct labels)
// and integer codes. Every label must be non-empty.
func NewBatchLabel(labels []string) (*BatchLabel, error) {
	if len(labels) == 0 {
		return nil, errors.NewConfigurationError("batch", "batch labels must not be empty", 0)
	}
	seen := make(map[string]struct{})
	for i, l := range labels {
		if l == "" {
			return nil, errors.NewConfigurationError("batch", fmt.Sprintf("cell %d has an empty batch label", i), l)
		}
		seen[l] = struct{}{}
	}
	categories := make([]string, 0, len(seen))
	for l := range seen {
		categories = append(categories, l)
	}
	sort.Strings(categories)

	b := &BatchLabel{
		labels:     append([]string(nil), labels...),
		categories: categories,
	}
	codes, err := b.EncodeWith(categories)
	if err != nil {
		return nil, err
	}
	b.codes = codes
	return b, nil
}

// Len returns the number of cells.
func (b *BatchLabel) Len() int {
	return len(b.labels)
}

// Labels returns a copy of the per-cell labels.
func (b *BatchLabel) Labels() []string {
	return append([]string(nil), b.labels...)
}

// Categories returns a copy of the sorted vocabulary.
func (b *BatchLabel) Categories() []string {
	return append([]string(nil), b.categories...)
}

// Codes returns a copy of the per-cell category indices.
func (b *BatchLabel) Codes() []int {
	return append([]int(nil), b.codes...)
}

// Counts returns the number of cells per batch.
func (b *BatchLabel) Counts() map[string]int {
	counts := make(map[string]int, len(b.categories))
	for _, l := range b.labels {
		counts[l]++
	}
	return counts
}

// EncodeWith maps each label to its index in vocabulary. A label outside the
// vocabulary is a ConfigurationError.
func (b *BatchLabel) EncodeWith(vocabulary []string) ([]int, error) {
	index := make(map[string]int, len(vocabulary))
	for i, v := range vocabulary {
		index[v] = i
	}
	codes := make([]int, len(b.labels))
	for i, l := range b.labels {
		code, ok := index[l]
		if !ok {
			return nil, errors.NewConfigurationError("batch", fmt.Sprintf("cell %d has batch %q which is not in the vocabulary %v", i, l, vocabulary), l)
		}
		codes[i] = code
	}
	return codes, nil
}

// OneHot returns a len(codes) × n indicator matrix.
func OneHot(codes []int, n int) *mat.Dense {
	out := mat.NewDense(len(codes), n, nil)
	for i, c := range codes {
		out.Set(i, c, 1)
	}
	return out
}
