package anndata

import (
	"io/fs"
	"os"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scigo-autozi/core/model"
	"github.com/YuminosukeSato/scigo-autozi/pkg/errors"
	"github.com/YuminosukeSato/scigo-autozi/pkg/log"
)

// Well-known annotation keys.
const (
	LayerCounts   = "counts"
	ObsBatch      = "batch"
	ObsmLatent    = "X_AutoZI"
	UnsSchema     = "schema_version"
	SchemaVersion = 1
)

// AnnotatedData bundles a count matrix with per-cell and per-feature
// annotations.
//
//   - Layers: additional N × G matrices (the raw "counts" layer is always present)
//   - Obsm: per-cell multidimensional annotations such as the latent embedding
//   - Var/VarFlags: per-feature numeric and boolean annotations
//   - Uns: unstructured scalar results
type AnnotatedData struct {
	Counts *CountMatrix
	Batch  *BatchLabel

	Layers   map[string]*mat.Dense
	Obsm     map[string]*mat.Dense
	Var      map[string][]float64
	VarFlags map[string][]bool
	Uns      map[string]float64
}

// NewAnnotatedData pairs counts with batch labels. The label count must
// equal the number of cells.
func NewAnnotatedData(counts *CountMatrix, batch *BatchLabel) (*AnnotatedData, error) {
	if counts == nil {
		return nil, errors.NewConfigurationError("counts", "count matrix is required", nil)
	}
	if batch == nil {
		return nil, errors.NewConfigurationError("batch", "batch labels are required", nil)
	}
	if batch.Len() != counts.NumCells() {
		return nil, errors.NewConfigurationError("batch",
			"number of batch labels must equal the number of cells",
			map[string]int{"labels": batch.Len(), "cells": counts.NumCells()})
	}
	return &AnnotatedData{
		Counts:   counts,
		Batch:    batch,
		Layers:   map[string]*mat.Dense{LayerCounts: counts.Dense()},
		Obsm:     make(map[string]*mat.Dense),
		Var:      make(map[string][]float64),
		VarFlags: make(map[string][]bool),
		Uns:      map[string]float64{UnsSchema: SchemaVersion},
	}, nil
}

// SetObsm attaches a per-cell matrix (one row per cell).
func (a *AnnotatedData) SetObsm(key string, m mat.Matrix) error {
	r, _ := m.Dims()
	if r != a.Counts.NumCells() {
		return errors.NewDimensionError("AnnotatedData.SetObsm", a.Counts.NumCells(), r, 0)
	}
	a.Obsm[key] = mat.DenseCopyOf(m)
	return nil
}

// SetVar attaches a numeric per-feature annotation.
func (a *AnnotatedData) SetVar(key string, values []float64) error {
	if len(values) != a.Counts.NumFeatures() {
		return errors.NewDimensionError("AnnotatedData.SetVar", a.Counts.NumFeatures(), len(values), 1)
	}
	a.Var[key] = append([]float64(nil), values...)
	return nil
}

// SetVarFlags attaches a boolean per-feature annotation.
func (a *AnnotatedData) SetVarFlags(key string, values []bool) error {
	if len(values) != a.Counts.NumFeatures() {
		return errors.NewDimensionError("AnnotatedData.SetVarFlags", a.Counts.NumFeatures(), len(values), 1)
	}
	a.VarFlags[key] = append([]bool(nil), values...)
	return nil
}

// container is the on-disk form of AnnotatedData.
type container struct {
	Version      int
	NumCells     int
	NumFeatures  int
	X            []float64
	CellIDs      []string
	FeatureNames []string
	Batch        []string
	Layers       map[string]matrix
	Obsm         map[string]matrix
	Var          map[string][]float64
	VarFlags     map[string][]bool
	Uns          map[string]float64
}

type matrix struct {
	Rows, Cols int
	Data       []float64
}

func toMatrix(m *mat.Dense) matrix {
	r, c := m.Dims()
	return matrix{Rows: r, Cols: c, Data: mat.DenseCopyOf(m).RawMatrix().Data}
}

// Write stores a as a gzip-compressed gob container at path. An existing file
// is replaced only when overwrite is set; otherwise fs.ErrExist is returned.
func Write(path string, a *AnnotatedData, overwrite bool) error {
	logger := log.GetLoggerWithName("anndata")
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.Wrapf(fs.ErrExist, "anndata: %s already exists", path)
		}
	}

	n, g := a.Counts.Dims()
	c := container{
		Version:      SchemaVersion,
		NumCells:     n,
		NumFeatures:  g,
		X:            a.Counts.Dense().RawMatrix().Data,
		CellIDs:      a.Counts.CellIDs(),
		FeatureNames: a.Counts.FeatureNames(),
		Batch:        a.Batch.Labels(),
		Layers:       make(map[string]matrix, len(a.Layers)),
		Obsm:         make(map[string]matrix, len(a.Obsm)),
		Var:          a.Var,
		VarFlags:     a.VarFlags,
		Uns:          a.Uns,
	}
	for _, k := range sortedKeys(a.Layers) {
		c.Layers[k] = toMatrix(a.Layers[k])
	}
	for _, k := range sortedKeys(a.Obsm) {
		c.Obsm[k] = toMatrix(a.Obsm[k])
	}

	if err := model.SaveModel(c, path); err != nil {
		return errors.Wrapf(err, "anndata: write %s", path)
	}
	logger.Info("Annotated data written",
		log.OperationKey, log.OperationSave,
		log.PathKey, path,
		log.SamplesKey, n,
		log.FeaturesKey, g,
	)
	return nil
}

// Read loads a container written by Write.
func Read(path string) (*AnnotatedData, error) {
	var c container
	if err := model.LoadModel(&c, path); err != nil {
		return nil, errors.Wrapf(err, "anndata: read %s", path)
	}
	if c.Version != SchemaVersion {
		return nil, errors.NewModelError("anndata.Read", "unsupported schema version", errors.Newf("got %d, want %d", c.Version, SchemaVersion))
	}
	if len(c.X) != c.NumCells*c.NumFeatures {
		return nil, errors.NewModelError("anndata.Read", "corrupt container", errors.Newf("%d values for %dx%d", len(c.X), c.NumCells, c.NumFeatures))
	}

	counts, err := NewCountMatrix(mat.NewDense(c.NumCells, c.NumFeatures, c.X), c.CellIDs, c.FeatureNames)
	if err != nil {
		return nil, err
	}
	batch, err := NewBatchLabel(c.Batch)
	if err != nil {
		return nil, err
	}
	a, err := NewAnnotatedData(counts, batch)
	if err != nil {
		return nil, err
	}
	for k, m := range c.Layers {
		if len(m.Data) != m.Rows*m.Cols || m.Rows == 0 || m.Cols == 0 {
			return nil, errors.NewModelError("anndata.Read", "corrupt layer "+k, nil)
		}
		a.Layers[k] = mat.NewDense(m.Rows, m.Cols, m.Data)
	}
	for k, m := range c.Obsm {
		if len(m.Data) != m.Rows*m.Cols || m.Rows == 0 || m.Cols == 0 {
			return nil, errors.NewModelError("anndata.Read", "corrupt obsm "+k, nil)
		}
		a.Obsm[k] = mat.NewDense(m.Rows, m.Cols, m.Data)
	}
	for k, v := range c.Var {
		a.Var[k] = v
	}
	for k, v := range c.VarFlags {
		a.VarFlags[k] = v
	}
	for k, v := range c.Uns {
		a.Uns[k] = v
	}
	return a, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
