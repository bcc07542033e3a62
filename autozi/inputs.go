package autozi

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scigo-autozi/anndata"
	"github.com/YuminosukeSato/scigo-autozi/pkg/errors"
	"github.com/YuminosukeSato/scigo-autozi/preprocessing"
)

// inputs are the per-cell model inputs derived from a count matrix.
type inputs struct {
	counts  *mat.Dense
	logX    *mat.Dense
	onehot  *mat.Dense
	library []float64
}

// prepareInputs encodes counts and batch labels against the model's feature
// set and batch vocabulary.
func (m *Model) prepareInputs(counts *anndata.CountMatrix, batch *anndata.BatchLabel) (*inputs, error) {
	if counts.NumFeatures() != m.NumFeatures() {
		return nil, errors.NewDimensionError("prepareInputs", m.NumFeatures(), counts.NumFeatures(), 1)
	}
	if batch.Len() != counts.NumCells() {
		return nil, errors.NewConfigurationError("batch",
			"number of batch labels must equal the number of cells",
			map[string]int{"labels": batch.Len(), "cells": counts.NumCells()})
	}
	codes, err := batch.EncodeWith(m.batches)
	if err != nil {
		return nil, err
	}

	tr := preprocessing.NewLog1pTransformer()
	logX, err := tr.FitTransform(counts.Matrix())
	if err != nil {
		return nil, err
	}
	return &inputs{
		counts:  counts.Dense(),
		logX:    logX,
		onehot:  anndata.OneHot(codes, len(m.batches)),
		library: preprocessing.LibrarySize(counts.Matrix()),
	}, nil
}

func (in *inputs) numCells() int {
	r, _ := in.counts.Dims()
	return r
}

func (in *inputs) minibatch(idx []int) *minibatch {
	lib := make([]float64, len(idx))
	for k, i := range idx {
		lib[k] = in.library[i]
	}
	return &minibatch{
		counts:  gatherRows(in.counts, idx),
		logX:    gatherRows(in.logX, idx),
		onehot:  gatherRows(in.onehot, idx),
		library: lib,
	}
}
