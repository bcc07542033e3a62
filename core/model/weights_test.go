package model

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func sampleWeights() *ModelWeights {
	mw := NewModelWeights("AutoZI", "1")
	mw.RunID = "run-1"
	mw.SetMatrix("encoder.hidden.W", mat.NewDense(2, 3, []float64{0.1, -0.2, 1e-300, 3.3333333333333335, 7, -0}))
	mw.SetVector("alpha", []float64{0.5, 0.123456789012345678, 42})
	mw.SetLabels("batches", []string{"pbmc1", "pbmc2"})
	mw.Hyperparameters["latent_dim"] = 30
	mw.State = ModelState{Trained: true, Frozen: true, Steps: 12}
	return mw
}

func TestModelWeights_JSONRoundTripIsExact(t *testing.T) {
	mw := sampleWeights()
	require.NoError(t, mw.Validate())

	data, err := mw.ToJSON()
	require.NoError(t, err)

	var got ModelWeights
	require.NoError(t, got.FromJSON(data))

	w, err := got.Matrix("encoder.hidden.W")
	require.NoError(t, err)
	want, err := mw.Matrix("encoder.hidden.W")
	require.NoError(t, err)
	assert.True(t, mat.Equal(want, w))

	alpha, err := got.Vector("alpha")
	require.NoError(t, err)
	assert.Equal(t, mw.Vectors["alpha"], alpha)

	batches, err := got.Label("batches")
	require.NoError(t, err)
	assert.Equal(t, []string{"pbmc1", "pbmc2"}, batches)
	assert.Equal(t, mw.State, got.State)
}

func TestModelWeights_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ModelWeights)
	}{
		{"missing type", func(mw *ModelWeights) { mw.ModelType = "" }},
		{"missing version", func(mw *ModelWeights) { mw.Version = "" }},
		{"trained without matrices", func(mw *ModelWeights) { mw.Matrices = map[string]MatrixData{} }},
		{"malformed matrix", func(mw *ModelWeights) {
			mw.Matrices["bad"] = MatrixData{Rows: 2, Cols: 2, Data: []float64{1}}
		}},
		{"non-finite vector", func(mw *ModelWeights) { mw.Vectors["beta"] = []float64{1, math.NaN()} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := sampleWeights()
			tt.mutate(mw)
			assert.Error(t, mw.Validate())
		})
	}
}

func TestModelWeights_CloneIsDeep(t *testing.T) {
	mw := sampleWeights()
	clone := mw.Clone()

	clone.Vectors["alpha"][0] = 99
	clone.Matrices["encoder.hidden.W"].Data[0] = 99
	clone.Labels["batches"][0] = "x"

	assert.Equal(t, 0.5, mw.Vectors["alpha"][0])
	assert.Equal(t, 0.1, mw.Matrices["encoder.hidden.W"].Data[0])
	assert.Equal(t, "pbmc1", mw.Labels["batches"][0])
}

func TestModelWeights_MissingEntries(t *testing.T) {
	mw := NewModelWeights("AutoZI", "1")
	_, err := mw.Matrix("nope")
	assert.Error(t, err)
	_, err = mw.Vector("nope")
	assert.Error(t, err)
	_, err = mw.Label("nope")
	assert.Error(t, err)
}

func TestPersistence_GobRoundTrip(t *testing.T) {
	type payload struct {
		Name   string
		Values []float64
	}
	in := payload{Name: "counts", Values: []float64{0, 1, 2.5}}

	var buf bytes.Buffer
	require.NoError(t, SaveModelToWriter(in, &buf))
	var out payload
	require.NoError(t, LoadModelFromReader(&out, &buf))
	assert.Equal(t, in, out)

	path := filepath.Join(t.TempDir(), "payload.gob.gz")
	require.NoError(t, SaveModel(in, path))
	var fromFile payload
	require.NoError(t, LoadModel(&fromFile, path))
	assert.Equal(t, in, fromFile)
}

func TestPersistence_LoadMissingFile(t *testing.T) {
	var out struct{}
	err := LoadModel(&out, filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
