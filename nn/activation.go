package nn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// ReLU returns max(x, 0) elementwise as a new matrix.
func ReLU(x *mat.Dense) *mat.Dense {
	r, c := x.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, _ int, v float64) float64 {
		if v > 0 {
			return v
		}
		return 0
	}, x)
	return out
}

// ReLUBackward masks dOut in place where the pre-activation was not positive.
func ReLUBackward(dOut, pre *mat.Dense) {
	dOut.Apply(func(i, j int, v float64) float64 {
		if pre.At(i, j) > 0 {
			return v
		}
		return 0
	}, dOut)
}

// DropoutMask draws an inverted dropout mask: each entry is 0 with probability
// rate and 1/(1-rate) otherwise. A zero rate yields nil.
func DropoutMask(rows, cols int, rate float64, rng *rand.Rand) *mat.Dense {
	if rate <= 0 {
		return nil
	}
	keep := 1 / (1 - rate)
	data := make([]float64, rows*cols)
	for i := range data {
		if rng.Float64() >= rate {
			data[i] = keep
		}
	}
	return mat.NewDense(rows, cols, data)
}

// ApplyMask multiplies x elementwise by mask in place. A nil mask is a no-op.
func ApplyMask(x, mask *mat.Dense) {
	if mask == nil {
		return
	}
	x.MulElem(x, mask)
}

// SoftmaxRows returns the row-wise softmax of x.
func SoftmaxRows(x *mat.Dense) *mat.Dense {
	r, c := x.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		row := x.RawRowView(i)
		dst := out.RawRowView(i)
		maxVal := math.Inf(-1)
		for _, v := range row {
			if v > maxVal {
				maxVal = v
			}
		}
		var sum float64
		for j, v := range row {
			dst[j] = math.Exp(v - maxVal)
			sum += dst[j]
		}
		for j := range dst {
			dst[j] /= sum
		}
	}
	return out
}

// SoftmaxBackwardRow writes into dLogits the gradient of a softmax given
// its output p and upstream gradient dP.
func SoftmaxBackwardRow(p, dP, dLogits []float64) {
	var dot float64
	for j, v := range p {
		dot += v * dP[j]
	}
	for j, v := range p {
		dLogits[j] = v * (dP[j] - dot)
	}
}

// ConcatColumns returns [a ‖ b].
func ConcatColumns(a, b mat.Matrix) *mat.Dense {
	ra, ca := a.Dims()
	_, cb := b.Dims()
	out := mat.NewDense(ra, ca+cb, nil)
	if ca == 0 || cb == 0 {
		if ca > 0 {
			out.Copy(a)
		} else if cb > 0 {
			out.Copy(b)
		}
		return out
	}
	out.Slice(0, ra, 0, ca).(*mat.Dense).Copy(a)
	out.Slice(0, ra, ca, ca+cb).(*mat.Dense).Copy(b)
	return out
}
