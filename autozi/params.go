package autozi

import (
	"math"
	"math/rand"

	"github.com/YuminosukeSato/scigo-autozi/core/model"
	"github.com/YuminosukeSato/scigo-autozi/nn"
)

// Params holds every learnable quantity of the model plus the fixed
// per-feature Beta prior. Gradients live next to the values they belong to.
type Params struct {
	// Encoder: [log1p(x) ‖ onehot(b)] → hidden → (mean, log variance).
	EncHidden *nn.Dense
	EncMean   *nn.Dense
	EncLogVar *nn.Dense

	// Decoder: [z ‖ onehot(b)] → hidden → (scale logits, dropout logits).
	DecHidden  *nn.Dense
	DecScale   *nn.Dense
	DecDropout *nn.Dense

	// LogTheta is the log inverse dispersion of each feature.
	LogTheta []float64

	// LogAlpha and LogBeta parameterize the Beta posterior of each feature.
	LogAlpha []float64
	LogBeta  []float64

	// Alpha0 and Beta0 are the fixed prior shapes.
	Alpha0 []float64
	Beta0  []float64

	DLogTheta []float64
	DLogAlpha []float64
	DLogBeta  []float64
}

func newParams(nFeatures, nBatches int, cfg ModelConfig, alpha0, beta0 []float64) *Params {
	rng := rand.New(rand.NewSource(cfg.Seed))
	k, h := cfg.LatentDim, cfg.HiddenSize

	p := &Params{
		EncHidden:  nn.NewDense("encoder.hidden", nFeatures+nBatches, h, rng),
		EncMean:    nn.NewDense("encoder.mean", h, k, rng),
		EncLogVar:  nn.NewDense("encoder.log_var", h, k, rng),
		DecHidden:  nn.NewDense("decoder.hidden", k+nBatches, h, rng),
		DecScale:   nn.NewDense("decoder.scale", h, nFeatures, rng),
		DecDropout: nn.NewDense("decoder.dropout", h, nFeatures, rng),
		LogTheta:   make([]float64, nFeatures),
		LogAlpha:   make([]float64, nFeatures),
		LogBeta:    make([]float64, nFeatures),
		Alpha0:     alpha0,
		Beta0:      beta0,
		DLogTheta:  make([]float64, nFeatures),
		DLogAlpha:  make([]float64, nFeatures),
		DLogBeta:   make([]float64, nFeatures),
	}
	for g := range p.LogAlpha {
		p.LogAlpha[g] = math.Log(alpha0[g])
		p.LogBeta[g] = math.Log(beta0[g])
	}
	return p
}

func (p *Params) layers() []*nn.Dense {
	return []*nn.Dense{p.EncHidden, p.EncMean, p.EncLogVar, p.DecHidden, p.DecScale, p.DecDropout}
}

// optimizerParams lists the trainable parameters. Dense weights take weight
// decay; biases, dispersions and Beta shapes do not.
func (p *Params) optimizerParams() []*nn.Param {
	var out []*nn.Param
	for _, l := range p.layers() {
		out = append(out, l.Params()...)
	}
	return append(out,
		&nn.Param{Name: "log_theta", Value: p.LogTheta, Grad: p.DLogTheta},
		&nn.Param{Name: "log_alpha", Value: p.LogAlpha, Grad: p.DLogAlpha},
		&nn.Param{Name: "log_beta", Value: p.LogBeta, Grad: p.DLogBeta},
	)
}

// Alpha returns the posterior alpha shapes.
func (p *Params) Alpha() []float64 {
	return expAll(p.LogAlpha)
}

// Beta returns the posterior beta shapes.
func (p *Params) Beta() []float64 {
	return expAll(p.LogBeta)
}

// Theta returns the inverse dispersions.
func (p *Params) Theta() []float64 {
	return expAll(p.LogTheta)
}

func expAll(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = math.Exp(x)
	}
	return out
}

func cloneSlice(v []float64) []float64 {
	return append([]float64(nil), v...)
}

// clone returns a deep copy of the parameter values.
func (p *Params) clone() *Params {
	return &Params{
		EncHidden:  p.EncHidden.Clone(),
		EncMean:    p.EncMean.Clone(),
		EncLogVar:  p.EncLogVar.Clone(),
		DecHidden:  p.DecHidden.Clone(),
		DecScale:   p.DecScale.Clone(),
		DecDropout: p.DecDropout.Clone(),
		LogTheta:   cloneSlice(p.LogTheta),
		LogAlpha:   cloneSlice(p.LogAlpha),
		LogBeta:    cloneSlice(p.LogBeta),
		Alpha0:     cloneSlice(p.Alpha0),
		Beta0:      cloneSlice(p.Beta0),
		DLogTheta:  make([]float64, len(p.LogTheta)),
		DLogAlpha:  make([]float64, len(p.LogAlpha)),
		DLogBeta:   make([]float64, len(p.LogBeta)),
	}
}

// restore overwrites the values in place so that optimizer aliases stay valid.
func (p *Params) restore(src *Params) {
	dst := p.layers()
	for i, l := range src.layers() {
		dst[i].CopyFrom(l)
	}
	copy(p.LogTheta, src.LogTheta)
	copy(p.LogAlpha, src.LogAlpha)
	copy(p.LogBeta, src.LogBeta)
}

const (
	vecLogTheta = "log_theta"
	vecLogAlpha = "log_alpha"
	vecLogBeta  = "log_beta"
	vecAlpha0   = "prior_alpha"
	vecBeta0    = "prior_beta"
)

func (p *Params) export(w *model.ModelWeights) {
	for _, l := range p.layers() {
		w.SetMatrix(l.Name+".W", l.W)
		w.SetVector(l.Name+".b", l.B)
	}
	w.SetVector(vecLogTheta, p.LogTheta)
	w.SetVector(vecLogAlpha, p.LogAlpha)
	w.SetVector(vecLogBeta, p.LogBeta)
	w.SetVector(vecAlpha0, p.Alpha0)
	w.SetVector(vecBeta0, p.Beta0)
}

// importInto copies weights into p, whose shapes were already built from the
// stored configuration.
func (p *Params) importInto(w *model.ModelWeights) error {
	for _, l := range p.layers() {
		m, err := w.Matrix(l.Name + ".W")
		if err != nil {
			return err
		}
		if r, c := m.Dims(); r != l.In() || c != l.Out() {
			return errShape(l.Name+".W", l.In(), l.Out(), r, c)
		}
		b, err := w.Vector(l.Name + ".b")
		if err != nil {
			return err
		}
		if len(b) != l.Out() {
			return errShape(l.Name+".b", 1, l.Out(), 1, len(b))
		}
		l.W.Copy(m)
		copy(l.B, b)
	}
	for _, v := range []struct {
		name string
		dst  []float64
	}{
		{vecLogTheta, p.LogTheta},
		{vecLogAlpha, p.LogAlpha},
		{vecLogBeta, p.LogBeta},
		{vecAlpha0, p.Alpha0},
		{vecBeta0, p.Beta0},
	} {
		src, err := w.Vector(v.name)
		if err != nil {
			return err
		}
		if len(src) != len(v.dst) {
			return errShape(v.name, 1, len(v.dst), 1, len(src))
		}
		copy(v.dst, src)
	}
	return nil
}
