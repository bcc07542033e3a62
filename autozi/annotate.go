package autozi

import (
	"github.com/YuminosukeSato/scigo-autozi/anndata"
	"github.com/YuminosukeSato/scigo-autozi/metrics"
	"github.com/YuminosukeSato/scigo-autozi/pkg/errors"
	"github.com/YuminosukeSato/scigo-autozi/pkg/log"
)

// Keys written by Annotate.
const (
	VarZIProbability   = "zi_probability"
	VarPosteriorMean   = "posterior_mean"
	VarAlpha           = "alpha"
	VarBeta            = "beta"
	VarFlagIsZI        = "is_zi"
	VarFlagExpressed   = "expressed"
	UnsFractionZI      = "fraction_zi"
	UnsFractionExpr    = "fraction_expressed"
	UnsFractionZIAmong = "fraction_zi_expressed"
)

// Annotate computes the latent embedding and the zero-inflation calls of a
// trained model for a, and stores them in a.Obsm, a.Var, a.VarFlags and a.Uns.
// The expression filter uses the raw counts of a.
func Annotate(m *Model, a *anndata.AnnotatedData) (*metrics.ZeroInflationSummary, error) {
	if a == nil {
		return nil, errors.NewConfigurationError("adata", "annotated data is required", nil)
	}
	latent, err := GetLatent(m, a.Counts, a.Batch)
	if err != nil {
		return nil, err
	}
	alpha, beta, err := GetZIPosterior(m)
	if err != nil {
		return nil, err
	}
	call, err := metrics.ClassifyZeroInflation(alpha, beta)
	if err != nil {
		return nil, err
	}
	expressed := metrics.ExpressionFilter(a.Counts.Matrix())
	summary, err := metrics.SummarizeZeroInflation(call, expressed)
	if err != nil {
		return nil, err
	}

	if err := a.SetObsm(anndata.ObsmLatent, latent.Values); err != nil {
		return nil, err
	}
	for key, values := range map[string][]float64{
		VarZIProbability: call.Probabilities,
		VarPosteriorMean: PosteriorMeans(alpha, beta),
		VarAlpha:         alpha,
		VarBeta:          beta,
	} {
		if err := a.SetVar(key, values); err != nil {
			return nil, err
		}
	}
	if err := a.SetVarFlags(VarFlagIsZI, call.IsZeroInflated); err != nil {
		return nil, err
	}
	if err := a.SetVarFlags(VarFlagExpressed, expressed); err != nil {
		return nil, err
	}
	a.Uns[UnsFractionZI] = summary.FractionZeroInflated
	a.Uns[UnsFractionExpr] = summary.FractionExpressed
	a.Uns[UnsFractionZIAmong] = summary.FractionZeroInflatedAmongExpressed

	m.logger.Info("Zero-inflation classified",
		log.OperationKey, log.OperationClassify,
		log.FeaturesKey, summary.NumFeatures,
		log.ZIFractionKey, summary.FractionZeroInflated,
		log.ExpressedFractionKey, summary.FractionExpressed,
		log.ZIExpressedFractionKey, summary.FractionZeroInflatedAmongExpressed,
	)
	return &summary, nil
}
