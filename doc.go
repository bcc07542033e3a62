// Package scigo detects zero-inflated features in single-cell count data.
//
// The model encodes each cell, together with its batch label, into a
// low-dimensional latent space and decodes it into per-feature negative
// binomial and zero-inflated negative binomial likelihoods. Every feature g
// carries a mixing weight δ_g ~ Beta(α_g, β_g) between the two. After
// training, a feature is called zero-inflated when the posterior probability
// P(δ_g ≤ 0.5) exceeds 0.5.
//
// # Installation
//
//	go get github.com/YuminosukeSato/scigo-autozi
//
// # Quick Start
//
//	adata, err := anndata.LoadTSV(ctx, "pbmc1.tsv", "pbmc2.tsv")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	m, err := autozi.SetupAnnData(adata, autozi.WithLatentDim(30))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	trainer, err := autozi.NewTrainer(autozi.DefaultTrainConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if _, err := trainer.Train(ctx, m); err != nil {
//	    log.Fatal(err)
//	}
//	summary, err := autozi.Annotate(m, adata)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("zero-inflated fraction:", summary.FractionZeroInflated)
//
// # Packages
//
//   - anndata: count matrices, batch labels, TSV loading and annotated data files
//   - autozi: the model, its trainer, latent extraction and persistence
//   - metrics: zero-inflation calls, expression filter and summary fractions
//   - distributions: negative binomial, ZINB and Beta terms with gradients
//   - nn: dense layers, activations and the AdamW optimizer
//   - preprocessing: log1p transform and library sizes
//   - core/model: model state, weights and serialization
//   - core/parallel: row-parallel helpers
//   - pkg/errors, pkg/log: structured errors and logging
//
// The autozi command (cmd/autozi) wraps the same pipeline with train,
// extract and classify subcommands.
package scigo
