package main

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/YuminosukeSato/scigo-autozi/anndata"
	"github.com/YuminosukeSato/scigo-autozi/autozi"
	"github.com/YuminosukeSato/scigo-autozi/metrics"
)

func formatCount(n int) string {
	return humanize.Comma(int64(n))
}

func formatFraction(f float64) string {
	if math.IsNaN(f) {
		return "undefined"
	}
	return humanize.FtoaWithDigits(100*f, 2) + "%"
}

func printTraining(w io.Writer, adata *anndata.AnnotatedData, res *autozi.TrainResult) {
	fmt.Fprintf(w, "cells:      %s in %d batches, %s features\n",
		formatCount(adata.Counts.NumCells()), len(adata.Batch.Categories()),
		formatCount(adata.Counts.NumFeatures()))
	status := "max epochs reached"
	switch {
	case res.StoppedEarly:
		status = "early stopping"
	case res.Interrupted:
		status = "interrupted"
	}
	fmt.Fprintf(w, "training:   %d epochs (%s), best epoch %d, validation loss %.3f, took %s\n",
		res.EpochsRun, status, res.BestEpoch, res.BestValidation, res.Duration.Round(time.Millisecond))
}

func printSummary(w io.Writer, s *metrics.ZeroInflationSummary) {
	fmt.Fprintf(w, "zi:         %s of %s features (%s)\n",
		formatCount(s.NumZeroInflated), formatCount(s.NumFeatures), formatFraction(s.FractionZeroInflated))
	fmt.Fprintf(w, "expressed:  %s features (%s)\n",
		formatCount(s.NumExpressed), formatFraction(s.FractionExpressed))
	fmt.Fprintf(w, "zi|expr:    %s\n", formatFraction(s.FractionZeroInflatedAmongExpressed))
}

func printCalls(w io.Writer, call *metrics.ZeroInflationCall) {
	n := 0
	for _, zi := range call.IsZeroInflated {
		if zi {
			n++
		}
	}
	fmt.Fprintf(w, "zi:         %s of %s features (%s)\n", formatCount(n),
		formatCount(len(call.IsZeroInflated)), formatFraction(float64(n)/float64(len(call.IsZeroInflated))))
}
