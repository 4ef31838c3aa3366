// Package analysis post-processes the per-step histories of a run.
//
//   - [Autocorrelation] and [IntegratedTime]: how many iterations separate
//     independent samples of a series
//   - [BlockMean]: mean and standard error from non-overlapping blocks
//   - [DemonDistribution] and [Histogram.FitBeta]: the demon energy is
//     Boltzmann distributed, so the slope of ln P(E_d) gives β directly
//   - [Portrait]: ASCII scatter of one series against another
//
// A typical check of a finished run compares the fitted β with the estimate
// from the mean demon energy:
//
//	h, _ := analysis.DemonDistribution(res.DemonHistory, metrics.DefaultQuantum)
//	fit, _ := h.FitBeta(10)
//	mean, _ := metrics.Beta(res.DemonHistory, metrics.DefaultQuantum)
package analysis
