// Package profile computes summary statistics for loaded datasets.
//
// The Profiler walks every column of a data frame and reports shape,
// null counts, distinct value counts and, for numeric columns, the
// usual location and spread statistics (mean, standard deviation,
// quartiles). It also builds pairwise correlation matrices over the
// numeric columns.
//
// Example usage:
//
//	profiler := profile.NewProfiler(logger)
//
//	report, err := profiler.Profile(ctx, ds)
//	corr, err := profiler.Correlation(ctx, ds)
package profile
