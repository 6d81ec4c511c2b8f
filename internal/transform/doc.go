// Package transform implements the cleaning operations applied to
// datasets between loading and export.
//
// Every operation is a small value type satisfying the Transform
// interface: it validates its own configuration, then produces a new
// data frame from the input frame without mutating it. The transforms
// cover missing value imputation, row dropping and filtering, type
// conversion, categorical encoding, numeric scaling and outlier
// handling.
//
// Example usage:
//
//	imputer := transform.Imputer{Columns: []string{"age"}, Strategy: transform.StrategyMean}
//	if err := imputer.Validate(); err != nil {
//		return err
//	}
//	cleaned, err := imputer.Apply(df)
package transform
