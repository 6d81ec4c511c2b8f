// Package dataset provides tabular dataset loading for the data preparation toolkit.
//
// This package contains three main components:
//
// Loader: Reads delimited text files (CSV, TSV) and Excel workbooks into
// data frames, applying the configured missing value markers, delimiter and
// type detection. Every loaded dataset carries a content fingerprint so runs
// can record exactly which bytes they processed.
//
// SheetsLoader: Pulls a range from a Google Sheets spreadsheet and converts
// it into the same Dataset envelope the file loaders produce.
//
// Dataset: The envelope around a loaded data frame with identity, provenance
// and convenience accessors for shape, column types and previews.
//
// Example usage:
//
//	loader := dataset.NewLoader(cfg.Loader, logger)
//
//	// Load a CSV file from the data directory
//	ds, err := loader.Load(ctx, "data/raw/prices.csv")
//
//	// Inspect the loaded frame
//	rows, cols := ds.Rows(), ds.Cols()
//	preview := ds.Preview(10)
package dataset
