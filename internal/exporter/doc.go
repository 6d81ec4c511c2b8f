// Package exporter writes cleaned datasets and profiling reports to disk.
//
// This package contains three main components:
//
// CSVWriter: Core CSV writing functionality with configurable delimiter,
// optional UTF-8 BOM for Excel compatibility, append mode, and streaming.
// Fresh writes go through a temporary file renamed into place.
//
// DatasetExporter: Writes a dataset to CSV, TSV, or xlsx chosen by the
// output file extension, and reports the shape and fingerprint of the
// written artifact.
//
// ReportExporter: Writes profile summaries and correlation matrices as
// CSV tables or JSON documents into the reports directory.
//
// Example usage:
//
//	exp := exporter.NewDatasetExporter(paths)
//
//	// Write the cleaned table next to its source
//	result, err := exp.Export(ds, "cleaned.csv")
//
//	// Write the profile report into the reports directory
//	reports := exporter.NewReportExporter(paths)
//	err = reports.ExportProfileJSON(prof, "sales_profile.json")
package exporter
