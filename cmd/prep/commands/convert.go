package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"prepcli/internal/dataset"
	"prepcli/internal/exporter"
)

func convertCmd() *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "convert <file>...",
		Short: "Convert datasets between csv, tsv and xlsx",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			targetFormat, err := dataset.FormatForPath("x." + strings.TrimPrefix(target, "."))
			if err != nil {
				return fmt.Errorf("invalid target %q, expected csv, tsv or xlsx", target)
			}

			loader := dataset.NewLoader(cfg.Loader, logger)
			exp := exporter.NewDatasetExporter(paths)

			for _, arg := range args {
				ds, err := loader.Load(cmd.Context(), arg)
				if err != nil {
					return fmt.Errorf("%s: %w", arg, err)
				}

				if ds.Format == targetFormat {
					fmt.Printf("%s: already %s, skipping\n", ds.Name, targetFormat)
					continue
				}

				result, err := exp.Export(ds, ds.Name+"."+string(targetFormat))
				if err != nil {
					return fmt.Errorf("%s: %w", arg, err)
				}

				fmt.Printf("%s: %d rows, %d cols -> %s\n", ds.Name, result.Rows, result.Cols, result.Path)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&target, "to", "csv", "target format (csv, tsv, xlsx)")
	return cmd
}
