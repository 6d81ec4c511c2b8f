package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"prepcli/internal/dataset"
	"prepcli/internal/services"
	"prepcli/pkg/contracts/domain"
)

func listCmd() *cobra.Command {
	var (
		pattern string
		format  string
		cleaned bool
		sortBy  string
		desc    bool
		limit   int
		outputs bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List datasets in the data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := services.NewDataServiceWithLogger(cfg, logger)
			if err != nil {
				return err
			}

			if outputs {
				summaries, err := svc.ListOutputs(cmd.Context())
				if err != nil {
					return err
				}
				return printSummaries(summaries)
			}

			if format != "" {
				if _, err := dataset.FormatForPath("x." + format); err != nil {
					return fmt.Errorf("invalid format %q, expected csv, tsv or xlsx", format)
				}
			}

			filter := &domain.DatasetFilter{
				NamePattern: pattern,
				SortBy:      sortBy,
				SortDesc:    desc,
				Limit:       limit,
			}
			if format != "" {
				filter.Formats = []string{format}
			}
			if cmd.Flags().Changed("cleaned") {
				filter.Cleaned = &cleaned
			}

			summaries, err := svc.ListDatasets(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printSummaries(summaries)
		},
	}

	cmd.Flags().StringVar(&pattern, "name", "", "case-insensitive name substring")
	cmd.Flags().StringVar(&format, "format", "", "source format (csv, tsv, xlsx)")
	cmd.Flags().BoolVar(&cleaned, "cleaned", false, "filter by cleaning status")
	cmd.Flags().StringVar(&sortBy, "sort", "name", "sort field (name, size, modified)")
	cmd.Flags().BoolVar(&desc, "desc", false, "sort descending")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum results (0 = all)")
	cmd.Flags().BoolVar(&outputs, "outputs", false, "list cleaned outputs instead of sources")
	return cmd
}

func printSummaries(summaries []domain.DatasetSummary) error {
	if len(summaries) == 0 {
		fmt.Println("no datasets found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tFORMAT\tSIZE\tMODIFIED\tCLEANED")
	for _, s := range summaries {
		cleanedMark := "-"
		if s.Cleaned {
			cleanedMark = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			s.Name, s.Format, s.SizeBytes, s.Modified.Format("2006-01-02 15:04"), cleanedMark)
	}
	return w.Flush()
}
