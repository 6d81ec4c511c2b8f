package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"prepcli/internal/dataset"
	"prepcli/internal/exporter"
	"prepcli/internal/profile"
)

// profileResult collects one dataset's reports so output prints in
// argument order after the parallel phase.
type profileResult struct {
	name        string
	prof        *profile.Profile
	profilePath string
	corr        *profile.Correlation
	corrPath    string
}

func profileCmd() *cobra.Command {
	var (
		correlations bool
		asCSV        bool
		concurrency  int
	)

	cmd := &cobra.Command{
		Use:   "profile <file>...",
		Short: "Compute summary statistics for one or more datasets",
		Long:  "profile loads each dataset, computes per-column summary statistics, prints\nthem and writes the report into the reports directory.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := dataset.NewLoader(cfg.Loader, logger)
			profiler := profile.NewProfiler(logger)
			reports := exporter.NewReportExporter(paths)

			ext := ".json"
			if asCSV {
				ext = ".csv"
			}

			results := make([]profileResult, len(args))

			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(concurrency)

			for i, arg := range args {
				g.Go(func() error {
					ds, err := loader.Load(ctx, arg)
					if err != nil {
						return fmt.Errorf("%s: %w", arg, err)
					}

					prof, err := profiler.Profile(ctx, ds)
					if err != nil {
						return fmt.Errorf("%s: %w", arg, err)
					}

					profilePath := ds.Name + "_profile" + ext
					if asCSV {
						err = reports.ExportProfileCSV(prof, profilePath)
					} else {
						err = reports.ExportProfileJSON(prof, profilePath)
					}
					if err != nil {
						return fmt.Errorf("%s: %w", arg, err)
					}

					result := profileResult{
						name:        ds.Name,
						prof:        prof,
						profilePath: reports.ArtifactPath(profilePath),
					}

					if correlations {
						corr, err := profiler.Correlation(ctx, ds)
						if err != nil {
							return fmt.Errorf("%s: %w", arg, err)
						}

						corrPath := ds.Name + "_correlation" + ext
						if asCSV {
							err = reports.ExportCorrelationCSV(corr, corrPath)
						} else {
							err = reports.ExportCorrelationJSON(corr, corrPath)
						}
						if err != nil {
							return fmt.Errorf("%s: %w", arg, err)
						}
						result.corr = corr
						result.corrPath = reports.ArtifactPath(corrPath)
					}

					results[i] = result
					return nil
				})
			}

			if err := g.Wait(); err != nil {
				return err
			}

			for _, result := range results {
				fmt.Printf("%s: %d rows, %d cols -> %s\n",
					result.name, result.prof.Rows, result.prof.Cols, result.profilePath)
				if !quiet {
					if err := printProfile(result.prof); err != nil {
						return err
					}
				}
				if result.corr != nil {
					fmt.Printf("%s: correlation matrix over %d numeric columns -> %s\n",
						result.name, len(result.corr.Columns), result.corrPath)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&correlations, "correlations", false, "also compute the numeric correlation matrix")
	cmd.Flags().BoolVar(&asCSV, "csv", false, "write reports as CSV instead of JSON")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "datasets profiled in parallel")
	return cmd
}

func printProfile(p *profile.Profile) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "COLUMN\tTYPE\tCOUNT\tNULLS\tUNIQUE\tMEAN\tSTD\tMIN\tMEDIAN\tMAX\tTOP")
	for _, col := range p.Columns {
		top := "-"
		if col.Top != "" {
			top = fmt.Sprintf("%s (%d)", col.Top, col.TopFreq)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			col.Name, col.Type, col.Count, col.Nulls, col.Unique,
			statCell(col.Mean), statCell(col.Std), statCell(col.Min),
			statCell(col.Median), statCell(col.Max), top)
	}
	return w.Flush()
}

// statCell renders an optional statistic for the terminal table.
func statCell(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.4g", *v)
}
