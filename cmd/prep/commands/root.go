package commands

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"prepcli/internal/config"
	"prepcli/internal/infrastructure"
)

var (
	cfg    *config.Config
	paths  *config.Paths
	logger *slog.Logger

	cfgFile    string
	dataDir    string
	outputDir  string
	reportsDir string
	logLevel   string
	quiet      bool
)

func Execute() error {
	root := &cobra.Command{
		Use:          "prep",
		Short:        "Tabular dataset preparation toolkit",
		Long:         "prep loads tabular datasets, cleans and profiles them, and exports the results.\nIt shares its configuration and directory layout with the prepd server.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}

			if cfgFile != "" {
				if err := os.Setenv(config.EnvPrefix+"_CONFIG_FILE", cfgFile); err != nil {
					return err
				}
			}

			var err error
			cfg, err = config.Load()
			if err != nil {
				return err
			}

			if dataDir != "" {
				cfg.Paths.DataDir = dataDir
			}
			if outputDir != "" {
				cfg.Paths.OutputDir = outputDir
			}
			if reportsDir != "" {
				cfg.Paths.ReportsDir = reportsDir
			}

			// CLI results go to the terminal; keep logs quiet unless asked
			cfg.Logging.Output = "console"
			cfg.Logging.Level = "error"
			if logLevel != "" {
				cfg.Logging.Level = logLevel
			}

			logger, err = infrastructure.InitializeLogger(cfg.Logging)
			if err != nil {
				return err
			}

			paths, err = cfg.ResolvePaths()
			if err != nil {
				return err
			}
			return paths.EnsureDirectories()
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default prep.yaml, configs/prep.yaml)")
	root.PersistentFlags().StringVar(&dataDir, "data-dir", "", "dataset directory (default \"data\")")
	root.PersistentFlags().StringVar(&outputDir, "output-dir", "", "cleaned output directory (default \"data/cleaned\")")
	root.PersistentFlags().StringVar(&reportsDir, "reports-dir", "", "report directory (default \"data/reports\")")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log verbosity: debug, info, warn, error (default \"error\")")
	root.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress output")

	root.AddCommand(listCmd(), profileCmd(), runCmd(), convertCmd(), versionCmd())
	return root.Execute()
}
