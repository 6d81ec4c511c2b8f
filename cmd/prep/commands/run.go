package commands

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"prepcli/internal/pipeline"
	"prepcli/internal/services"
)

// consoleHub prints pipeline progress events to the terminal in place
// of the server's WebSocket hub.
type consoleHub struct{}

func (consoleHub) BroadcastUpdate(eventType, step, status string, metadata interface{}) {
	if quiet || step == "" {
		return
	}
	fmt.Printf("  [%s] %s: %s\n", time.Now().Format("15:04:05"), step, status)
}

func runCmd() *cobra.Command {
	var (
		pipelineName string
		step         string
		source       string
		params       []string
	)

	cmd := &cobra.Command{
		Use:   "run [pipeline.yaml]",
		Short: "Execute a pipeline run and wait for the result",
		Long: "Run a pipeline synchronously. With a spec file argument the pipeline is\n" +
			"registered from that file and executed; otherwise --pipeline names an\n" +
			"already registered pipeline, or --step runs a single built-in step.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := services.NewRunService(cfg, consoleHub{}, nil, logger)
			if err != nil {
				return err
			}

			if len(args) == 1 {
				if pipelineName != "" {
					return fmt.Errorf("cannot combine a spec file with --pipeline")
				}
				data, err := os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("failed to read pipeline spec: %w", err)
				}
				spec, err := svc.RegisterPipeline(cmd.Context(), data)
				if err != nil {
					return err
				}
				pipelineName = spec.Name
			}

			parameters := make(map[string]interface{}, len(params))
			for _, p := range params {
				k, v, ok := strings.Cut(p, "=")
				if !ok {
					return fmt.Errorf("invalid parameter %q, expected key=value", p)
				}
				parameters[k] = v
			}

			req := pipeline.RunRequest{
				ID:         uuid.New().String(),
				Pipeline:   pipelineName,
				Source:     source,
				Step:       step,
				Parameters: parameters,
			}

			resp, err := svc.ExecuteRun(cmd.Context(), req)
			if err != nil {
				return err
			}

			fmt.Printf("run %s: %s in %s\n", resp.ID, resp.Status, resp.Duration.Round(time.Millisecond))
			if resp.Error != "" {
				return fmt.Errorf("run failed: %s", resp.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pipelineName, "pipeline", "", "registered pipeline spec to run (default: built-in steps)")
	cmd.Flags().StringVar(&step, "step", "", "single step to run (load, clean, profile, export)")
	cmd.Flags().StringVar(&source, "source", "", "source dataset file")
	cmd.Flags().StringArrayVar(&params, "param", nil, "step parameter as key=value (repeatable)")
	return cmd
}
