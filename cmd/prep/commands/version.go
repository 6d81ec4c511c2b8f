package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"prepcli/internal/app"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("prep %s (build %s, %s, %s/%s)\n",
				app.VERSION, app.BuildID, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
