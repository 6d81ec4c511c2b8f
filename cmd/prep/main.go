package main

import (
	"os"

	"prepcli/cmd/prep/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
