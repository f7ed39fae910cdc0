// Command annotations runs the annotation service.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

const DefaultContextTimeout = 30

func main() {
	rootCmd := &cobra.Command{
		Use:   "annotations",
		Short: "Typed key/value annotations for entities",
		Long: `annotations serves the annotation HTTP API and runs its background
workers. Configuration is read from ANNOTATIONS_* environment variables
and an optional .env file.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
