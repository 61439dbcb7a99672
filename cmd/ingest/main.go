// Command ingest runs permit sources once from the shell, outside the API
// and the scheduler.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "ingest",
		Short:         "Run permit ingestion from the command line",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(sourcesCmd())
	rootCmd.AddCommand(replayCmd())
	rootCmd.AddCommand(enqueueCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
