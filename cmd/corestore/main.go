// Command corestore is a small operator CLI over a single LSM engine
// data directory: not a working-copy front end, but a companion
// inspection and maintenance tool pointed at a data directory to
// report engine latency/compaction metrics or force a compaction pass.
// The metrics are in-memory counters of the engine instance the command
// itself opens; nothing from earlier processes is stored in the data
// directory, so stats reports only what that instance recorded.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var dataDir string

func main() {
	root := &cobra.Command{
		Use:   "corestore",
		Short: "Inspect and maintain a corestore LSM Engine data directory",
	}
	root.PersistentFlags().StringVar(&dataDir, "data-dir", "", "engine data directory (required)")

	root.AddCommand(newStatsCommand())
	root.AddCommand(newCompactCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func requireDataDir() error {
	if dataDir == "" {
		return fmt.Errorf("corestore: --data-dir is required")
	}
	return nil
}
