package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/colin353/corestore/engine"
	"github.com/colin353/corestore/internal/vfs"
)

func newCompactCommand() *cobra.Command {
	var retentionHorizon uint64
	var keepNewestN int

	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Run one compaction pass over the data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDataDir(); err != nil {
				return err
			}
			e, err := engine.Open(vfs.Default, dataDir, 1<<30, nil)
			if err != nil {
				return fmt.Errorf("corestore: open %s: %w", dataDir, err)
			}
			policy := engine.CompactionPolicy{RetentionHorizon: retentionHorizon, KeepNewestN: keepNewestN}
			if err := e.Compact([]engine.CompactionPolicy{policy}); err != nil {
				return fmt.Errorf("corestore: compact: %w", err)
			}
			fmt.Println("compaction complete")
			return nil
		},
	}
	cmd.Flags().Uint64Var(&retentionHorizon, "retention-horizon", 0, "drop records older than this timestamp (0 = keep all)")
	cmd.Flags().IntVar(&keepNewestN, "keep-newest", 0, "keep only the N newest versions of each row/col (0 = keep all)")
	return cmd
}
