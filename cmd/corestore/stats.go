package main

import (
	"fmt"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/colin353/corestore/engine"
	"github.com/colin353/corestore/internal/vfs"
)

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print write latency percentiles and the compaction byte estimate",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDataDir(); err != nil {
				return err
			}
			e, err := engine.Open(vfs.Default, dataDir, 1<<30, nil)
			if err != nil {
				return fmt.Errorf("corestore: open %s: %w", dataDir, err)
			}

			m := e.Metrics()
			percentiles := []float64{10, 25, 50, 75, 90, 95, 99}
			series := make([]float64, len(percentiles))
			for i, p := range percentiles {
				series[i] = float64(m.WriteLatencyPercentile(p))
			}

			fmt.Println(asciigraph.Plot(series, asciigraph.Caption("write latency (us) by percentile: p10..p99")))
			fmt.Printf("compacted bytes estimate: %.0f\n", m.CompactedBytesEstimate())
			return nil
		},
	}
}
