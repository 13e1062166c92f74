package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tarndt/flashbench/pkg/bench"
	"github.com/tarndt/flashbench/pkg/report"
)

func newCompareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compare result.json...",
		Short: "Rank previously saved results (reports, result arrays or single results) against each other",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var results []*bench.DeviceResult
			for _, path := range args {
				loaded, err := loadResults(path)
				if err != nil {
					return err
				}
				results = append(results, loaded...)
			}

			cs, err := bench.Compare(results...)
			if err != nil {
				return fmt.Errorf("Could not compare %d result(s): %w", len(results), err)
			}
			return report.WriteComparison(cmd.OutOrStdout(), cs)
		},
	}
}

func loadResults(path string) ([]*bench.DeviceResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("Could not open results %q: %w", path, err)
	}
	defer file.Close()

	results, err := report.ReadResults(file)
	if err != nil {
		return nil, fmt.Errorf("Could not load results %q: %w", path, err)
	}
	return results, nil
}
