package main

import (
	"github.com/spf13/cobra"

	"github.com/sarchlab/tilebench/report"
)

func newSummarizeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "summarize <csv>...",
		Short: "Average result rows by function, size, arg1 and tile_size",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sums, err := report.Summarize(args)
			if err != nil {
				return err
			}
			return report.WriteSummary(cmd.OutOrStdout(), sums)
		},
	}
}
