package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tarndt/flashbench/pkg/bench"
)

func newProfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List the built-in test profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tbl, "PROFILE\tTEST\tBLOCK\tOPS\tITERATIONS\tREGION NEEDED\t")
			for _, name := range bench.ProfileNames() {
				prof, err := bench.BuiltinProfile(name)
				if err != nil {
					return err
				}
				needed := humanize.IBytes(uint64(prof.RequiredBytes()))
				for _, spec := range prof.Tests {
					fmt.Fprintf(tbl, "%s\t%s\t%s\t%d\t%d\t%s\t\n",
						prof.Name, spec.Kind, humanize.IBytes(uint64(spec.BlockSize)), spec.Ops(), spec.Iterations, needed)
				}
			}
			return tbl.Flush()
		},
	}
}
