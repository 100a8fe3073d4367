package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newListCommand() *cobra.Command {
	var libs []string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print registered kernels and their environment kinds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			functions, err := loadFunctions(libs)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range functions.Names() {
				rec, _ := functions.Resolve(name)
				_, _ = fmt.Fprintf(out, "%-32s %s\n", name, rec.Kind)
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&libs, "lib", "l", nil, "kernel modules to load")
	return cmd
}
