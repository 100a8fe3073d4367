package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/sarchlab/tilebench/kernels"
	"github.com/sarchlab/tilebench/timing/cache"
)

func newPredictCommand(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Model the L1 behaviour of each convolution variant",
		Long: `predict replays the memory access order of every selected convolution
variant through a set-associative L1 data-cache model. The source length
comes from --size, the kernel length from --size2 (or --arg1), and the
cache geometry from the config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := o.sweep(cmd.Flags())
			if err != nil {
				return err
			}
			return predict(cmd, s.Cache, s.Functions, s.Sizes, s.ResolvedSizes2(), s.TileSizes)
		},
	}
	o.addSweepFlags(cmd.Flags())
	return cmd
}

func predict(cmd *cobra.Command, cfg cache.Config, names []string, sizes, kernelSizes []uint64, tiles []int32) error {
	variants := kernels.Variants()
	if len(names) > 0 && !slices.Contains(names, "ALL") {
		for _, name := range names {
			if !slices.ContainsFunc(variants, func(v kernels.Variant) bool { return v.Name == name }) {
				return fmt.Errorf("predict covers only convolution variants, got %s", name)
			}
		}
		variants = slices.DeleteFunc(variants, func(v kernels.Variant) bool {
			return !slices.Contains(names, v.Name)
		})
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(out, "function,size,kernel_size,tile_size,accesses,misses,miss_rate,stall_cycles")
	for _, size := range sizes {
		for _, k := range kernelSizes {
			for _, tile := range tiles {
				for _, v := range variants {
					sched, err := v.Schedule(tile)
					if err != nil {
						return fmt.Errorf("%s: %w", v.Name, err)
					}
					p, err := cache.PredictConvolution(cfg, sched, int(size), int(k))
					if err != nil {
						return fmt.Errorf("%s: %w", v.Name, err)
					}
					_, _ = fmt.Fprintf(out, "%s,%d,%d,%d,%d,%d,%.4f,%d\n",
						v.Name, size, k, tile,
						p.Stats.Accesses(), p.Stats.Misses, p.Stats.MissRate(), p.StallCycles)
				}
			}
		}
	}
	return nil
}
