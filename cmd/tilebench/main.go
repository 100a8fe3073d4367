// Command tilebench sweeps kernels over a parameter grid and records
// hardware counters for every repetition.
//
// Usage:
//
//	tilebench [run] [flags]
//	tilebench predict [flags]
//	tilebench summarize <csv-glob>...
//	tilebench list [-l module.so...]
//
// List flags take every following non-flag token, so
//
//	tilebench -f convolution_tiled convolution_tiled_unrolled -s 4096 8192 -a 1024 -t 32 64
//
// runs two kernels over two sizes and two tile sizes.
package main

import (
	"fmt"
	"os"
)

func main() {
	root := newRootCommand()
	root.SetArgs(expandListArgs(os.Args[1:]))
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
