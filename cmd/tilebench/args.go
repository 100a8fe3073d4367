package main

import "strings"

// listFlags are the flags that accept several trailing values.
var listFlags = map[string]bool{
	"-s": true, "--size": true,
	"--size2": true,
	"--size3": true,
	"-t": true, "--tile": true,
	"-M": true, "--mhz": true,
	"-a": true, "--arg1": true,
	"-f": true, "--function": true,
	"-l": true, "--lib": true,
}

// expandListArgs rewrites "-s 1 2 3" into "-s 1 -s 2 -s 3" so that pflag
// sees one value per occurrence.
func expandListArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		out = append(out, arg)
		if arg == "--" {
			return append(out, args[i+1:]...)
		}
		if !listFlags[arg] {
			continue
		}
		for n := 0; i+1 < len(args) && !strings.HasPrefix(args[i+1], "-"); n++ {
			if n > 0 {
				out = append(out, arg)
			}
			i++
			out = append(out, args[i])
		}
	}
	return out
}
