// threadscan flags source files that contain threading and parallelism
// markers: CLI flags, library imports, API calls and prose indicators.
package main

import (
	"fmt"
	"os"

	"github.com/corey/threadscan/cmd/threadscan/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		if code := cmd.ExitCode(err); code >= 0 {
			os.Exit(code)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
