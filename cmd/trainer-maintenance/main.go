// trainer-maintenance runs the operator-triggered maintenance sweeps:
// per-run artifact cleanup, corpus cache eviction, and tokenizer cleanup.
package main

import (
	"fmt"
	"os"

	"trainer/cmd/trainer-maintenance/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
