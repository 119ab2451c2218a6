// Command statusctl is operational tooling for the status tracking engine:
// create, inspect, update, list, search, and archive status records against
// the configured storage backend.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
