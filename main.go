// Package main provides the entry point for the bundloor application.
package main

import (
	"os"

	"github.com/ethpandaops/bundloor/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
