// Package main is the pgtool command-line entry point.
package main

import (
	"os"

	"github.com/leapstack-labs/pgtool/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
