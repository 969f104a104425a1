// Package main is the entry point for the dashdl application.
package main

import (
	"os"

	"github.com/streamweave/dashdl/cmd/dashdl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
