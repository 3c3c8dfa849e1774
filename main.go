// Package main is the entry point for nightscout-forecast
package main

import (
	"fmt"
	"os"

	"github.com/mrcode/nightscout-forecast/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
