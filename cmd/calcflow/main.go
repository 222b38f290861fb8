// Package main provides the calcflow CLI.
package main

import (
	"os"

	"github.com/calcflow-labs/calcflow/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
