// Package main provides the CLI for the corpusforge dataset engine.
package main

import (
	"os"

	"github.com/detectlab/corpusforge/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
