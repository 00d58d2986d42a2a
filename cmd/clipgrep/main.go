// Package main provides the entry point for the clipgrep CLI.
package main

import (
	"os"

	"github.com/clipgrep/clipgrep/cmd/clipgrep/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
