// Package main is the entry point for the bron daemon CLI.
package main

import (
	"os"

	"github.com/bronhq/bron/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
