// Package main provides the plipsql command.
package main

import (
	"os"

	"github.com/jkemi/plipsql/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
