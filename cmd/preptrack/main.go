package main

import (
	"os"

	"github.com/garnizeh/preptrack/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
