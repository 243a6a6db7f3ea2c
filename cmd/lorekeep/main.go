package main

import (
	"os"

	"github.com/lorekeep/lorekeep/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
