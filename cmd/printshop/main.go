package main

import (
	"os"

	"github.com/solveprint/printshop/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
