package main

import (
	"os"

	"github.com/voltline/j1939-console/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
