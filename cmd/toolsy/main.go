// Package main is the entry point for the toolsy server.
package main

import (
	"os"

	"github.com/shtefko55/toolsy/cmd/toolsy/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
