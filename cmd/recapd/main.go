// Package main is the entry point for the recapd application.
package main

import (
	"os"

	"github.com/recapd/recapd/cmd/recapd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
