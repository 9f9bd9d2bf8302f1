// Package main provides the entry point for the Threadline CLI.
package main

import (
	"fmt"
	"os"

	"github.com/threadline-ai/threadline/cmd/threadline/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
