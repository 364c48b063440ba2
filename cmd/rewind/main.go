// Package main provides the entry point for rewind.
//
// rewind restores WASIX processes by replaying their journals into a
// live process, and manages the journals and checkpoints it works from.
package main

import (
	"fmt"
	"os"

	"github.com/yndnr/rewind-go/internal/cli/command"
)

func main() {
	if err := command.App().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
