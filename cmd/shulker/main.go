package main

import (
	"fmt"
	"os"

	"github.com/shulkerdb/shulker/cmd/shulker/commands"
)

// Set by the linker in release builds.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "shulker: %v\n", err)
		os.Exit(1)
	}
}
