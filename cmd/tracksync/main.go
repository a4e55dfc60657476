// Package main is the entry point for the tracksync CLI.
//
// tracksync keeps a template tracker in sync with the templates the
// providers of a test environment actually expose: it lists templates on
// every reachable provider in parallel, classifies them by name, records new
// provider/template associations and prunes the ones that disappeared.
//
// Commands: sync, providers, parse, version, completion.
//
// For detailed usage information, run:
//
//	tracksync --help
package main

import (
	"fmt"
	"os"

	"github.com/imamik/tracksync/cmd/tracksync/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
