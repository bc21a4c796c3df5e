// Package main provides the tull command.
//
// tull records what is piped or typed into it as a session and serves all
// recorded sessions over HTTP. The first capture starts the server in the
// background; later captures reuse it.
//
// Usage:
//
//	some-command | tull            Capture a new session (same as --start)
//	tull --reopen <id>             Append to an existing or named session
//	tull --ls                      List session ids
//	tull --status                  Report whether the server is running
//	tull --web                     Print the server URLs
package main

import (
	"fmt"
	"os"
)

// version is set via -ldflags at build time
var version = "dev"

func main() {
	cmd := newRootCmd(os.Stdin, os.Stdout, os.Stderr)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
