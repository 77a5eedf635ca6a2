// Package main provides the sentrec terminal recorder.
//
// Usage:
//
//	sentrec [flags] <command> [args]
//
// Commands:
//
//	record  - Record a sentence set in the terminal
//	sets    - List and inspect sentence sets
//	concat  - Join WAV files into one recording
//
// Configuration is read from SENTREC_* environment variables. The desktop
// shell lives at the repository root and shares the same backend.
package main

import (
	"fmt"
	"os"

	"sentrec/cmd/sentrec/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
