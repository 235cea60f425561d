// ABOUTME: Entry point for the feedz CLI application.
// ABOUTME: Delegates execution to the cli package and exits with its code.
package main

import (
	"os"

	"github.com/feedz/cli/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
