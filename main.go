// Command fi is the fault-injection engine's process entry point; see
// package cmd for the command-line surface.
package main

import (
	"os"

	"github.com/iofault/fi/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
