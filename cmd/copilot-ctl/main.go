package main

import (
	"os"

	"copilot/internal/commands"
)

func main() {
	if err := commands.NewRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}
