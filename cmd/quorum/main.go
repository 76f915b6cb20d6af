package main

import (
	"os"

	"github.com/quorumtrade/quorum/cmd/quorum/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
