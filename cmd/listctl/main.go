package main

import (
	"os"

	"github.com/goliatone/go-entitylist/cmd/listctl/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
