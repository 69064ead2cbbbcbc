package main

import (
	"os"

	"pkg.world.dev/world-engine/ecstore/cmd/ecstore/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
