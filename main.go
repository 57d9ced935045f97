package main

import (
	"os"

	"github.com/coverwire/harvester/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
