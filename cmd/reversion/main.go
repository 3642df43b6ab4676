package main

import (
	"os"

	"github.com/rustyeddy/reversion/cmd/reversion/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
