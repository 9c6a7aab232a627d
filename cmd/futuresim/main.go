package main

import (
	"os"

	"github.com/rustyeddy/futuresim/cmd/futuresim/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
