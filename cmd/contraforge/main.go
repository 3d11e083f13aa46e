package main

import (
	"os"

	"github.com/pendergraft/contraforge/internal/cli"
)

var version = "dev"

func main() {
	// cobra already printed the error
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
