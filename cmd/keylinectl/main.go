package main

import (
	"os"

	"github.com/keylineid/keyline-go/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
