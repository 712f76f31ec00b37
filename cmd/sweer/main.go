package main

import (
	"os"
	"sweer/internal/cli"
)

func main() {
	os.Exit(cli.Main())
}
