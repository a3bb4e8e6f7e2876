package main

import (
	"os"

	"github.com/cptspacemanspiff/adjbacklight/internal/cli"
)

func main() {
	os.Exit(cli.Execute(newTerminal(os.Stdin, os.Stdout)))
}
