package main

import (
	"os"

	"github.com/conneroisu/stubforge/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
