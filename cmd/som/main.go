package main

import (
	"os"

	"github.com/mna/mainer"

	"github.com/kristofer/smogvm/internal/somcmd"
)

// version is a placeholder, replaced on build.
var version = "0.1.0"

func main() {
	c := somcmd.Cmd{BuildVersion: version}
	os.Exit(int(c.Main(os.Args, mainer.CurrentStdio())))
}
