package main

import (
	"fmt"
	"os"

	"github.com/mrlokans/wordsync/internal/cli"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	cmd := cli.NewRootCmd(Version)
	cmd.SetVersionTemplate(fmt.Sprintf("wordsync {{.Version}} (%s)\n", Commit))
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
