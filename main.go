package main

import (
	"os"

	"github.com/tphakala/replayclip/cmd"
	"github.com/tphakala/replayclip/internal/buildinfo"
)

// Set at build time with -ldflags "-X main.version=... -X main.buildDate=..."
var (
	version   = "dev"
	buildDate = ""
)

func main() {
	rootCmd := cmd.RootCommand(buildinfo.NewContext(version, buildDate, ""))
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
