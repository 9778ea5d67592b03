// Package main provides the agent-audit CLI application.
package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Build information, set with
// -ldflags "-X main.version=... -X main.buildDate=... -X main.gitCommit=...".
var (
	version   = "dev"
	buildDate = "unknown"
	gitCommit = "unknown"
)

// versionString is the root command's --version output.
func versionString() string {
	if version == "dev" {
		return "development version"
	}
	return version
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, build date, git commit and Go version.`,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "agent-audit version: %s\n", version)
			fmt.Fprintf(out, "  build date: %s\n", buildDate)
			fmt.Fprintf(out, "  git commit: %s\n", gitCommit)
			fmt.Fprintf(out, "  go version: %s\n", runtime.Version())
		},
	}
}
