package main

import (
	"github.com/spf13/cobra"

	"weave/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "weave",
	Short: "weave - module interaction mapper",
	Long: `weave builds a module-level interaction map of a codebase: it turns
call-graph and import evidence into directed module interactions, asks an
LLM to describe them and to propose cross-process connections, and gates
every proposal against static evidence before persisting it.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("weave version {{.Version}}\n")
}
