package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"weave/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the .weave directory, config, and empty database",
	Run:   runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	logger := newLogger("human")

	cfg := config.DefaultConfig()
	cfg.RepoRoot = repoRoot
	if err := cfg.Save(repoRoot); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing config: %v\n", err)
		os.Exit(1)
	}

	db, err := openOrCreateDB(repoRoot, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	fmt.Println("Initialized .weave/ (config.json, weave.db)")
	fmt.Println("Populate the database with your indexer, then run 'weave infer'.")
}
