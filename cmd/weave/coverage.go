package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"weave/internal/storage"
)

var coverageFormat string

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Show relationship coverage without mutating anything",
	Run:   runCoverage,
}

func init() {
	coverageCmd.Flags().StringVar(&coverageFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(coverageCmd)
}

func runCoverage(cmd *cobra.Command, args []string) {
	logger := newLogger(coverageFormat)
	repoRoot := mustGetRepoRoot()

	db := mustOpenDB(repoRoot, logger)
	defer db.Close()

	store := storage.NewInteractionStore(db)
	cov, err := store.GetRelationshipCoverage()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error computing coverage: %v\n", err)
		os.Exit(1)
	}

	if coverageFormat == "json" {
		out := map[string]interface{}{
			"totalRelationships": cov.TotalRelationships,
			"crossModule":        cov.CrossModule,
			"sameModule":         cov.SameModule,
			"contributing":       cov.Contributing,
			"coveragePercent":    cov.CoveragePercent,
			"orphanedCount":      cov.OrphanedCount,
			"uncoveredPairs":     cov.UncoveredPairCount,
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Printf("Relationships: %d total (%d cross-module, %d same-module, %d orphaned)\n",
		cov.TotalRelationships, cov.CrossModule, cov.SameModule, cov.OrphanedCount)
	fmt.Printf("Coverage: %.1f%% (%d contributing, %d uncovered pair(s))\n",
		cov.CoveragePercent, cov.Contributing, cov.UncoveredPairCount)

	if cov.UncoveredPairCount > 0 {
		pairs, err := store.GetUncoveredModulePairs()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing uncovered pairs: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Uncovered pairs:")
		for _, p := range pairs {
			fmt.Printf("  %s -> %s (%d relationship(s))\n", p.FromModulePath, p.ToModulePath, p.RelationshipCount)
		}
	}
}
