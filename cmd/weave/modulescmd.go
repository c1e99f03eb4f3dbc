package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"weave/internal/interactions"
	"weave/internal/storage"
)

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "List modules with their process group assignments",
	Run:   runModules,
}

func init() {
	rootCmd.AddCommand(modulesCmd)
}

func runModules(cmd *cobra.Command, args []string) {
	logger := newLogger("human")
	repoRoot := mustGetRepoRoot()

	db := mustOpenDB(repoRoot, logger)
	defer db.Close()

	evidence := storage.NewEvidenceStore(db)
	mods, err := evidence.GetAllModules()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading modules: %v\n", err)
		os.Exit(1)
	}
	imports, err := evidence.GetModuleImports()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading imports: %v\n", err)
		os.Exit(1)
	}

	groups := interactions.ComputeProcessGroups(mods, imports)
	fmt.Printf("%d module(s) in %d process group(s)\n", len(mods), groups.GroupCount)

	for _, m := range mods {
		flags := ""
		if m.IsTest {
			flags = " [test]"
		}
		fmt.Printf("  group %d  %s%s\n", groups.ModuleToGroup[m.ID], m.FullPath, flags)
	}
}
