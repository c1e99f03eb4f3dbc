package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"weave/internal/export"
)

var (
	exportFormat string
	exportGzip   bool
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export interactions and coverage to JSON or YAML",
	Long: `Export the persisted interaction set and coverage statistics.

Examples:
  weave export --format=yaml
  weave export --format=json --gzip -o interactions.json.gz`,
	Run: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Export format (json, yaml)")
	exportCmd.Flags().BoolVar(&exportGzip, "gzip", false, "Compress output with gzip")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default: stdout)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) {
	logger := newLogger("human")
	repoRoot := mustGetRepoRoot()

	db := mustOpenDB(repoRoot, logger)
	defer db.Close()

	out := os.Stdout
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating output file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		out = f
	}

	exporter := export.NewExporter(db, logger)
	if err := exporter.Write(out, export.Options{Format: exportFormat, Gzip: exportGzip}); err != nil {
		fmt.Fprintf(os.Stderr, "Error exporting: %v\n", err)
		os.Exit(1)
	}
}
