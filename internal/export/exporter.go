// Package export writes the interaction set and coverage statistics to
// JSON or YAML, optionally gzip-compressed.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"
	"gopkg.in/yaml.v3"

	"weave/internal/logging"
	"weave/internal/storage"
)

// Format constants
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Options configures an export
type Options struct {
	Format string // json | yaml
	Gzip   bool
}

// Exporter writes interaction exports
type Exporter struct {
	evidence *storage.EvidenceStore
	store    *storage.InteractionStore
	logger   *logging.Logger
}

// NewExporter creates a new exporter
func NewExporter(db *storage.DB, logger *logging.Logger) *Exporter {
	return &Exporter{
		evidence: storage.NewEvidenceStore(db),
		store:    storage.NewInteractionStore(db),
		logger:   logger,
	}
}

// Document is the root export structure
type Document struct {
	Generated    string              `json:"generated" yaml:"generated"`
	Modules      []ExportModule      `json:"modules" yaml:"modules"`
	Interactions []ExportInteraction `json:"interactions" yaml:"interactions"`
	Coverage     ExportCoverage      `json:"coverage" yaml:"coverage"`
}

// ExportModule is one module in the export
type ExportModule struct {
	Path        string `json:"path" yaml:"path"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	IsTest      bool   `json:"isTest,omitempty" yaml:"isTest,omitempty"`
}

// ExportInteraction is one interaction in the export
type ExportInteraction struct {
	From       string   `json:"from" yaml:"from"`
	To         string   `json:"to" yaml:"to"`
	Pattern    string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Weight     int      `json:"weight" yaml:"weight"`
	Symbols    []string `json:"symbols,omitempty" yaml:"symbols,omitempty"`
	Semantic   string   `json:"semantic,omitempty" yaml:"semantic,omitempty"`
	Direction  string   `json:"direction" yaml:"direction"`
	Source     string   `json:"source" yaml:"source"`
	Confidence string   `json:"confidence,omitempty" yaml:"confidence,omitempty"`
}

// ExportCoverage is the coverage block of the export
type ExportCoverage struct {
	TotalRelationships int     `json:"totalRelationships" yaml:"totalRelationships"`
	CrossModule        int     `json:"crossModule" yaml:"crossModule"`
	SameModule         int     `json:"sameModule" yaml:"sameModule"`
	Contributing       int     `json:"contributing" yaml:"contributing"`
	CoveragePercent    float64 `json:"coveragePercent" yaml:"coveragePercent"`
	OrphanedCount      int     `json:"orphanedCount" yaml:"orphanedCount"`
	UncoveredPairs     int     `json:"uncoveredPairs" yaml:"uncoveredPairs"`
}

// Build assembles the export document from the database
func (e *Exporter) Build() (*Document, error) {
	mods, err := e.evidence.GetAllModules()
	if err != nil {
		return nil, fmt.Errorf("failed to load modules: %w", err)
	}
	interactions, err := e.store.GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load interactions: %w", err)
	}
	cov, err := e.store.GetRelationshipCoverage()
	if err != nil {
		return nil, fmt.Errorf("failed to compute coverage: %w", err)
	}

	pathByID := make(map[int64]string, len(mods))
	doc := &Document{
		Generated: time.Now().UTC().Format(time.RFC3339),
	}
	for _, m := range mods {
		pathByID[m.ID] = m.FullPath
		doc.Modules = append(doc.Modules, ExportModule{
			Path:        m.FullPath,
			Description: m.Description,
			IsTest:      m.IsTest,
		})
	}
	for _, ia := range interactions {
		doc.Interactions = append(doc.Interactions, ExportInteraction{
			From:       pathByID[ia.FromModuleID],
			To:         pathByID[ia.ToModuleID],
			Pattern:    ia.Pattern,
			Weight:     ia.Weight,
			Symbols:    ia.Symbols,
			Semantic:   ia.Semantic,
			Direction:  ia.Direction,
			Source:     ia.Source,
			Confidence: ia.Confidence,
		})
	}
	doc.Coverage = ExportCoverage{
		TotalRelationships: cov.TotalRelationships,
		CrossModule:        cov.CrossModule,
		SameModule:         cov.SameModule,
		Contributing:       cov.Contributing,
		CoveragePercent:    cov.CoveragePercent,
		OrphanedCount:      cov.OrphanedCount,
		UncoveredPairs:     cov.UncoveredPairCount,
	}
	return doc, nil
}

// Write builds the document and writes it to w in the requested format
func (e *Exporter) Write(w io.Writer, opts Options) error {
	doc, err := e.Build()
	if err != nil {
		return err
	}

	out := w
	var gz *gzip.Writer
	if opts.Gzip {
		gz = gzip.NewWriter(w)
		out = gz
	}

	switch opts.Format {
	case FormatYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return err
		}
	case FormatJSON, "":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
	default:
		return fmt.Errorf("unsupported export format %q", opts.Format)
	}

	if gz != nil {
		return gz.Close()
	}
	return nil
}
