// Package modules handles the optional WEAVE.toml declaration file, which
// lets a repo override module descriptions and test-module flags before
// inference runs.
package modules

import (
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"

	"weave/internal/logging"
	"weave/internal/storage"
)

// DeclarationFile is the default filename for module declarations
const DeclarationFile = "WEAVE.toml"

// ModuleDeclaration overrides metadata for one module, keyed by full path
type ModuleDeclaration struct {
	// Path is the dotted module path this declaration applies to
	Path string `toml:"path"`

	// Description is a one-line summary surfaced to inference prompts
	Description string `toml:"description,omitempty"`

	// Test marks the module as test-internal; interactions touching it
	// are classified test-internal regardless of their AST pattern
	Test bool `toml:"test,omitempty"`
}

// DeclarationsFile represents the root structure of WEAVE.toml
type DeclarationsFile struct {
	// Version is the schema version
	Version int `toml:"version"`

	// Modules is the list of declared overrides
	Modules []ModuleDeclaration `toml:"module"`
}

// ParseDeclarationsFile parses a WEAVE.toml file from the given path
func ParseDeclarationsFile(filePath string) (*DeclarationsFile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", DeclarationFile, err)
	}

	var file DeclarationsFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", DeclarationFile, err)
	}

	if file.Version < 1 {
		file.Version = 1
	}

	for _, decl := range file.Modules {
		if decl.Path == "" {
			return nil, fmt.Errorf("module declaration missing required 'path' field")
		}
	}

	return &file, nil
}

// ApplyDeclarations loads WEAVE.toml from the repo root, if present, and
// applies its overrides to stored modules. Declarations for unknown paths
// are logged and skipped, not fatal.
func ApplyDeclarations(repoRoot string, db *storage.DB, logger *logging.Logger) error {
	filePath := filepath.Join(repoRoot, DeclarationFile)
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil
	}

	file, err := ParseDeclarationsFile(filePath)
	if err != nil {
		return err
	}

	evidence := storage.NewEvidenceStore(db)
	seed := storage.NewSeedStore(db)

	applied := 0
	for _, decl := range file.Modules {
		m, err := evidence.GetModuleByPath(decl.Path)
		if err != nil {
			return err
		}
		if m == nil {
			logger.Warn("Declared module not found, skipping", map[string]interface{}{
				"path": decl.Path,
			})
			continue
		}

		if decl.Description != "" {
			if err := seed.SetModuleDescription(decl.Path, decl.Description); err != nil {
				return err
			}
		}
		if decl.Test != m.IsTest {
			if err := seed.SetModuleTestFlag(decl.Path, decl.Test); err != nil {
				return err
			}
		}
		applied++
	}

	logger.Info("Applied module declarations", map[string]interface{}{
		"file":    DeclarationFile,
		"applied": applied,
	})
	return nil
}
