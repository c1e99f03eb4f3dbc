package export

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"

	"github.com/klauspost/compress/gzip"
	"gopkg.in/yaml.v3"

	"weave/internal/storage"
	"weave/internal/testutil"
)

func exportFixture(t *testing.T) *testutil.Fixture {
	t.Helper()

	f := testutil.NewFixture(t)
	api := f.AddModule(t, "app.api", testutil.WithDescription("Order endpoints"))
	db := f.AddModule(t, "app.db")

	handler := f.AddDefinition(t, api, "handleOrder", storage.KindFunction)
	save := f.AddDefinition(t, db, "saveOrder", storage.KindFunction)
	f.AddCall(t, handler, save, 2)

	_, err := f.Interactions.Upsert(api, db, storage.InteractionFields{
		Pattern:  storage.PatternBusiness,
		Weight:   2,
		Symbols:  []string{"saveOrder"},
		Semantic: "Persists orders",
		Source:   storage.SourceAST,
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	return f
}

func TestBuild(t *testing.T) {
	f := exportFixture(t)
	exporter := NewExporter(f.DB, testutil.NewTestLogger())

	doc, err := exporter.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if len(doc.Modules) != 2 {
		t.Fatalf("Expected 2 modules, got %d", len(doc.Modules))
	}
	if doc.Modules[0].Path != "app.api" || doc.Modules[0].Description != "Order endpoints" {
		t.Errorf("Unexpected first module: %+v", doc.Modules[0])
	}

	if len(doc.Interactions) != 1 {
		t.Fatalf("Expected 1 interaction, got %d", len(doc.Interactions))
	}
	ia := doc.Interactions[0]
	if ia.From != "app.api" || ia.To != "app.db" {
		t.Errorf("Interaction ids not resolved to paths: %+v", ia)
	}
	if ia.Semantic != "Persists orders" || ia.Source != storage.SourceAST {
		t.Errorf("Unexpected interaction content: %+v", ia)
	}

	if doc.Coverage.CrossModule != 1 || doc.Coverage.CoveragePercent != 100.0 {
		t.Errorf("Unexpected coverage: %+v", doc.Coverage)
	}
	if doc.Generated == "" {
		t.Error("Expected generated timestamp")
	}
}

func TestWriteJSON(t *testing.T) {
	f := exportFixture(t)
	exporter := NewExporter(f.DB, testutil.NewTestLogger())

	var buf bytes.Buffer
	if err := exporter.Write(&buf, Options{Format: FormatJSON}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	var doc Document
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}
	if len(doc.Interactions) != 1 {
		t.Errorf("Expected 1 interaction in JSON output, got %d", len(doc.Interactions))
	}
}

func TestWriteYAML(t *testing.T) {
	f := exportFixture(t)
	exporter := NewExporter(f.DB, testutil.NewTestLogger())

	var buf bytes.Buffer
	if err := exporter.Write(&buf, Options{Format: FormatYAML}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	var doc Document
	if err := yaml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("Output is not valid YAML: %v", err)
	}
	if len(doc.Modules) != 2 {
		t.Errorf("Expected 2 modules in YAML output, got %d", len(doc.Modules))
	}
}

func TestWriteGzip(t *testing.T) {
	f := exportFixture(t)
	exporter := NewExporter(f.DB, testutil.NewTestLogger())

	var buf bytes.Buffer
	if err := exporter.Write(&buf, Options{Format: FormatJSON, Gzip: true}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	gz, err := gzip.NewReader(&buf)
	if err != nil {
		t.Fatalf("Output is not valid gzip: %v", err)
	}
	defer gz.Close()

	data, err := io.ReadAll(gz)
	if err != nil {
		t.Fatalf("Failed to decompress: %v", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("Decompressed output is not valid JSON: %v", err)
	}
}

func TestWriteUnsupportedFormat(t *testing.T) {
	f := testutil.NewFixture(t)
	exporter := NewExporter(f.DB, testutil.NewTestLogger())

	if err := exporter.Write(&bytes.Buffer{}, Options{Format: "xml"}); err == nil {
		t.Error("Expected error for unsupported format")
	}
}
