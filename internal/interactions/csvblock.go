package interactions

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

// The engine exchanges fenced CSV blocks with the model. Each prompt type
// has its own row shape; rows shorter than the variant's minimum column
// count are discarded as parse errors, never fatal.

// BatchSemanticRow is one row of a batch-semantics response:
// from_module,to_module,semantic
type BatchSemanticRow struct {
	FromPath string
	ToPath   string
	Semantic string
}

// CrossProcessRow is one row of a cross-process inference response:
// from_module_path,to_module_path,reason,confidence
type CrossProcessRow struct {
	FromPath   string
	ToPath     string
	Reason     string
	Confidence string
}

// Targeted actions
const (
	ActionConfirm = "CONFIRM"
	ActionSkip    = "SKIP"
)

// TargetedRow is one row of a targeted confirm/skip response:
// from_module_path,to_module_path,action,reason
type TargetedRow struct {
	FromPath string
	ToPath   string
	Action   string
	Reason   string
}

// extractFencedCSV returns the contents of the first fenced code block
// (```csv or plain ```). When no fence is present the whole response is
// treated as CSV.
func extractFencedCSV(response string) string {
	trimmed := strings.TrimSpace(response)
	start := strings.Index(trimmed, "```")
	if start < 0 {
		return trimmed
	}

	rest := trimmed[start+3:]
	// Drop the optional language tag on the fence line
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		tag := strings.TrimSpace(rest[:nl])
		if tag == "" || strings.EqualFold(tag, "csv") {
			rest = rest[nl+1:]
		} else {
			// Fence opens with content on the same line
			rest = strings.TrimSpace(rest)
		}
	}

	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// parseCSVRecords parses CSV text leniently: quoted fields use standard
// double-quote escaping, ragged rows are allowed, and rows shorter than
// minColumns are dropped. A header row matching headerPrefix is skipped.
func parseCSVRecords(text string, minColumns int, headerPrefix string) [][]string {
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed row: drop it and keep scanning
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				continue
			}
			break
		}
		if len(record) < minColumns {
			continue
		}
		first := strings.TrimSpace(record[0])
		if first == "" {
			continue
		}
		if headerPrefix != "" && strings.EqualFold(first, headerPrefix) {
			continue
		}
		for i := range record {
			record[i] = strings.TrimSpace(record[i])
		}
		records = append(records, record)
	}
	return records
}

// parseBatchSemanticRows parses a batch-semantics response
func parseBatchSemanticRows(response string) []BatchSemanticRow {
	text := extractFencedCSV(response)
	var rows []BatchSemanticRow
	for _, rec := range parseCSVRecords(text, 3, "from_module") {
		rows = append(rows, BatchSemanticRow{
			FromPath: rec[0],
			ToPath:   rec[1],
			Semantic: strings.Join(rec[2:], ", "),
		})
	}
	return rows
}

// parseCrossProcessRows parses a cross-process inference response
func parseCrossProcessRows(response string) []CrossProcessRow {
	text := extractFencedCSV(response)
	var rows []CrossProcessRow
	for _, rec := range parseCSVRecords(text, 4, "from_module_path") {
		rows = append(rows, CrossProcessRow{
			FromPath:   rec[0],
			ToPath:     rec[1],
			Reason:     rec[2],
			Confidence: strings.ToLower(rec[3]),
		})
	}
	return rows
}

// parseTargetedRows parses a targeted confirm/skip response
func parseTargetedRows(response string) []TargetedRow {
	text := extractFencedCSV(response)
	var rows []TargetedRow
	for _, rec := range parseCSVRecords(text, 3, "from_module_path") {
		row := TargetedRow{
			FromPath: rec[0],
			ToPath:   rec[1],
			Action:   strings.ToUpper(rec[2]),
		}
		if len(rec) > 3 {
			row.Reason = rec[3]
		}
		rows = append(rows, row)
	}
	return rows
}

// lastPathSegment returns the final dotted segment of a module path
func lastPathSegment(path string) string {
	if idx := strings.LastIndexByte(path, '.'); idx >= 0 {
		return path[idx+1:]
	}
	return path
}
