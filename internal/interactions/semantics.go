package interactions

import (
	"context"
	"fmt"

	"weave/internal/llm"
	"weave/internal/storage"
)

// GenerateBatchSemantics asks the model for a one-line semantic description
// per call-graph edge, in batches. Every input edge is guaranteed exactly
// one output: edges the model omitted, rows that failed to parse, and whole
// failed batches all fall back to the deterministic default
// "<from-leaf> uses <to-leaf>". Returns the semantics keyed by edge pair
// and the number of edges that received the fallback.
func (e *Engine) GenerateBatchSemantics(ctx context.Context, edges []storage.EnrichedCallEdge) (map[PairKey]string, int, error) {
	descriptions, err := e.moduleDescriptions()
	if err != nil {
		return nil, 0, err
	}

	batchSize := e.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}

	semantics := make(map[PairKey]string, len(edges))
	defaults := 0

	for start := 0; start < len(edges); start += batchSize {
		end := start + batchSize
		if end > len(edges) {
			end = len(edges)
		}
		batch := edges[start:end]

		response, err := e.client.Complete(ctx, llm.Request{
			SystemPrompt: batchSemanticSystemPrompt,
			UserPrompt:   buildBatchSemanticPrompt(batch, descriptions),
			Temperature:  0, // reproducibility
			MaxTokens:    e.maxTokens,
		})
		if err != nil {
			// Failure is contained at batch granularity: this batch gets
			// deterministic defaults, later batches still run.
			e.logger.Warn("Batch semantic generation failed, using defaults", map[string]interface{}{
				"batch_start": start,
				"batch_size":  len(batch),
				"error":       err.Error(),
			})
			response = ""
		}

		rows := parseBatchSemanticRows(response)
		for _, edge := range batch {
			semantic, ok := matchSemanticRow(edge, rows)
			if !ok || semantic == "" {
				semantic = defaultSemantic(edge)
				defaults++
			}
			semantics[PairKey{From: edge.FromModuleID, To: edge.ToModuleID}] = semantic
		}
	}

	return semantics, defaults, nil
}

// matchSemanticRow finds the response row for an edge: exact path match
// first, then suffix match to tolerate truncated paths.
func matchSemanticRow(edge storage.EnrichedCallEdge, rows []BatchSemanticRow) (string, bool) {
	for _, row := range rows {
		if row.FromPath == edge.FromModulePath && row.ToPath == edge.ToModulePath {
			return row.Semantic, true
		}
	}
	for _, row := range rows {
		if pathEndsWith(edge.FromModulePath, row.FromPath) && pathEndsWith(edge.ToModulePath, row.ToPath) {
			return row.Semantic, true
		}
	}
	return "", false
}

// defaultSemantic is the deterministic fallback description for an edge
func defaultSemantic(edge storage.EnrichedCallEdge) string {
	return fmt.Sprintf("%s uses %s", lastPathSegment(edge.FromModulePath), lastPathSegment(edge.ToModulePath))
}
