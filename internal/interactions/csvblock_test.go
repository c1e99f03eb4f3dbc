package interactions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFencedCSV(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{
			"tagged fence",
			"Here you go:\n```csv\na,b,c\n```\nDone.",
			"a,b,c",
		},
		{
			"bare fence",
			"```\na,b,c\nd,e,f\n```",
			"a,b,c\nd,e,f",
		},
		{
			"no fence",
			"a,b,c\nd,e,f",
			"a,b,c\nd,e,f",
		},
		{
			"unclosed fence",
			"```csv\na,b,c",
			"a,b,c",
		},
		{
			"empty response",
			"",
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractFencedCSV(tt.response))
		})
	}
}

func TestParseBatchSemanticRows(t *testing.T) {
	response := "```csv\n" +
		"from_module,to_module,semantic\n" +
		"app.api,app.db,Persists orders via repository calls\n" +
		"app.api,app.auth,\"Validates tokens, refreshes sessions\"\n" +
		"```"

	rows := parseBatchSemanticRows(response)
	require.Len(t, rows, 2)

	assert.Equal(t, "app.api", rows[0].FromPath)
	assert.Equal(t, "app.db", rows[0].ToPath)
	assert.Equal(t, "Persists orders via repository calls", rows[0].Semantic)
	assert.Equal(t, "Validates tokens, refreshes sessions", rows[1].Semantic)
}

func TestParseBatchSemanticRows_ExtraColumnsJoined(t *testing.T) {
	// Unquoted commas in the semantic produce extra columns; they are
	// rejoined rather than truncated.
	rows := parseBatchSemanticRows("a.x,a.y,Reads config, applies overrides, then saves")

	require.Len(t, rows, 1)
	assert.Equal(t, "Reads config, applies overrides, then saves", rows[0].Semantic)
}

func TestParseBatchSemanticRows_DropsShortAndMalformed(t *testing.T) {
	response := "```csv\n" +
		"only-two,columns\n" +
		"a.x,a.y,valid row\n" +
		"\n" +
		"prose the model added that is not csv at all\n" +
		"```"

	rows := parseBatchSemanticRows(response)
	require.Len(t, rows, 1)
	assert.Equal(t, "valid row", rows[0].Semantic)
}

func TestParseCrossProcessRows(t *testing.T) {
	response := "```csv\n" +
		"from_module_path,to_module_path,reason,confidence\n" +
		"web.client,api.server,HTTP calls to REST endpoints,HIGH\n" +
		"web.client,api.auth,Login form posts credentials,medium\n" +
		"```"

	rows := parseCrossProcessRows(response)
	require.Len(t, rows, 2)

	assert.Equal(t, "web.client", rows[0].FromPath)
	assert.Equal(t, "api.server", rows[0].ToPath)
	assert.Equal(t, "HTTP calls to REST endpoints", rows[0].Reason)
	assert.Equal(t, "high", rows[0].Confidence, "confidence normalized to lowercase")
	assert.Equal(t, "medium", rows[1].Confidence)
}

func TestParseCrossProcessRows_RequiresFourColumns(t *testing.T) {
	rows := parseCrossProcessRows("a.x,a.y,missing confidence")

	assert.Empty(t, rows)
}

func TestParseTargetedRows(t *testing.T) {
	response := "```csv\n" +
		"from_module_path,to_module_path,action,reason\n" +
		"app.api,app.db,confirm,repository usage\n" +
		"app.api,app.cache,SKIP,no evidence of interaction\n" +
		"app.api,app.queue,CONFIRM\n" +
		"```"

	rows := parseTargetedRows(response)
	require.Len(t, rows, 3)

	assert.Equal(t, ActionConfirm, rows[0].Action, "action normalized to uppercase")
	assert.Equal(t, "repository usage", rows[0].Reason)
	assert.Equal(t, ActionSkip, rows[1].Action)
	assert.Equal(t, ActionConfirm, rows[2].Action)
	assert.Empty(t, rows[2].Reason, "reason column is optional")
}

func TestLastPathSegment(t *testing.T) {
	assert.Equal(t, "db", lastPathSegment("app.storage.db"))
	assert.Equal(t, "app", lastPathSegment("app"))
}
