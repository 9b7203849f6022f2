package jsonextract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avatarstage/performer/internal/jsonextract"
)

func TestExtract_HarmonyFinalChannel(t *testing.T) {
	t.Parallel()
	raw := `<|channel|>analysis<|message|>think<|channel|>final<|message|>{"plan":{"sections":[{"label":"v","start_ms":0,"end_ms":1000,"role":"solo"}]}}<|end|>`

	got, err := jsonextract.Extract(raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"plan":{"sections":[{"label":"v","start_ms":0,"end_ms":1000,"role":"solo"}]}}`, got)
}

func TestExtract_ChannelAliasVariants(t *testing.T) {
	t.Parallel()
	for _, alias := range []string{"response", "message", "answer", "assistant"} {
		raw := `<|channel|>thinking<|message|>hmm<|channel|>` + alias +
			`<|message|>{"sections":[]}<|end|>`
		got, err := jsonextract.Extract(raw)
		require.NoError(t, err, "alias %q", alias)
		assert.JSONEq(t, `{"sections":[]}`, got, "alias %q", alias)
	}
}

func TestExtract_SchemaExampleRejection(t *testing.T) {
	t.Parallel()
	raw := `Example shape: { "start_ms": number, "role": "solo" | "ensemble" }` +
		` Real output: {"plan":{"sections":[{"label":"a","start_ms":0,"end_ms":100,"role":"solo"}]}}`

	got, err := jsonextract.Extract(raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"plan":{"sections":[{"label":"a","start_ms":0,"end_ms":100,"role":"solo"}]}}`, got)
}

func TestExtract_SchemaExampleOnly_Rejected(t *testing.T) {
	t.Parallel()
	raw := `{ "start_ms": number, "role": "solo" | "ensemble" }`

	_, err := jsonextract.Extract(raw)
	require.Error(t, err)
	var pe *jsonextract.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "schemaExampleRejected", pe.Reason)
}

func TestExtractAndRepair_TruncationRepair(t *testing.T) {
	t.Parallel()
	raw := `{"plan":{"sections":[{"label":"a","start_ms":0,"end_ms":500,"role":"solo"`

	got, err := jsonextract.ExtractAndRepair(raw)
	require.NoError(t, err)

	repaired, err := jsonextract.Normalize(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"plan":{"sections":[{"label":"a","start_ms":0,"end_ms":500,"role":"solo"}]}}`, repaired)
}

func TestRepair_TrailingCommaRemoved(t *testing.T) {
	t.Parallel()
	raw := `{"a":1,"b":2,`

	got, ok := jsonextract.Repair(raw)
	require.True(t, ok)
	assert.JSONEq(t, `{"a":1,"b":2}`, got)
}

func TestRepair_UnterminatedString(t *testing.T) {
	t.Parallel()
	raw := `{"label":"unterminated`

	got, ok := jsonextract.Repair(raw)
	require.True(t, ok)
	assert.JSONEq(t, `{"label":"unterminated"}`, got)
}

func TestRepair_NoOpeningBrace(t *testing.T) {
	t.Parallel()
	_, ok := jsonextract.Repair("not json at all")
	assert.False(t, ok)
}

func TestExtract_MarkdownFence(t *testing.T) {
	t.Parallel()
	raw := "here is the plan:\n```json\n{\"plan\":{\"sections\":[]}}\n```"

	got, err := jsonextract.Extract(raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"plan":{"sections":[]}}`, got)
}

func TestExtract_NoBalancedObject(t *testing.T) {
	t.Parallel()
	_, err := jsonextract.Extract("no json here, sorry")
	require.Error(t, err)
	var pe *jsonextract.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "noBalancedJson", pe.Reason)
}

func TestExtract_BracesInsideStringIgnored(t *testing.T) {
	t.Parallel()
	raw := `{"notes":"use a {curly} brace in text","start_ms":0}`

	got, err := jsonextract.Extract(raw)
	require.NoError(t, err)
	assert.JSONEq(t, raw, got)
}
