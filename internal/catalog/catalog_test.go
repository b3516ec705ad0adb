package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/gustavo-mcp/pkg/types"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"json", "testdata/intents.json"},
		{"yaml", "testdata/intents.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Load(tt.path)
			require.NoError(t, err)
			require.Len(t, c.Intents, 3)
			assert.Equal(t, "greeting", c.Intents[0].Tag)
			assert.Equal(t, 7, c.PatternCount())
		})
	}
}

func TestLoadFormatsAgree(t *testing.T) {
	fromJSON, err := Load("testdata/intents.json")
	require.NoError(t, err)
	fromYAML, err := Load("testdata/intents.yaml")
	require.NoError(t, err)

	assert.Equal(t, fromJSON.Fingerprint(), fromYAML.Fingerprint())
	assert.Equal(t, fromJSON.Responses(), fromYAML.Responses())
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "intents.toml")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
		_, err := Load(path)
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"malformed json", `{"intents": [`},
		{"no intents", `{"intents": []}`},
		{"missing tag", `{"intents": [{"patterns": ["a"], "responses": ["b"]}]}`},
		{"no responses", `{"intents": [{"tag": "t", "patterns": ["a"], "responses": []}]}`},
		{"empty response", `{"intents": [{"tag": "t", "patterns": ["a"], "responses": [""]}]}`},
		{"empty pattern", `{"intents": [{"tag": "t", "patterns": [""], "responses": ["b"]}]}`},
		{"blank pattern", `{"intents": [{"tag": "t", "patterns": ["   "], "responses": ["b"]}]}`},
		{"duplicate tag", `{"intents": [
			{"tag": "t", "patterns": ["a"], "responses": ["b"]},
			{"tag": "t", "patterns": ["c"], "responses": ["d"]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc), FormatJSON)
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrConfiguration), "got %v", err)
		})
	}
}

func TestParseAllowsIntentWithoutPatterns(t *testing.T) {
	c, err := Parse([]byte(`{"intents": [{"tag": "fallback_only", "responses": ["x"]}]}`), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, 0, c.PatternCount())
	assert.Empty(t, c.Examples())
}

func TestExamplesOrder(t *testing.T) {
	c, err := Load("testdata/intents.json")
	require.NoError(t, err)

	examples := c.Examples()
	require.Len(t, examples, 7)
	assert.Equal(t, Example{Tag: "greeting", Text: "ciao"}, examples[0])
	assert.Equal(t, Example{Tag: "greeting", Text: "buongiorno"}, examples[2])
	assert.Equal(t, Example{Tag: "orari", Text: "a che ora apre la scuola"}, examples[3])
	assert.Equal(t, Example{Tag: "goodbye", Text: "a presto"}, examples[6])
}

func TestFingerprint(t *testing.T) {
	base := func() *Catalog {
		return &Catalog{Intents: []Intent{
			{Tag: "a", Patterns: []string{"x", "y"}, Responses: []string{"r"}},
			{Tag: "b", Patterns: []string{"z"}, Responses: []string{"s"}},
		}}
	}

	fp := base().Fingerprint()
	assert.Equal(t, fp, base().Fingerprint(), "fingerprint must be deterministic")

	changedResponse := base()
	changedResponse.Intents[0].Responses = []string{"other"}
	assert.Equal(t, fp, changedResponse.Fingerprint(), "responses do not affect the index")

	changedPattern := base()
	changedPattern.Intents[1].Patterns = []string{"w"}
	assert.NotEqual(t, fp, changedPattern.Fingerprint())

	// Moving a pattern across an intent boundary must change the hash
	shifted := base()
	shifted.Intents[0].Patterns = []string{"x"}
	shifted.Intents[1].Patterns = []string{"y", "z"}
	assert.NotEqual(t, fp, shifted.Fingerprint())
}

func TestResponseTable(t *testing.T) {
	c, err := Load("testdata/intents.json")
	require.NoError(t, err)
	table := c.Responses()

	responses, ok := table.Lookup("greeting")
	require.True(t, ok)
	assert.Equal(t, []string{"Ciao!", "Salve, come posso aiutarti?"}, responses)

	_, ok = table.Lookup("unknown")
	assert.False(t, ok)
	assert.True(t, table.Has("orari"))
	assert.Equal(t, []string{"goodbye", "greeting", "orari"}, table.Tags())

	// The table is a copy, not a view into the catalog
	responses[0] = "mutated"
	assert.Equal(t, "Ciao!", c.Intents[0].Responses[0])
}
