package types

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTag(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		tag := None()
		_, ok := tag.Get()
		assert.False(t, ok)
		assert.True(t, tag.IsNone())
		assert.Equal(t, "<none>", tag.String())
		assert.Equal(t, Tag{}, tag, "zero value must be None")
	})

	t.Run("some", func(t *testing.T) {
		tag := Some("greeting")
		v, ok := tag.Get()
		assert.True(t, ok)
		assert.Equal(t, "greeting", v)
		assert.False(t, tag.IsNone())
	})

	t.Run("empty string is still present", func(t *testing.T) {
		_, ok := Some("").Get()
		assert.True(t, ok)
	})
}

func TestTagJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Intent Tag `json:"intent"`
	}{Intent: None()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"intent":null}`, string(data))

	data, err = json.Marshal(Some("orari"))
	require.NoError(t, err)
	assert.Equal(t, `"orari"`, string(data))

	var tag Tag
	require.NoError(t, json.Unmarshal([]byte(`"orari"`), &tag))
	assert.Equal(t, Some("orari"), tag)

	require.NoError(t, json.Unmarshal([]byte(`null`), &tag))
	assert.True(t, tag.IsNone())
}

func TestRoundConfidence(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{0.7349, 0.73},
		{0.735, 0.74},
		{0.999999, 1},
		{-0.126, -0.13},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, RoundConfidence(tt.in), 1e-9)
	}
}

func TestChatResultResponse(t *testing.T) {
	r := &ChatResult{Answer: "Per favore scrivi qualcosa.", Confidence: 0}
	resp := r.Response()
	assert.NotNil(t, resp.History)
	assert.Empty(t, resp.History)

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"answer":"Per favore scrivi qualcosa.","intent":null,"confidence":0,"history":[]}`, string(data))
}

func TestConfigurationErrorf(t *testing.T) {
	err := ConfigurationErrorf("tag %q missing", "x")
	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.Contains(t, err.Error(), `tag "x" missing`)
}

func TestCloneTurns(t *testing.T) {
	orig := []Turn{{Role: RoleUser, Text: "a"}}
	c := CloneTurns(orig)
	c[0].Text = "b"
	assert.Equal(t, "a", orig[0].Text)
}
