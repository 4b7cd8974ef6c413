package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		want     string
		strategy Strategy
	}{
		{
			name:     "verbatim object",
			text:     `  {"macro_score": 7}  `,
			want:     `{"macro_score": 7}`,
			strategy: Verbatim,
		},
		{
			name:     "verbatim array",
			text:     `[{"symbol":"AI.PA"}]`,
			want:     `[{"symbol":"AI.PA"}]`,
			strategy: Verbatim,
		},
		{
			name:     "json fence",
			text:     "Voici l'analyse :\n```json\n{\"geo_score\": 6.5}\n```\nBonne journée",
			want:     `{"geo_score": 6.5}`,
			strategy: Fenced,
		},
		{
			name:     "bare fence",
			text:     "```\n[1,2,3]\n```",
			want:     `[1,2,3]`,
			strategy: Fenced,
		},
		{
			name:     "first fence wins",
			text:     "```json\n{\"a\":1}\n```\n```json\n{\"a\":2}\n```",
			want:     `{"a":1}`,
			strategy: Fenced,
		},
		{
			name:     "object inside prose",
			text:     `Here is the result: {"tp": 130, "sl": 95} hope it helps`,
			want:     `{"tp": 130, "sl": 95}`,
			strategy: Object,
		},
		{
			name:     "array inside prose",
			text:     `Results: [{"symbol":"MC.PA"},{"symbol":"OR.PA"}] end`,
			want:     `[{"symbol":"MC.PA"},{"symbol":"OR.PA"}]`,
			strategy: Array,
		},
		{
			name:     "object with nested array",
			text:     `note {"news":["a","b"]} done`,
			want:     `{"news":["a","b"]}`,
			strategy: Object,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := Extract(tt.text)
			require.True(t, ok)
			assert.JSONEq(t, tt.want, string(p.Raw))
			assert.Equal(t, tt.strategy, p.Strategy)
		})
	}
}

func TestExtractMiss(t *testing.T) {
	tests := []string{
		"",
		"   ",
		"I cannot provide financial advice.",
		"42",
		`"just a string"`,
		"{ not json at all }",
		"} backwards {",
	}

	for _, text := range tests {
		t.Run(text, func(t *testing.T) {
			p, ok := Extract(text)
			assert.False(t, ok)
			assert.Equal(t, Miss, p.Strategy)
			assert.Nil(t, p.Raw)
		})
	}
}

func TestBrokenFenceFallsThrough(t *testing.T) {
	text := "```json\n{broken\n```\nfinal answer {\"ok\": true}"
	p, ok := Extract(text)
	require.False(t, ok, "first brace to last brace spans the broken block too")
	assert.Equal(t, Miss, p.Strategy)
}

func TestDecode(t *testing.T) {
	var out struct {
		TP float64 `json:"tp"`
	}
	strategy, ok := Decode("```json\n{\"tp\": 130.5}\n```", &out)
	require.True(t, ok)
	assert.Equal(t, Fenced, strategy)
	assert.Equal(t, 130.5, out.TP)

	_, ok = Decode(`[1,2]`, &out)
	assert.False(t, ok, "array does not fit a struct")
}
