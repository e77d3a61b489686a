package search

import (
	"testing"

	"codeassist-be/internal/entity"

	"github.com/stretchr/testify/assert"
)

func record(content, symbol, path, typeTag string) *entity.VectorRecord {
	return &entity.VectorRecord{
		Id: "r1",
		Metadata: map[string]string{
			entity.MetaContent: content,
			entity.MetaSymbol:  symbol,
			entity.MetaPath:    path,
			entity.MetaType:    typeTag,
		},
	}
}

func TestKeywordScore(t *testing.T) {
	tests := []struct {
		name  string
		query string
		rec   *entity.VectorRecord
		want  float64
	}{
		{
			name:  "empty query scores zero",
			query: "",
			rec:   record("func ParseConfig() {}", "ParseConfig", "config.go", "function"),
			want:  0,
		},
		{
			name:  "whitespace query scores zero",
			query: "   ",
			rec:   record("func ParseConfig() {}", "ParseConfig", "config.go", "function"),
			want:  0,
		},
		{
			name:  "no match scores zero",
			query: "database migration",
			rec:   record("css styling rules", "styles", "web/app.css", "doc"),
			want:  0,
		},
		{
			// content 0.5 + symbol 0.3 + overlap 0.3 + prefix 0.2 +
			// symbol-kind 0.2 clamps to 1
			name:  "full match clamps to one",
			query: "parseconfig",
			rec:   record("func ParseConfig() {}", "ParseConfig", "internal/config.go", "function"),
			want:  1,
		},
		{
			// path only: 0.2, no token overlap in content/symbol
			name:  "path-only match",
			query: "vendor",
			rec:   record("unrelated", "other", "vendor/lib.go", "doc"),
			want:  0.2,
		},
		{
			// content 0.5 + overlap 1.0*0.3 = 0.8 (doc record, no
			// symbol bonus)
			name:  "content match on doc record",
			query: "rate limiter",
			rec:   record("the rate limiter blocks callers", "", "docs/limits.md", "doc"),
			want:  0.8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := KeywordScore(tt.query, tt.rec)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestKeywordScoreHighlights(t *testing.T) {
	rec := record("line one\nfunc RateLimit() {\nline three", "RateLimit", "limit.go", "function")

	score, highlights := KeywordScore("ratelimit", rec)

	assert.Greater(t, score, 0.0)
	assert.Contains(t, highlights, "func RateLimit() {")
	assert.Contains(t, highlights, "RateLimit")
}

func TestKeywordScorePartialTokenOverlap(t *testing.T) {
	// full query is not a substring anywhere; one of two tokens
	// matches the content: 0.3 * 0.5
	rec := record("handles websocket sessions", "", "hub.go", "doc")

	got, _ := KeywordScore("websocket frames", rec)
	assert.InDelta(t, 0.15, got, 1e-9)
}

func TestCombineWeights(t *testing.T) {
	assert.InDelta(t, 0.7, Combine(1, 0), 1e-9)
	assert.InDelta(t, 0.3, Combine(0, 1), 1e-9)
	assert.InDelta(t, 1.0, Combine(1, 1), 1e-9)
	assert.InDelta(t, 0.0, Combine(0, 0), 1e-9)
}

func TestCombineMonotonic(t *testing.T) {
	base := Combine(0.4, 0.4)
	assert.Greater(t, Combine(0.5, 0.4), base)
	assert.Greater(t, Combine(0.4, 0.5), base)
}
