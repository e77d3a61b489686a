package search

import (
	"context"
	"sort"
	"strings"

	"codeassist-be/internal/entity"
	"codeassist-be/internal/pkg/logger"
	"codeassist-be/pkg/vectorstore"
)

const (
	// Final ranking weights.
	vectorWeight  = 0.7
	keywordWeight = 0.3

	// Over-fetch factor: the keyword scorer needs extra candidates to
	// reorder meaningfully.
	overFetchFactor = 3
)

// Hybrid fuses vector similarity with a deterministic keyword scorer.
type Hybrid struct {
	store  *vectorstore.Store
	logger logger.ILogger
}

func NewHybrid(store *vectorstore.Store, log logger.ILogger) *Hybrid {
	return &Hybrid{store: store, logger: log}
}

// Search over-fetches from the vector store, re-ranks with the keyword
// scorer and returns the top `limit` results by combined score.
func (h *Hybrid) Search(ctx context.Context, namespace, queryText string, queryVector []float32, limit int, filters map[string]string) ([]*entity.SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}

	scored, err := h.store.Query(ctx, namespace, queryVector, limit*overFetchFactor, filters)
	if err != nil {
		return nil, err
	}

	results := make([]*entity.SearchResult, 0, len(scored))
	for _, s := range scored {
		vectorScore := clamp01(s.Similarity)
		keywordScore, highlights := KeywordScore(queryText, s.Record)

		results = append(results, &entity.SearchResult{
			Record:        s.Record,
			VectorScore:   vectorScore,
			KeywordScore:  keywordScore,
			CombinedScore: Combine(vectorScore, keywordScore),
			Highlights:    highlights,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CombinedScore > results[j].CombinedScore
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Combine fuses the two scores with fixed weights. Monotonic
// non-decreasing in both inputs.
func Combine(vectorScore, keywordScore float64) float64 {
	return vectorWeight*vectorScore + keywordWeight*keywordScore
}

// KeywordScore rates lexical relevance of a record against the query.
// Deterministic and explainable:
//
//	+0.5  exact substring match in content
//	+0.3  exact substring match in the symbol name
//	+0.2  substring match in the file path
//	+0.3 * token-overlap ratio
//	+0.2  symbol name starts with the query
//	+0.2  a query token appears in the name of a function/class/method record
//
// The sum is clamped to [0,1]. An empty query scores 0.
func KeywordScore(query string, rec *entity.VectorRecord) (float64, []string) {
	query = strings.TrimSpace(strings.ToLower(query))
	if query == "" || rec == nil {
		return 0, nil
	}

	content := strings.ToLower(rec.Metadata[entity.MetaContent])
	symbol := strings.ToLower(rec.Metadata[entity.MetaSymbol])
	path := strings.ToLower(rec.Metadata[entity.MetaPath])
	typeTag := rec.Metadata[entity.MetaType]

	score := 0.0
	var highlights []string

	if content != "" && strings.Contains(content, query) {
		score += 0.5
		highlights = append(highlights, firstMatchingLine(rec.Metadata[entity.MetaContent], query))
	}
	if symbol != "" && strings.Contains(symbol, query) {
		score += 0.3
		highlights = append(highlights, rec.Metadata[entity.MetaSymbol])
	}
	if path != "" && strings.Contains(path, query) {
		score += 0.2
	}

	tokens := tokenize(query)
	if len(tokens) > 0 {
		matched := 0
		for _, tok := range tokens {
			if strings.Contains(content, tok) || strings.Contains(symbol, tok) {
				matched++
			}
		}
		score += 0.3 * float64(matched) / float64(len(tokens))

		if isSymbolKind(typeTag) {
			for _, tok := range tokens {
				if strings.Contains(symbol, tok) {
					score += 0.2
					break
				}
			}
		}
	}

	if symbol != "" && strings.HasPrefix(symbol, query) {
		score += 0.2
	}

	return clamp01(score), highlights
}

func isSymbolKind(typeTag string) bool {
	switch typeTag {
	case "function", "class", "method":
		return true
	}
	return false
}

func tokenize(query string) []string {
	fields := strings.FieldsFunc(query, func(r rune) bool {
		return r == ' ' || r == '.' || r == '/' || r == '_' || r == '-'
	})
	tokens := fields[:0]
	for _, f := range fields {
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func firstMatchingLine(content, query string) string {
	for _, line := range strings.Split(content, "\n") {
		if strings.Contains(strings.ToLower(line), query) {
			return strings.TrimSpace(line)
		}
	}
	return ""
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
