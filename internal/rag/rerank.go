package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"paperhub/internal/retrieval"
)

const (
	lexicalLengthScale = 10.0
	maxLexicalScore    = 0.4
	titleMatchBonus    = 0.1
)

var lexicalStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "but": {}, "by": {},
	"for": {}, "from": {}, "has": {}, "have": {}, "in": {}, "is": {}, "it": {}, "of": {}, "on": {},
	"or": {}, "the": {}, "to": {}, "was": {}, "were": {}, "with": {},
}

// LexicalReranker blends the vector score with a lightweight lexical
// relevance score. It needs no external service and never fails in practice,
// but still satisfies the fallible Reranker contract.
type LexicalReranker struct{}

func NewLexicalReranker() *LexicalReranker {
	return &LexicalReranker{}
}

// Rerank reorders hits by vector score plus lexical score, descending.
// The sort is stable so ties keep their retrieval order.
func (r *LexicalReranker) Rerank(ctx context.Context, query string, hits []retrieval.Hit) ([]retrieval.Hit, error) {
	if len(hits) == 0 {
		return hits, nil
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty query")
	}

	type scored struct {
		hit   retrieval.Hit
		final float64
	}

	scoredHits := make([]scored, 0, len(hits))
	for _, hit := range hits {
		text, _ := hit.Meta["text"].(string)
		title, _ := hit.Meta["title"].(string)
		scoredHits = append(scoredHits, scored{
			hit:   hit,
			final: hit.Score + lexicalScore(query, text, title),
		})
	}

	sort.SliceStable(scoredHits, func(i, j int) bool {
		return scoredHits[i].final > scoredHits[j].final
	})

	result := make([]retrieval.Hit, 0, len(scoredHits))
	for _, s := range scoredHits {
		result = append(result, s.hit)
	}
	return result, nil
}

// lexicalScore computes a lightweight lexical relevance score for a chunk
// relative to a query. The score is normalized to remain in a predictable
// range so it can be blended with vector scores.
func lexicalScore(query, chunkText, title string) float64 {
	queryTokens := filterStopwords(tokenize(query))
	if len(queryTokens) == 0 {
		return 0
	}

	chunkTokens := tokenize(chunkText)
	if len(chunkTokens) == 0 {
		return 0
	}

	chunkFreq := make(map[string]int, len(chunkTokens))
	for _, token := range chunkTokens {
		chunkFreq[token]++
	}

	var rawMatches int
	for _, token := range queryTokens {
		rawMatches += chunkFreq[token]
	}

	score := (float64(rawMatches) / (1 + float64(len(chunkTokens)))) * lexicalLengthScale

	if title != "" {
		titleTokens := tokenize(title)
		if len(titleTokens) > 0 {
			titleSet := make(map[string]struct{}, len(titleTokens))
			for _, token := range titleTokens {
				titleSet[token] = struct{}{}
			}
			var titleMatches int
			for _, token := range queryTokens {
				if _, ok := titleSet[token]; ok {
					titleMatches++
				}
			}
			score += float64(titleMatches) * titleMatchBonus
		}
	}

	if score > maxLexicalScore {
		return maxLexicalScore
	}
	if score < 0 {
		return 0
	}
	return score
}

func tokenize(text string) []string {
	if text == "" {
		return nil
	}

	var builder strings.Builder
	builder.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			builder.WriteRune(r)
		} else {
			builder.WriteRune(' ')
		}
	}
	clean := builder.String()
	tokens := strings.Fields(clean)
	if len(tokens) == 0 {
		return nil
	}
	return tokens
}

func filterStopwords(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}

	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, isStop := lexicalStopwords[token]; isStop {
			continue
		}
		result = append(result, token)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
