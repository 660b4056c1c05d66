// Package suggest ranks previously observed (original, enhanced) text pairs
// for a given input, searching the index built by the rewritememory/index
// package.
package suggest

import (
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/heartmarshall/dictimport/internal/domain"
)

const (
	minFetchMultiplier = 10
	minFetch           = 50
	matchedPreviewLen  = 120
)

// Suggestion is one ranked rewrite candidate returned to a caller.
type Suggestion struct {
	Mode                   domain.RewriteMode
	SuggestionText         string
	Score                  float64
	MatchedHash            string
	MatchedOriginalPreview string
	Source                 string
}

// Engine answers GetSuggestions queries against a rewrite-memory index.
type Engine struct {
	idx bleve.Index
}

// New constructs an Engine over idx. idx may be nil, in which case every
// query returns no suggestions — callers that have not yet built an index
// degrade gracefully rather than failing (§4.H: "missing index directories
// ... return empty").
func New(idx bleve.Index) *Engine {
	return &Engine{idx: idx}
}

// GetSuggestions searches the index for inputText under (sourceCode, mode)
// and returns up to maxSuggestions ranked hits scoring at least minScore.
// It never returns an error: any failure (blank input, closed index,
// search error) yields an empty slice, per §4.H/§7 class 3.
func (e *Engine) GetSuggestions(sourceCode string, mode domain.RewriteMode, inputText string, maxSuggestions int, minScore float64) []Suggestion {
	trimmed := strings.TrimSpace(inputText)
	if trimmed == "" || e.idx == nil || maxSuggestions <= 0 {
		return nil
	}

	fetch := minFetch
	if maxSuggestions*minFetchMultiplier > fetch {
		fetch = maxSuggestions * minFetchMultiplier
	}

	q := bleve.NewConjunctionQuery(
		newTermQuery("SourceCode", sourceCode),
		newTermQuery("Mode", string(mode)),
		newMatchQuery("OriginalText", trimmed),
	)

	req := bleve.NewSearchRequestOptions(q, fetch, 0, false)
	req.Fields = []string{"OriginalText", "OriginalTextHash", "EnhancedText"}

	result, err := e.idx.Search(req)
	if err != nil || result == nil {
		return nil
	}

	hits := result.Hits
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})

	var out []Suggestion
	for _, h := range hits {
		if len(out) >= maxSuggestions {
			break
		}
		if h.Score < minScore {
			continue
		}
		enhanced, _ := h.Fields["EnhancedText"].(string)
		if strings.TrimSpace(enhanced) == "" {
			continue
		}
		original, _ := h.Fields["OriginalText"].(string)
		hash, _ := h.Fields["OriginalTextHash"].(string)

		out = append(out, Suggestion{
			Mode:                   mode,
			SuggestionText:         enhanced,
			Score:                  h.Score,
			MatchedHash:            hash,
			MatchedOriginalPreview: preview(original),
			Source:                 "lucene-memory",
		})
	}

	return out
}

func preview(s string) string {
	return domain.TruncateRunes(s, matchedPreviewLen)
}

// newTermQuery matches field's stored value exactly; SourceCode and Mode
// are indexed with a keyword analyzer (no tokenization or case-folding), so
// the query term must be passed through unchanged too.
func newTermQuery(field, term string) query.Query {
	q := bleve.NewTermQuery(term)
	q.SetField(field)
	return q
}

func newMatchQuery(field, text string) query.Query {
	q := bleve.NewMatchQuery(text)
	q.SetField(field)
	q.Operator = query.MatchQueryOperatorAnd
	return q
}
