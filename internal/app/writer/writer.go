// Package writer implements the idempotent child-row writers (aliases,
// synonyms, examples, variants, cross-references, etymologies) and the
// parsed-definition upsert they hang off of.
package writer

import (
	"context"
	"log/slog"

	"github.com/heartmarshall/dictimport/internal/adapter/postgres/batcher"
	"github.com/heartmarshall/dictimport/internal/adapter/postgres/nonenglish"
	"github.com/heartmarshall/dictimport/internal/domain"
	"github.com/heartmarshall/dictimport/internal/textutil"
)

// Writer is the common contract every child-row writer satisfies.
type Writer[T any] interface {
	Write(ctx context.Context, row T) error
}

// deps bundles the collaborators every child writer needs.
type deps struct {
	batch *batcher.Batcher
	ne    *nonenglish.Repo
	log   *slog.Logger
}

var forbiddenPayloads = map[string]bool{
	domain.NonEnglishSentinel:       true,
	domain.BilingualExampleSentinel: true,
}

// routed is the outcome of normalizing and classifying a child row's text.
type routed struct {
	skip             bool
	text             string
	hasNonEnglish    bool
	nonEnglishTextID *int64
}

// normalizeAndRoute trims/collapses raw, repairs malformed brackets/quotes
// and punctuation, skips blanks and forbidden sentinels, and substitutes
// domain.NonEnglishSentinel for genuinely non-English payloads after
// storing the original via the side-store.
func (d *deps) normalizeAndRoute(ctx context.Context, raw, sourceCode string, fieldType domain.FieldType) routed {
	text := domain.CollapseWhitespace(raw)
	if text == "" || forbiddenPayloads[text] {
		return routed{skip: true}
	}

	text = textutil.BalanceBrackets(text).Text
	text = textutil.BalanceQuotes(text).Text
	text = textutil.NormalizePunctuation(text)
	if text == "" {
		return routed{skip: true}
	}

	if id, ok := d.ne.Store(ctx, text, sourceCode, fieldType); ok {
		return routed{text: domain.NonEnglishSentinel, hasNonEnglish: true, nonEnglishTextID: &id}
	}

	return routed{text: text}
}
