package writer

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/dictimport/internal/adapter/postgres/batcher"
	"github.com/heartmarshall/dictimport/internal/adapter/postgres/nonenglish"
	"github.com/heartmarshall/dictimport/internal/app/seeder/wiktionary"
	"github.com/heartmarshall/dictimport/internal/domain"
)

// CrossReferenceInput is the payload for CrossReferenceWriter.Write.
type CrossReferenceInput struct {
	ParsedID   uuid.UUID
	SourceCode string
	Text       string
}

// CrossReferenceWriter performs an idempotent upsert of a CrossReference
// child row, stripping wiki-style markup from the raw payload first.
type CrossReferenceWriter struct{ deps }

// NewCrossReferenceWriter constructs a CrossReferenceWriter.
func NewCrossReferenceWriter(b *batcher.Batcher, ne *nonenglish.Repo, log *slog.Logger) *CrossReferenceWriter {
	return &CrossReferenceWriter{deps{batch: b, ne: ne, log: log}}
}

// Write strips wiki markup from in.Text, normalizes it, skips it if empty
// or forbidden, and queues a guarded insert.
func (w *CrossReferenceWriter) Write(ctx context.Context, in CrossReferenceInput) error {
	stripped := wiktionary.StripMarkup(in.Text)
	p := w.normalizeAndRoute(ctx, stripped, in.SourceCode, domain.FieldTypeCrossRef)
	if p.skip {
		return nil
	}

	const sql = `
		INSERT INTO cross_references (id, parsed_id, source_code, text, has_non_english_text, non_english_text_id, created_utc)
		SELECT $1, $2, $3, $4, $5, $6, $7
		WHERE NOT EXISTS (
			SELECT 1 FROM cross_references WHERE parsed_id = $2 AND source_code = $3 AND text = $4
		)`

	w.batch.Enqueue(ctx, "insert_cross_reference", sql, 7,
		uuid.New(), in.ParsedID, in.SourceCode, p.text, p.hasNonEnglish, p.nonEnglishTextID, time.Now().UTC())
	return nil
}
