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

// VariantInput is the payload for VariantWriter.Write.
type VariantInput struct {
	EntryID    uuid.UUID
	SourceCode string
	Text       string
}

// VariantWriter performs an idempotent upsert of a Variant child row,
// keyed by entry id rather than parsed id.
type VariantWriter struct{ deps }

// NewVariantWriter constructs a VariantWriter.
func NewVariantWriter(b *batcher.Batcher, ne *nonenglish.Repo, log *slog.Logger) *VariantWriter {
	return &VariantWriter{deps{batch: b, ne: ne, log: log}}
}

// Write normalizes in.Text, skips it if empty or forbidden, and queues a
// guarded insert.
func (w *VariantWriter) Write(ctx context.Context, in VariantInput) error {
	p := w.normalizeAndRoute(ctx, in.Text, in.SourceCode, domain.FieldTypeVariant)
	if p.skip {
		return nil
	}

	const sql = `
		INSERT INTO variants (id, entry_id, source_code, text, has_non_english_text, non_english_text_id, created_utc)
		SELECT $1, $2, $3, $4, $5, $6, $7
		WHERE NOT EXISTS (
			SELECT 1 FROM variants WHERE entry_id = $2 AND source_code = $3 AND text = $4
		)`

	w.batch.Enqueue(ctx, "insert_variant", sql, 7,
		uuid.New(), in.EntryID, in.SourceCode, p.text, p.hasNonEnglish, p.nonEnglishTextID, time.Now().UTC())
	return nil
}

// BulkWrite deduplicates raw (spelling variants are often repeated across
// an entry's senses in source dictionaries) before writing each one.
func (w *VariantWriter) BulkWrite(ctx context.Context, entryID uuid.UUID, sourceCode string, raw []string) error {
	for _, text := range wiktionary.DeduplicateStrings(raw) {
		if err := w.Write(ctx, VariantInput{EntryID: entryID, SourceCode: sourceCode, Text: text}); err != nil {
			return err
		}
	}
	return nil
}
