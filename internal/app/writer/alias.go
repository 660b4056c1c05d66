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

// AliasInput is the payload for AliasWriter.Write.
type AliasInput struct {
	ParsedID   uuid.UUID
	SourceCode string
	Text       string
}

// AliasWriter performs an idempotent upsert of an Alias child row.
type AliasWriter struct{ deps }

// NewAliasWriter constructs an AliasWriter.
func NewAliasWriter(b *batcher.Batcher, ne *nonenglish.Repo, log *slog.Logger) *AliasWriter {
	return &AliasWriter{deps{batch: b, ne: ne, log: log}}
}

// Write normalizes in.Text, skips it if empty or forbidden, routes
// non-English payloads through the side-store, and queues a guarded insert.
func (w *AliasWriter) Write(ctx context.Context, in AliasInput) error {
	p := w.normalizeAndRoute(ctx, in.Text, in.SourceCode, domain.FieldTypeAlias)
	if p.skip {
		return nil
	}

	const sql = `
		INSERT INTO aliases (id, parsed_id, source_code, text, has_non_english_text, non_english_text_id, created_utc)
		SELECT $1, $2, $3, $4, $5, $6, $7
		WHERE NOT EXISTS (
			SELECT 1 FROM aliases WHERE parsed_id = $2 AND source_code = $3 AND text = $4
		)`

	w.batch.Enqueue(ctx, "insert_alias", sql, 7,
		uuid.New(), in.ParsedID, in.SourceCode, p.text, p.hasNonEnglish, p.nonEnglishTextID, time.Now().UTC())
	return nil
}

// BulkWrite deduplicates raw (many source dictionaries repeat the same
// alias across senses) before writing each one.
func (w *AliasWriter) BulkWrite(ctx context.Context, parsedID uuid.UUID, sourceCode string, raw []string) error {
	for _, text := range wiktionary.DeduplicateStrings(raw) {
		if err := w.Write(ctx, AliasInput{ParsedID: parsedID, SourceCode: sourceCode, Text: text}); err != nil {
			return err
		}
	}
	return nil
}
