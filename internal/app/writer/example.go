package writer

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/dictimport/internal/adapter/postgres/batcher"
	"github.com/heartmarshall/dictimport/internal/adapter/postgres/nonenglish"
	"github.com/heartmarshall/dictimport/internal/domain"
)

// ExampleInput is the payload for ExampleWriter.Write.
type ExampleInput struct {
	EntryID    uuid.UUID
	ParsedID   uuid.UUID
	SourceCode string
	Text       string
}

// ExampleWriter performs an idempotent upsert of an Example child row,
// deduplicating per entry (rather than per sense) to avoid repeating the
// same example text across sibling senses.
type ExampleWriter struct{ deps }

// NewExampleWriter constructs an ExampleWriter.
func NewExampleWriter(b *batcher.Batcher, ne *nonenglish.Repo, log *slog.Logger) *ExampleWriter {
	return &ExampleWriter{deps{batch: b, ne: ne, log: log}}
}

// Write normalizes in.Text, skips it if empty or forbidden, and queues a
// guarded insert scoped by (entry_id, source_code, text).
func (w *ExampleWriter) Write(ctx context.Context, in ExampleInput) error {
	p := w.normalizeAndRoute(ctx, in.Text, in.SourceCode, domain.FieldTypeExample)
	if p.skip {
		return nil
	}

	const sql = `
		INSERT INTO examples (id, entry_id, parsed_id, source_code, text, has_non_english_text, non_english_text_id, created_utc)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8
		WHERE NOT EXISTS (
			SELECT 1 FROM examples WHERE entry_id = $2 AND source_code = $4 AND text = $5
		)`

	w.batch.Enqueue(ctx, "insert_example", sql, 8,
		uuid.New(), in.EntryID, in.ParsedID, in.SourceCode, p.text, p.hasNonEnglish, p.nonEnglishTextID, time.Now().UTC())
	return nil
}
