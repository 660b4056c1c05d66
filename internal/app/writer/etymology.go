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

// EtymologyInput is the payload for EtymologyWriter.Write.
type EtymologyInput struct {
	EntryID    uuid.UUID
	SourceCode string
	Text       string
}

// EtymologyWriter performs an idempotent upsert of an Etymology child row,
// keyed by entry id rather than parsed id.
type EtymologyWriter struct{ deps }

// NewEtymologyWriter constructs an EtymologyWriter.
func NewEtymologyWriter(b *batcher.Batcher, ne *nonenglish.Repo, log *slog.Logger) *EtymologyWriter {
	return &EtymologyWriter{deps{batch: b, ne: ne, log: log}}
}

// Write normalizes in.Text, skips it if empty or forbidden, and queues a
// guarded insert.
func (w *EtymologyWriter) Write(ctx context.Context, in EtymologyInput) error {
	p := w.normalizeAndRoute(ctx, in.Text, in.SourceCode, domain.FieldTypeEtymology)
	if p.skip {
		return nil
	}

	const sql = `
		INSERT INTO etymologies (id, entry_id, source_code, text, has_non_english_text, non_english_text_id, created_utc)
		SELECT $1, $2, $3, $4, $5, $6, $7
		WHERE NOT EXISTS (
			SELECT 1 FROM etymologies WHERE entry_id = $2 AND source_code = $3 AND text = $4
		)`

	w.batch.Enqueue(ctx, "insert_etymology", sql, 7,
		uuid.New(), in.EntryID, in.SourceCode, p.text, p.hasNonEnglish, p.nonEnglishTextID, time.Now().UTC())
	return nil
}
