package writer

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/dictimport/internal/adapter/postgres/batcher"
	"github.com/heartmarshall/dictimport/internal/adapter/postgres/nonenglish"
	"github.com/heartmarshall/dictimport/internal/domain"
	"github.com/heartmarshall/dictimport/internal/textutil"
)

// SynonymInput is the payload for SynonymWriter.Write.
type SynonymInput struct {
	ParsedID   uuid.UUID
	SourceCode string
	Text       string
}

// SynonymWriter performs an idempotent upsert of a Synonym child row, plus
// batch entry points that dedupe a whole sense's synonym list at once.
type SynonymWriter struct{ deps }

// NewSynonymWriter constructs a SynonymWriter.
func NewSynonymWriter(b *batcher.Batcher, ne *nonenglish.Repo, log *slog.Logger) *SynonymWriter {
	return &SynonymWriter{deps{batch: b, ne: ne, log: log}}
}

// Write normalizes in.Text (target words are lowercased before routing),
// skips it if empty or forbidden, and queues a guarded insert.
func (w *SynonymWriter) Write(ctx context.Context, in SynonymInput) error {
	lowered := strings.ToLower(in.Text)
	p := w.normalizeAndRoute(ctx, lowered, in.SourceCode, domain.FieldTypeSynonym)
	if p.skip {
		return nil
	}

	const sql = `
		INSERT INTO synonyms (id, parsed_id, source_code, text, has_non_english_text, non_english_text_id, created_utc)
		SELECT $1, $2, $3, $4, $5, $6, $7
		WHERE NOT EXISTS (
			SELECT 1 FROM synonyms WHERE parsed_id = $2 AND source_code = $3 AND text = $4
		)`

	w.batch.Enqueue(ctx, "insert_synonym", sql, 7,
		uuid.New(), in.ParsedID, in.SourceCode, p.text, p.hasNonEnglish, p.nonEnglishTextID, time.Now().UTC())
	return nil
}

// BulkWrite writes raw for a single parsed definition, one at a time through
// the batcher (component D coalesces the individual statements).
func (w *SynonymWriter) BulkWrite(ctx context.Context, parsedID uuid.UUID, sourceCode string, raw []string) error {
	for _, text := range raw {
		if err := w.Write(ctx, SynonymInput{ParsedID: parsedID, SourceCode: sourceCode, Text: text}); err != nil {
			return err
		}
	}
	return nil
}

// WriteForParsedDefinition partitions raw synonyms by language, deduplicates
// the English ones case-insensitively (preserving first-seen order), leaves
// non-English ones to be routed individually by Write, then bulk-writes the
// resulting deduplicated set scoped by (parsedId, synonymText, sourceCode).
func (w *SynonymWriter) WriteForParsedDefinition(ctx context.Context, parsedID uuid.UUID, sourceCode string, raw []string) error {
	seen := make(map[string]struct{}, len(raw))
	deduped := make([]string, 0, len(raw))

	for _, s := range raw {
		trimmed := domain.CollapseWhitespace(s)
		if trimmed == "" {
			continue
		}

		if textutil.ContainsNonEnglish(trimmed) {
			deduped = append(deduped, trimmed)
			continue
		}

		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, trimmed)
	}

	return w.BulkWrite(ctx, parsedID, sourceCode, deduped)
}
