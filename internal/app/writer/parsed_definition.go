package writer

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/dictimport/internal/adapter/postgres"
	"github.com/heartmarshall/dictimport/internal/domain"
	"github.com/heartmarshall/dictimport/internal/textutil"
)

// domainCodeLexicon maps free-form domain/usage labels to the short codes
// the canonical column stores. Unmapped labels pass through unchanged
// (subject to truncation).
var domainCodeLexicon = map[string]string{
	"american":  "AM",
	"british":   "BRIT",
	"us":        "US",
	"uk":        "BRIT",
	"formal":    "FORMAL",
	"informal":  "INFORMAL",
	"literary":  "LITERARY",
	"archaic":   "ARCHAIC",
	"dialectal": "DIALECT",
	"slang":     "SLANG",
	"technical": "TECH",
	"medical":   "MED",
	"legal":     "LEGAL",
}

var usageLabelLexicon = map[string]string{
	"noun, countable":   "N-COUNT",
	"noun, uncountable": "N-UNCOUNT",
	"noun":              "N",
	"verb":              "VERB",
	"adjective":         "ADJ",
	"adverb":            "ADV",
	"pronoun":           "PRON",
	"preposition":       "PREP",
	"conjunction":       "CONJ",
	"interjection":      "INTERJ",
}

// mapLexicon looks raw up (case-insensitively, trimmed) in lex; falls back
// to the trimmed raw value when there is no entry.
func mapLexicon(lex map[string]string, raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if code, ok := lex[strings.ToLower(trimmed)]; ok {
		return code
	}
	return trimmed
}

// ParsedDefinitionWriter performs the idempotent upsert of a ParsedDefinition
// natural-keyed row, returning its id (existing or newly inserted).
type ParsedDefinitionWriter struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewParsedDefinitionWriter constructs a ParsedDefinitionWriter.
func NewParsedDefinitionWriter(pool *pgxpool.Pool, log *slog.Logger) *ParsedDefinitionWriter {
	return &ParsedDefinitionWriter{pool: pool, log: log}
}

// Write upserts parsed under entryId (and optional parentParsedId), mapping
// DomainCode/UsageLabel through the fixed lexicon, and returns the natural
// key's parsed id. A string-truncation error (22001) triggers one retry with
// the domain code, usage label and meaning title aggressively truncated; the
// retry's error, if any, is returned. Every other error is returned as-is,
// without a retry.
func (w *ParsedDefinitionWriter) Write(ctx context.Context, entryID uuid.UUID, parsed domain.ParsedDefinition, parentParsedID *uuid.UUID) (uuid.UUID, error) {
	meaningTitle := parsed.MeaningTitle
	if strings.TrimSpace(meaningTitle) == "" {
		meaningTitle = domain.DefaultMeaningTitle
	} else {
		meaningTitle = textutil.ToTitleCase(meaningTitle)
	}

	var domainCode, usageLabel *string
	if parsed.DomainCode != nil {
		v := mapLexicon(domainCodeLexicon, *parsed.DomainCode)
		domainCode = &v
	}
	if parsed.UsageLabel != nil {
		v := mapLexicon(usageLabelLexicon, *parsed.UsageLabel)
		usageLabel = &v
	}

	id, err := w.upsert(ctx, entryID, parentParsedID, meaningTitle, parsed.SenseNumber, domainCode, usageLabel, parsed.Definition, parsed.RawFragment)
	if err == nil {
		return id, nil
	}

	if !isTruncationError(err) {
		return uuid.Nil, err
	}

	w.log.Debug("parsed_definition: retrying with truncated values", slog.String("error", err.Error()))

	if domainCode != nil {
		v := domain.TruncateRunes(*domainCode, 20)
		domainCode = &v
	}
	if usageLabel != nil {
		v := domain.TruncateRunes(*usageLabel, 20)
		usageLabel = &v
	}
	meaningTitle = domain.TruncateRunes(meaningTitle, 100)

	return w.upsert(ctx, entryID, parentParsedID, meaningTitle, parsed.SenseNumber, domainCode, usageLabel, parsed.Definition, parsed.RawFragment)
}

func (w *ParsedDefinitionWriter) upsert(ctx context.Context, entryID uuid.UUID, parentParsedID *uuid.UUID, meaningTitle string, senseNumber *int, domainCode, usageLabel *string, definition string, rawFragment *string) (uuid.UUID, error) {
	q := postgres.QuerierFromCtx(ctx, w.pool)
	now := time.Now().UTC()
	newID := uuid.New()

	const insertSQL = `
		INSERT INTO parsed_definitions (id, entry_id, parent_parsed_id, meaning_title, sense_number, domain_code, usage_label, definition, raw_fragment, created_utc)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (entry_id, COALESCE(parent_parsed_id, '00000000-0000-0000-0000-000000000000'::uuid), meaning_title, COALESCE(sense_number, -1))
		DO NOTHING
		RETURNING id`

	var id uuid.UUID
	err := q.QueryRow(ctx, insertSQL,
		newID, entryID, parentParsedID, meaningTitle, senseNumber, domainCode, usageLabel, definition, rawFragment, now,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, err
	}

	const selectSQL = `
		SELECT id FROM parsed_definitions
		WHERE entry_id = $1
		  AND COALESCE(parent_parsed_id, '00000000-0000-0000-0000-000000000000'::uuid) = COALESCE($2, '00000000-0000-0000-0000-000000000000'::uuid)
		  AND meaning_title = $3
		  AND COALESCE(sense_number, -1) = COALESCE($4, -1)`

	if err := q.QueryRow(ctx, selectSQL, entryID, parentParsedID, meaningTitle, senseNumber).Scan(&id); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func isTruncationError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "22001"
	}
	return false
}
