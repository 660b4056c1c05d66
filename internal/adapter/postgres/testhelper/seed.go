package testhelper

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/dictimport/internal/domain"
	"github.com/heartmarshall/dictimport/internal/textutil"
)

// uniqueSuffix returns a short unique string for generating non-conflicting test data.
func uniqueSuffix() string {
	return uuid.New().String()[:8]
}

// SeedEntry inserts a dictionary_entries row and returns it filled.
func SeedEntry(t *testing.T, pool *pgxpool.Pool, sourceCode, word string) domain.DictionaryEntry {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	entry := domain.DictionaryEntry{
		ID:             uuid.New(),
		SourceCode:     sourceCode,
		NormalizedWord: domain.NormalizeText(word),
		Word:           word,
		CreatedUtc:     now,
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO dictionary_entries (id, source_code, normalized_word, word, created_utc)
		 VALUES ($1, $2, $3, $4, $5)`,
		entry.ID, entry.SourceCode, entry.NormalizedWord, entry.Word, entry.CreatedUtc,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedEntry insert: %v", err)
	}
	return entry
}

// SeedParsedDefinition inserts a parsed_definitions row for entryID and returns it.
func SeedParsedDefinition(t *testing.T, pool *pgxpool.Pool, entryID uuid.UUID, definition string) domain.ParsedDefinition {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	pd := domain.ParsedDefinition{
		ID:           uuid.New(),
		EntryID:      entryID,
		MeaningTitle: domain.DefaultMeaningTitle,
		Definition:   definition,
		CreatedUtc:   now,
	}

	_, err := pool.Exec(ctx,
		`INSERT INTO parsed_definitions (id, entry_id, meaning_title, definition, created_utc)
		 VALUES ($1, $2, $3, $4, $5)`,
		pd.ID, pd.EntryID, pd.MeaningTitle, pd.Definition, pd.CreatedUtc,
	)
	if err != nil {
		t.Fatalf("testhelper: SeedParsedDefinition insert: %v", err)
	}
	return pd
}

// SeedStagingRow inserts a staging_rows record for loader/finalize tests.
func SeedStagingRow(t *testing.T, pool *pgxpool.Pool, sourceCode, word, definition string) int64 {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	var id int64
	err := pool.QueryRow(ctx,
		`INSERT INTO staging_rows
		   (word, normalized_word, definition, source_code, created_utc, word_hash, definition_hash)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		word, domain.NormalizeText(word), definition, sourceCode, now,
		textutil.HashBytes(word), textutil.HashBytes(definition),
	).Scan(&id)
	if err != nil {
		t.Fatalf("testhelper: SeedStagingRow insert: %v", err)
	}
	return id
}
