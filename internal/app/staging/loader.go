// Package staging implements the bulk staging loader (sanitize, within-batch
// dedupe, bulk copy, set-based finalize insert) and the cross-process
// advisory-lock-guarded finalize step that moves staging rows into the
// canonical tables.
package staging

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/dictimport/internal/adapter/postgres"
	"github.com/heartmarshall/dictimport/internal/domain"
)

const (
	minBatchSize     = 500
	maxBatchSize     = 4000
	batchSizeStep    = 250
	growThreshold    = 300 * time.Millisecond
	shrinkThreshold  = 1200 * time.Millisecond
	initialBatchSize = 500
)

// Loader bulk-ingests raw entries into the staging table, with an adaptive
// batch size that grows on fast flushes and shrinks on slow ones.
type Loader struct {
	pool *pgxpool.Pool
	txm  *postgres.TxManager
	log  *slog.Logger

	mu        sync.Mutex
	batchSize int
}

// New constructs a Loader.
func New(pool *pgxpool.Pool, txm *postgres.TxManager, log *slog.Logger) *Loader {
	return &Loader{pool: pool, txm: txm, log: log, batchSize: initialBatchSize}
}

// BatchSize returns the loader's current adaptive batch-size hint, for
// callers that chunk their own input streams.
func (l *Loader) BatchSize() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.batchSize
}

// Load sanitizes entries, deduplicates them within the batch, bulk-copies
// the survivors into a temporary table, and finalizes them into staging_rows
// with a single set-based INSERT ... WHERE NOT EXISTS. It never returns an
// error for an in-flight failure (spec.md §7 class 3/4): any problem is
// logged and Load reports (0, len(entries), nil) for that call. Only
// context cancellation is rethrown after rolling back.
func (l *Loader) Load(ctx context.Context, entries []domain.RawEntry) (inserted, attempted int, err error) {
	attempted = len(entries)
	if attempted == 0 {
		return 0, 0, nil
	}

	sanitized := Sanitize(entries)
	deduped := DedupeWithinBatch(sanitized)
	if len(deduped) == 0 {
		return 0, attempted, nil
	}

	start := time.Now()

	txErr := l.txm.RunInTx(ctx, func(ctx context.Context) error {
		n, err := l.copyAndFinalize(ctx, deduped)
		inserted = n
		return err
	})

	elapsed := time.Since(start)
	l.adjustBatchSize(elapsed)

	if txErr != nil {
		if ctx.Err() != nil {
			return 0, attempted, ctx.Err()
		}
		l.log.Error("staging load failed", slog.String("error", txErr.Error()))
		return 0, attempted, nil
	}

	return inserted, attempted, nil
}

func (l *Loader) copyAndFinalize(ctx context.Context, rows []domain.StagingRow) (int, error) {
	q := postgres.QuerierFromCtx(ctx, l.pool)

	const createTemp = `
		CREATE TEMP TABLE staging_incoming (
			word             varchar(200) NOT NULL,
			normalized_word  varchar(200) NOT NULL,
			part_of_speech   varchar(50),
			definition       varchar(2000) NOT NULL,
			etymology        varchar(4000),
			sense_number     int,
			raw_fragment     varchar(8000),
			source_code      varchar(30) NOT NULL,
			created_utc      timestamptz NOT NULL,
			word_hash        bytea NOT NULL,
			definition_hash  bytea NOT NULL
		) ON COMMIT DROP`

	if _, err := q.Exec(ctx, createTemp); err != nil {
		return 0, err
	}

	columns := []string{
		"word", "normalized_word", "part_of_speech", "definition", "etymology",
		"sense_number", "raw_fragment", "source_code", "created_utc", "word_hash", "definition_hash",
	}

	copySource := pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		r := rows[i]
		return []any{
			r.Word, r.NormalizedWord, r.PartOfSpeech, r.Definition, r.Etymology,
			r.SenseNumber, r.RawFragment, r.SourceCode, r.CreatedUtc, r.WordHash, r.DefinitionHash,
		}, nil
	})

	// CopyFrom is exposed by *pgxpool.Pool and pgx.Tx, but not by the
	// narrower Querier interface used for Exec/Query/SendBatch; assert it
	// out of whichever concrete type QuerierFromCtx handed back.
	copier, ok := q.(interface {
		CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	})
	if !ok {
		return 0, errCopyFromUnsupported
	}

	if _, err := copier.CopyFrom(ctx, pgx.Identifier{"staging_incoming"}, columns, copySource); err != nil {
		return 0, err
	}

	const finalizeInsert = `
		INSERT INTO staging_rows
		  (word, normalized_word, part_of_speech, definition, etymology, sense_number, raw_fragment, source_code, created_utc, word_hash, definition_hash)
		SELECT s.word, s.normalized_word, s.part_of_speech, s.definition, s.etymology, s.sense_number, s.raw_fragment, s.source_code, s.created_utc, s.word_hash, s.definition_hash
		FROM staging_incoming s
		WHERE NOT EXISTS (
			SELECT 1 FROM staging_rows t
			WHERE t.source_code = s.source_code
			  AND t.normalized_word = s.normalized_word
			  AND COALESCE(t.sense_number, -1) = COALESCE(s.sense_number, -1)
			  AND t.word_hash = s.word_hash
			  AND t.definition_hash = s.definition_hash
		)`

	tag, err := q.Exec(ctx, finalizeInsert)
	if err != nil {
		return 0, err
	}

	return int(tag.RowsAffected()), nil
}

var errCopyFromUnsupported = errors.New("staging: querier does not support CopyFrom")

func (l *Loader) adjustBatchSize(elapsed time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case elapsed < growThreshold:
		l.batchSize += batchSizeStep
		if l.batchSize > maxBatchSize {
			l.batchSize = maxBatchSize
		}
	case elapsed > shrinkThreshold:
		l.batchSize -= batchSizeStep
		if l.batchSize < minBatchSize {
			l.batchSize = minBatchSize
		}
	}
}
