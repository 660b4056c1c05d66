// Package nonenglish stores original non-English text in an append-only
// side table and hands back a stable id, so canonical columns can carry the
// domain.NonEnglishSentinel placeholder instead of foreign scripts.
package nonenglish

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/dictimport/internal/adapter/postgres"
	"github.com/heartmarshall/dictimport/internal/domain"
	"github.com/heartmarshall/dictimport/internal/textutil"
)

// Repo is the non-English side-store: an append-only table fronted by an
// in-process identity cache. Callers are responsible for deduplication —
// store always inserts a new row.
type Repo struct {
	pool  *pgxpool.Pool
	log   *slog.Logger
	cache sync.Map // id (int64) -> text (string)
}

// New constructs a Repo bound to pool.
func New(pool *pgxpool.Pool, log *slog.Logger) *Repo {
	return &Repo{pool: pool, log: log}
}

// Store inserts originalText as a non-English row and returns its id.
// If text is classified English, Store returns (0, false) and does not
// insert anything — callers treat the second return value as "has id".
func (r *Repo) Store(ctx context.Context, originalText, sourceCode string, fieldType domain.FieldType) (int64, bool) {
	if !textutil.ContainsNonEnglish(originalText) {
		return 0, false
	}

	lang := textutil.DetectLanguageCode(originalText)
	var langPtr *string
	if lang != "" && lang != "und" {
		langPtr = &lang
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)
	var id int64
	err := q.QueryRow(ctx,
		`INSERT INTO non_english_text
		   (original_text, detected_language, character_count, source_code, field_type, created_utc)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		originalText, langPtr, len([]rune(originalText)), sourceCode, string(fieldType), time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		r.log.Debug("nonenglish: store failed", slog.String("error", err.Error()))
		return 0, false
	}

	r.cache.Store(id, originalText)
	return id, true
}

// Get returns the text for id, cache-first with a DB fallback. A failure of
// any kind (including not-found) returns ("", false) and logs at debug.
func (r *Repo) Get(ctx context.Context, id int64) (string, bool) {
	if v, ok := r.cache.Load(id); ok {
		return v.(string), true
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)
	var text string
	err := q.QueryRow(ctx, `SELECT original_text FROM non_english_text WHERE id = $1`, id).Scan(&text)
	if err != nil {
		if err != pgx.ErrNoRows {
			r.log.Debug("nonenglish: get failed", slog.String("error", err.Error()))
		}
		return "", false
	}

	r.cache.Store(id, text)
	return text, true
}

// GetBatch resolves ids to text, splitting into cache hits and a single
// round-trip for the remaining misses. Any DB failure simply omits the
// missing ids from the result rather than propagating an error.
func (r *Repo) GetBatch(ctx context.Context, ids []int64) map[int64]string {
	result := make(map[int64]string, len(ids))
	var missing []int64

	for _, id := range ids {
		if v, ok := r.cache.Load(id); ok {
			result[id] = v.(string)
			continue
		}
		missing = append(missing, id)
	}

	if len(missing) == 0 {
		return result
	}

	q := postgres.QuerierFromCtx(ctx, r.pool)
	rows, err := q.Query(ctx,
		`SELECT id, original_text FROM non_english_text WHERE id = ANY($1)`,
		missing,
	)
	if err != nil {
		r.log.Debug("nonenglish: getBatch failed", slog.String("error", err.Error()))
		return result
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var text string
		if err := rows.Scan(&id, &text); err != nil {
			r.log.Debug("nonenglish: getBatch scan failed", slog.String("error", err.Error()))
			continue
		}
		r.cache.Store(id, text)
		result[id] = text
	}

	return result
}
