package batcher

import (
	"context"
	"fmt"
	"time"

	"github.com/heartmarshall/dictimport/internal/adapter/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRecovery persists permanently-failed batch operations to the
// batch_recovery table, so an operator can inspect or replay them instead
// of losing the write silently.
type PostgresRecovery struct {
	pool *pgxpool.Pool
}

// NewPostgresRecovery constructs a PostgresRecovery backed by pool.
func NewPostgresRecovery(pool *pgxpool.Pool) *PostgresRecovery {
	return &PostgresRecovery{pool: pool}
}

// Save inserts one failed operation into batch_recovery for later replay.
// Args are stored via fmt.Sprintf("%v", ...) rather than a typed encoding,
// since the recovery row exists for operator inspection and manual replay,
// not automated re-execution.
func (r *PostgresRecovery) Save(ctx context.Context, key, sql string, args []any, failureReason string) error {
	q := postgres.QuerierFromCtx(ctx, r.pool)
	argsText := fmt.Sprintf("%v", args)
	_, err := q.Exec(ctx,
		`INSERT INTO batch_recovery (operation_key, sql_text, args_text, failure_reason, failed_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		key, sql, argsText, failureReason, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save batch recovery row: %w", err)
	}
	return nil
}
