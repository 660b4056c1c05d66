package staging

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/heartmarshall/dictimport/internal/domain"
)

const (
	lockBusyMaxRetries  = 20
	lockBusyRetryDelay  = 1 * time.Second
	deadlockMaxRetries  = 3
	deadlockBaseBackoff = 500 * time.Millisecond
)

// errLockBusy signals a failed pg_try_advisory_lock attempt. Postgres itself
// never raises an error for a busy advisory lock — try-lock just returns
// false — so this is a sentinel finalizeOnce constructs when that happens.
var errLockBusy = errors.New("staging: advisory lock busy")

// MarkSourceCompleted records that sourceCode has finished loading and
// reports whether every source configured for this import run is now
// complete. A failure to update the control table is logged and reported
// as incomplete, never propagated (spec.md §7 class 3).
func (l *Loader) MarkSourceCompleted(ctx context.Context, sourceCode string) bool {
	sourceCode = domain.NormalizeSourceCode(sourceCode)

	_, err := l.pool.Exec(ctx,
		`INSERT INTO import_source_status (source_code, completed, completed_utc)
		 VALUES ($1, true, $2)
		 ON CONFLICT (source_code) DO UPDATE SET completed = true, completed_utc = EXCLUDED.completed_utc`,
		sourceCode, time.Now().UTC(),
	)
	if err != nil {
		l.log.Error("mark source completed failed", slog.String("source_code", sourceCode), slog.String("error", err.Error()))
		return false
	}

	var incomplete int
	err = l.pool.QueryRow(ctx, `SELECT count(*) FROM import_source_status WHERE NOT completed`).Scan(&incomplete)
	if err != nil {
		l.log.Error("check source completion failed", slog.String("error", err.Error()))
		return false
	}

	return incomplete == 0
}

// TryFinalize runs move under a process-wide advisory lock keyed on
// sourceCode, retrying on lock-busy and deadlock per spec.md §7 class 1/4.
// It is the only staging operation permitted to propagate an error: after
// exhausting retries it returns domain.ErrFinalizeFailed.
func (l *Loader) TryFinalize(ctx context.Context, sourceCode string, move func(ctx context.Context) error) error {
	sourceCode = domain.NormalizeSourceCode(sourceCode)

	var lastErr error
	for attempt := 1; ; attempt++ {
		err := l.finalizeOnce(ctx, sourceCode, move)
		if err == nil {
			return nil
		}
		lastErr = err

		if errors.Is(err, errLockBusy) {
			if attempt > lockBusyMaxRetries {
				break
			}
			l.log.Debug("finalize: advisory lock busy, retrying",
				slog.String("source_code", sourceCode), slog.Int("attempt", attempt))
			if !sleepOrCancel(ctx, lockBusyRetryDelay) {
				break
			}
			continue
		}

		if isDeadlock(err) {
			if attempt > deadlockMaxRetries {
				break
			}
			backoff := time.Duration(attempt) * deadlockBaseBackoff
			l.log.Debug("finalize: deadlock, retrying",
				slog.String("source_code", sourceCode), slog.Int("attempt", attempt))
			if !sleepOrCancel(ctx, backoff) {
				break
			}
			continue
		}

		// Any other failure is not retriable; fall through to the fatal path.
		break
	}

	l.log.Error("finalize failed after retries",
		slog.String("source_code", sourceCode), slog.String("error", lastErr.Error()))
	return fatalFinalizeErr(lastErr)
}

func fatalFinalizeErr(cause error) error {
	if cause == nil {
		return domain.ErrFinalizeFailed
	}
	return errors.Join(domain.ErrFinalizeFailed, cause)
}

func (l *Loader) finalizeOnce(ctx context.Context, sourceCode string, move func(ctx context.Context) error) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	var acquired bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock(hashtext($1))`, sourceCode).Scan(&acquired); err != nil {
		return err
	}
	if !acquired {
		return errLockBusy
	}
	defer func() {
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock(hashtext($1))`, sourceCode)
	}()

	return l.txm.RunInTx(ctx, move)
}

func isDeadlock(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40P01"
}

func sleepOrCancel(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
