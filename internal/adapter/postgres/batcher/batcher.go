// Package batcher coalesces many small, repetitive write operations into
// pgx.Batch executions, grouped by an operation key so that statements with
// the same shape travel to Postgres together instead of one round trip at a
// time.
package batcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/dictimport/internal/adapter/postgres"
	"github.com/heartmarshall/dictimport/pkg/ctxutil"
)

// maxPgParams is the practical limit pgx/Postgres tolerates per statement
// batch before the wire protocol's parameter budget gets uncomfortable; it
// leaves headroom below Postgre's hard 65535-parameter ceiling.
const maxPgParams = 2000

// paramSafetyMargin reserves room for a handful of fixed parameters (e.g. a
// batch_recovery row's own columns) that ride alongside the bulk of queued
// operations.
const paramSafetyMargin = 100

// flushInterval is how long a non-empty queue waits for more work before
// flushing on its own.
const flushInterval = 2 * time.Second

// maxDeadlockRetries bounds how many times a flush retries after Postgres
// reports a deadlock or serialization failure.
const maxDeadlockRetries = 3

// op is one queued statement.
type op struct {
	sql  string
	args []any
}

// queue is the per-key buffer plus its lifecycle state.
type queue struct {
	mu          sync.Mutex
	ops         []op
	paramsPerOp int
	flushGate   chan struct{} // size-1: at most one flush in flight per key
	started     bool
}

// Batcher groups queued write operations by key and flushes each group as a
// single pgx.Batch, either when it reaches a parameter-safe size or when its
// flush interval elapses. A failed flush, after exhausting retries, is
// persisted to the recovery sink instead of being dropped.
type Batcher struct {
	pool     *pgxpool.Pool
	log      *slog.Logger
	recovery RecoverySink

	mu     sync.Mutex
	queues map[string]*queue
	wg     sync.WaitGroup

	closeOnce sync.Once
	closeCh   chan struct{}
}

// RecoverySink persists operations that could not be applied after retries
// so an operator can replay or inspect them later.
type RecoverySink interface {
	Save(ctx context.Context, key string, sql string, args []any, failureReason string) error
}

// New constructs a Batcher bound to pool, logging through log and spilling
// permanently failed operations to recovery.
func New(pool *pgxpool.Pool, log *slog.Logger, recovery RecoverySink) *Batcher {
	return &Batcher{
		pool:     pool,
		log:      log,
		recovery: recovery,
		queues:   make(map[string]*queue),
		closeCh:  make(chan struct{}),
	}
}

// maxSafeBatchSize returns how many operations of the given per-op
// parameter count can safely share one batch.
func maxSafeBatchSize(paramsPerOp int) int {
	if paramsPerOp <= 0 {
		paramsPerOp = 1
	}
	n := (maxPgParams - paramSafetyMargin) / paramsPerOp
	if n > 100 {
		n = 100
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Enqueue adds a statement to the named operation key's queue. key groups
// operations that share the same SQL shape (e.g. "insert_alias"); sql and
// args are the exact statement and parameters pgx will execute; paramsPerOp
// is the number of placeholders in sql, used to size batches safely.
func (b *Batcher) Enqueue(ctx context.Context, key, sql string, paramsPerOp int, args ...any) {
	q := b.queueFor(key, paramsPerOp)

	q.mu.Lock()
	q.ops = append(q.ops, op{sql: sql, args: args})
	full := len(q.ops) >= maxSafeBatchSize(paramsPerOp)
	q.mu.Unlock()

	if full {
		go b.flush(context.WithoutCancel(ctx), key, q)
	}
}

func (b *Batcher) queueFor(key string, paramsPerOp int) *queue {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[key]
	if !ok {
		q = &queue{paramsPerOp: paramsPerOp, flushGate: make(chan struct{}, 1)}
		q.flushGate <- struct{}{}
		b.queues[key] = q
	}
	if !q.started {
		q.started = true
		b.wg.Add(1)
		go b.tickLoop(key, q)
	}
	return q
}

// tickLoop periodically flushes a queue so operations below the
// size threshold still land within flushInterval.
func (b *Batcher) tickLoop(key string, q *queue) {
	defer b.wg.Done()
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			q.mu.Lock()
			empty := len(q.ops) == 0
			q.mu.Unlock()
			if !empty {
				b.flush(context.Background(), key, q)
			}
		case <-b.closeCh:
			return
		}
	}
}

// flush drains q and executes the collected operations as one pgx.Batch,
// retrying on deadlock/serialization failure. At most one flush runs per
// key at a time, enforced by q.flushGate.
func (b *Batcher) flush(ctx context.Context, key string, q *queue) {
	select {
	case <-q.flushGate:
	default:
		return // a flush for this key is already in progress
	}
	defer func() { q.flushGate <- struct{}{} }()
	b.drain(ctx, key, q)
}

// drain executes q's pending operations; the caller must hold q.flushGate.
func (b *Batcher) drain(ctx context.Context, key string, q *queue) {
	q.mu.Lock()
	batch := q.ops
	q.ops = nil
	q.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		err := b.execBatch(ctx, batch)
		if err == nil {
			return
		}
		lastErr = err
		if !isRetryable(err) || attempt == maxDeadlockRetries {
			break
		}
		time.Sleep(time.Duration(attempt+1) * 100 * time.Millisecond)
	}

	attrs := append([]any{
		slog.String("key", key),
		slog.Int("ops", len(batch)),
		slog.String("error", lastErr.Error()),
	}, correlationAttrs(ctx)...)
	b.log.Error("batch flush failed after retries", attrs...)
	b.spillToRecovery(context.WithoutCancel(ctx), key, batch, lastErr)
}

func (b *Batcher) execBatch(ctx context.Context, ops []op) error {
	pb := &pgx.Batch{}
	for _, o := range ops {
		pb.Queue(o.sql, o.args...)
	}
	q := postgres.QuerierFromCtx(ctx, b.pool)
	results := q.SendBatch(ctx, pb)
	defer results.Close()

	for range ops {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (b *Batcher) spillToRecovery(ctx context.Context, key string, ops []op, cause error) {
	if b.recovery == nil {
		return
	}
	reason := cause.Error()
	for _, o := range ops {
		if err := b.recovery.Save(ctx, key, o.sql, o.args, reason); err != nil {
			attrs := append([]any{
				slog.String("key", key), slog.String("error", err.Error()),
			}, correlationAttrs(ctx)...)
			b.log.Error("recovery sink save failed", attrs...)
		}
	}
}

// correlationAttrs pulls whatever run/source correlation values the caller
// stashed in ctx, so a flush failure can be traced back to the ingestion
// run and dictionary source that produced it.
func correlationAttrs(ctx context.Context) []any {
	var attrs []any
	if runID, ok := ctxutil.RunIDFromCtx(ctx); ok {
		attrs = append(attrs, slog.String("run_id", runID.String()))
	}
	if sourceCode := ctxutil.SourceCodeFromCtx(ctx); sourceCode != "" {
		attrs = append(attrs, slog.String("source_code", sourceCode))
	}
	return attrs
}

// isRetryable reports whether err is a transient Postgres condition
// (deadlock_detected 40P01, serialization_failure 40001, or
// lock_not_available 55P03) worth retrying.
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40P01", "40001", "55P03":
		return true
	}
	return false
}

// Close flushes every queue's remaining operations, bounded by ctx's
// deadline, and stops the background flush loops. It blocks until all
// in-flight flushes finish or ctx is done.
func (b *Batcher) Close(ctx context.Context) error {
	var closeErr error
	b.closeOnce.Do(func() {
		close(b.closeCh)

		b.mu.Lock()
		keys := make([]string, 0, len(b.queues))
		qs := make([]*queue, 0, len(b.queues))
		for k, q := range b.queues {
			keys = append(keys, k)
			qs = append(qs, q)
		}
		b.mu.Unlock()

		done := make(chan struct{})
		go func() {
			b.wg.Wait()
			for i, q := range qs {
				<-q.flushGate // wait out any flush already in flight for this key
				b.drain(ctx, keys[i], q)
				q.flushGate <- struct{}{}
			}
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			closeErr = fmt.Errorf("batcher close: %w", ctx.Err())
		}
	})
	return closeErr
}
