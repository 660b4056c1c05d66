// Package ctxutil carries per-run correlation values through a request's
// context so every log line and batch operation for one ingestion run can
// be traced back to it.
package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey string

const (
	runIDKey      ctxKey = "run_id"
	sourceCodeKey ctxKey = "source_code"
)

// WithRunID stores a unique correlation ID for one pipeline run.
func WithRunID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromCtx extracts the run ID from the context.
// Returns uuid.Nil and false if the value is missing, nil UUID, or wrong type.
func RunIDFromCtx(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(runIDKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// WithSourceCode stores the dictionary source code the current operation is
// scoped to, so deeply nested calls (batcher flushes, advisory-lock
// retries) can log it without threading an extra parameter everywhere.
func WithSourceCode(ctx context.Context, sourceCode string) context.Context {
	return context.WithValue(ctx, sourceCodeKey, sourceCode)
}

// SourceCodeFromCtx extracts the source code from the context.
// Returns an empty string if absent.
func SourceCodeFromCtx(ctx context.Context) string {
	code, _ := ctx.Value(sourceCodeKey).(string)
	return code
}
