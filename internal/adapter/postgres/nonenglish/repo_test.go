package nonenglish_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/heartmarshall/dictimport/internal/adapter/postgres/nonenglish"
	"github.com/heartmarshall/dictimport/internal/adapter/postgres/testhelper"
	"github.com/heartmarshall/dictimport/internal/domain"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRepo_Store_EnglishReturnsNoID(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	repo := nonenglish.New(pool, newTestLogger())

	id, ok := repo.Store(context.Background(), "a plain english sentence", "TEST", domain.FieldTypeDefinition)
	if ok {
		t.Fatalf("expected English text to be rejected, got id %d", id)
	}
}

func TestRepo_Store_NonEnglishRoundTrip(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	repo := nonenglish.New(pool, newTestLogger())

	original := "привет мир"
	id, ok := repo.Store(context.Background(), original, "TEST", domain.FieldTypeDefinition)
	if !ok {
		t.Fatal("expected non-English text to be stored")
	}

	text, ok := repo.Get(context.Background(), id)
	if !ok {
		t.Fatal("expected Get to find the stored row")
	}
	if text != original {
		t.Fatalf("expected %q, got %q", original, text)
	}
}

func TestRepo_Get_CacheHit(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	repo := nonenglish.New(pool, newTestLogger())

	id, ok := repo.Store(context.Background(), "日本語のテキスト", "TEST", domain.FieldTypeExample)
	if !ok {
		t.Fatal("expected store to succeed")
	}

	// First Get populates nothing new (already cached by Store); second Get
	// must still return the same text without requiring a live row change.
	first, _ := repo.Get(context.Background(), id)
	second, _ := repo.Get(context.Background(), id)
	if first != second {
		t.Fatalf("expected stable cached text, got %q then %q", first, second)
	}
}

func TestRepo_Get_NotFound(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	repo := nonenglish.New(pool, newTestLogger())

	_, ok := repo.Get(context.Background(), 999999)
	if ok {
		t.Fatal("expected Get on unknown id to fail")
	}
}

func TestRepo_GetBatch_ReadThroughAndUnknownID(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	repo := nonenglish.New(pool, newTestLogger())

	id1, _ := repo.Store(context.Background(), "привет", "TEST", domain.FieldTypeDefinition)
	id2, _ := repo.Store(context.Background(), "日本語", "TEST", domain.FieldTypeDefinition)

	// Bypass the in-process cache by building a second repo instance sharing
	// the same pool — it has an empty cache and must read through to the
	// database for both ids; the unknown id 999999 is simply omitted.
	fresh := nonenglish.New(pool, newTestLogger())
	result := fresh.GetBatch(context.Background(), []int64{id1, id2, 999999})

	if len(result) != 2 {
		t.Fatalf("expected 2 resolved ids, got %d: %v", len(result), result)
	}
	if result[id1] != "привет" {
		t.Errorf("unexpected text for id1: %q", result[id1])
	}
	if result[id2] != "日本語" {
		t.Errorf("unexpected text for id2: %q", result[id2])
	}
}
