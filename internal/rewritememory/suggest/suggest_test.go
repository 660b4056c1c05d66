package suggest_test

import (
	"testing"

	"github.com/heartmarshall/dictimport/internal/domain"
	"github.com/heartmarshall/dictimport/internal/rewritememory/index"
	"github.com/heartmarshall/dictimport/internal/rewritememory/suggest"
	"github.com/heartmarshall/dictimport/internal/textutil"
)

type testDoc struct {
	SourceCode       string
	Mode             string
	OriginalText     string
	OriginalTextHash string
	EnhancedText     string
}

func newTestIndex(t *testing.T, docs []testDoc) *suggest.Engine {
	t.Helper()
	idx, err := index.NewMemOnly()
	if err != nil {
		t.Fatalf("new mem index: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })

	for i, d := range docs {
		id := ""
		if d.OriginalTextHash == "" {
			d.OriginalTextHash = textutil.Hash(d.OriginalText)
		}
		id = d.SourceCode + "|" + d.Mode + "|" + d.OriginalTextHash + "|" + string(rune('a'+i))
		if err := idx.Index(id, d); err != nil {
			t.Fatalf("index doc %d: %v", i, err)
		}
	}

	return suggest.New(idx)
}

func TestEngine_GetSuggestions_MatchesByModeAndSource(t *testing.T) {
	e := newTestIndex(t, []testDoc{
		{SourceCode: "TEST", Mode: "Definition", OriginalText: "a small feline animal", EnhancedText: "a small domesticated feline"},
		{SourceCode: "OTHER", Mode: "Definition", OriginalText: "a small feline animal", EnhancedText: "should not match"},
		{SourceCode: "TEST", Mode: "Example", OriginalText: "a small feline animal", EnhancedText: "should not match either"},
	})

	results := e.GetSuggestions("TEST", domain.ModeDefinition, "a small feline animal", 5, 0)
	if len(results) != 1 {
		t.Fatalf("expected 1 suggestion scoped to source+mode, got %d", len(results))
	}
	if results[0].SuggestionText != "a small domesticated feline" {
		t.Errorf("unexpected suggestion text: %q", results[0].SuggestionText)
	}
	if results[0].Source != "lucene-memory" {
		t.Errorf("expected source marker lucene-memory, got %q", results[0].Source)
	}
}

func TestEngine_GetSuggestions_BlankInputReturnsEmpty(t *testing.T) {
	e := newTestIndex(t, []testDoc{
		{SourceCode: "TEST", Mode: "Definition", OriginalText: "foo", EnhancedText: "bar"},
	})

	if got := e.GetSuggestions("TEST", domain.ModeDefinition, "   ", 5, 0); got != nil {
		t.Fatalf("expected nil for blank input, got %v", got)
	}
}

func TestEngine_GetSuggestions_NilIndexReturnsEmpty(t *testing.T) {
	e := suggest.New(nil)
	if got := e.GetSuggestions("TEST", domain.ModeDefinition, "anything", 5, 0); got != nil {
		t.Fatalf("expected nil for nil index, got %v", got)
	}
}

func TestEngine_GetSuggestions_FiltersBelowMinScore(t *testing.T) {
	e := newTestIndex(t, []testDoc{
		{SourceCode: "TEST", Mode: "Definition", OriginalText: "a completely different phrase entirely", EnhancedText: "enhanced"},
	})

	results := e.GetSuggestions("TEST", domain.ModeDefinition, "a completely different phrase entirely", 5, 1000)
	if len(results) != 0 {
		t.Fatalf("expected minScore=1000 to filter out every hit, got %d", len(results))
	}
}

func TestEngine_GetSuggestions_SkipsBlankEnhancedText(t *testing.T) {
	e := newTestIndex(t, []testDoc{
		{SourceCode: "TEST", Mode: "Definition", OriginalText: "run quickly", EnhancedText: "   "},
	})

	results := e.GetSuggestions("TEST", domain.ModeDefinition, "run quickly", 5, 0)
	if len(results) != 0 {
		t.Fatalf("expected blank enhanced text to be skipped, got %d results", len(results))
	}
}
