package mine_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/dictimport/internal/adapter/postgres/testhelper"
	"github.com/heartmarshall/dictimport/internal/domain"
	"github.com/heartmarshall/dictimport/internal/rewritememory/index"
	"github.com/heartmarshall/dictimport/internal/rewritememory/mine"
	"github.com/heartmarshall/dictimport/internal/rewritememory/suggest"
	"github.com/heartmarshall/dictimport/internal/textutil"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memDoc struct {
	SourceCode       string
	Mode             string
	OriginalText     string
	OriginalTextHash string
	EnhancedText     string
}

func newEngineWithDocs(t *testing.T, docs []memDoc) *suggest.Engine {
	t.Helper()
	idx, err := index.NewMemOnly()
	if err != nil {
		t.Fatalf("new mem index: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	for i, d := range docs {
		if d.OriginalTextHash == "" {
			d.OriginalTextHash = textutil.Hash(d.OriginalText)
		}
		id := d.SourceCode + "|" + d.Mode + "|" + string(rune('a'+i))
		if err := idx.Index(id, d); err != nil {
			t.Fatalf("index doc %d: %v", i, err)
		}
	}
	return suggest.New(idx)
}

func seedAnnotation(t *testing.T, pool *pgxpool.Pool, sourceCode, originalDef, enhancedDef, notesJSON string) {
	t.Helper()
	ctx := context.Background()
	entry := testhelper.SeedEntry(t, pool, sourceCode, "word")
	pd := testhelper.SeedParsedDefinition(t, pool, entry.ID, originalDef)

	_, err := pool.Exec(ctx,
		`INSERT INTO ai_annotations
		   (source_code, parsed_definition_id, original_definition, ai_enhanced_definition, ai_notes_json, provider, model, created_utc)
		 VALUES ($1, $2, $3, $4, $5, 'test-provider', 'test-model', $6)`,
		sourceCode, pd.ID, originalDef, enhancedDef, notesJSON, time.Now().UTC(),
	)
	if err != nil {
		t.Fatalf("seed ai_annotations: %v", err)
	}
}

func defaultCfg(sourceCode string) mine.Config {
	return mine.Config{
		SourceCode:             sourceCode,
		Take:                   500,
		MaxSuggestions:         3,
		MinScore:               0,
		CandidateMinConfidence: 0,
		MaxCandidatesPerRun:    300,
	}
}

func TestMiner_Run_UpsertsGateSurvivingCandidate(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	eng := newEngineWithDocs(t, []memDoc{
		{SourceCode: "MINE_SRC", Mode: "Definition", OriginalText: "a small domesticated feline animal", EnhancedText: "a small domesticated feline kept as a pet"},
	})
	m := mine.New(pool, eng, newTestLogger())

	seedAnnotation(t, pool, "MINE_SRC", "a small domesticated feline animal", "a small domesticated feline animal", `{}`)

	updated, upserts, err := m.Run(context.Background(), defaultCfg("MINE_SRC"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if upserts != 1 {
		t.Fatalf("expected 1 candidate upsert, got %d", upserts)
	}
	if updated != 1 {
		t.Errorf("expected 1 row's notes updated, got %d", updated)
	}

	var from, to string
	var count int
	var conf float64
	var status string
	err = pool.QueryRow(context.Background(),
		`SELECT from_text, to_text, suggested_count, avg_confidence_score, status
		 FROM rewrite_map_candidates WHERE source_code = 'MINE_SRC'`,
	).Scan(&from, &to, &count, &conf, &status)
	if err != nil {
		t.Fatalf("query candidate: %v", err)
	}
	if from != "a small domesticated feline animal" || to != "a small domesticated feline kept as a pet" {
		t.Errorf("unexpected candidate text: from=%q to=%q", from, to)
	}
	if count != 1 {
		t.Errorf("expected suggested_count=1, got %d", count)
	}
	if status != "Pending" {
		t.Errorf("expected status=Pending, got %q", status)
	}
	if conf <= 0 {
		t.Errorf("expected a positive confidence score, got %f", conf)
	}
}

func TestMiner_Run_RepeatedObservationAveragesConfidence(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	eng := newEngineWithDocs(t, []memDoc{
		{SourceCode: "MINE_REPEAT", Mode: "Definition", OriginalText: "a tall structure built for observation", EnhancedText: "a tall structure used for observing surroundings"},
	})
	m := mine.New(pool, eng, newTestLogger())

	seedAnnotation(t, pool, "MINE_REPEAT", "a tall structure built for observation", "a tall structure built for observation (unchanged)", `{}`)
	seedAnnotation(t, pool, "MINE_REPEAT", "a tall structure built for observation", "a tall structure built for observation (still unchanged)", `{}`)

	_, _, err := m.Run(context.Background(), defaultCfg("MINE_REPEAT"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	var count int
	if err := pool.QueryRow(context.Background(),
		`SELECT suggested_count FROM rewrite_map_candidates WHERE source_code = 'MINE_REPEAT'`,
	).Scan(&count); err != nil {
		t.Fatalf("query candidate: %v", err)
	}
	if count != 2 {
		t.Errorf("expected the same (from,to) pair observed twice to accumulate suggested_count=2, got %d", count)
	}
}

func TestMiner_Run_GateRejectsIdenticalFromAndToText(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	eng := newEngineWithDocs(t, []memDoc{
		{SourceCode: "MINE_IDENTICAL", Mode: "Definition", OriginalText: "a word that means itself", EnhancedText: "a word that means itself"},
	})
	m := mine.New(pool, eng, newTestLogger())

	seedAnnotation(t, pool, "MINE_IDENTICAL", "a word that means itself", "a word that means itself", `{}`)

	_, upserts, err := m.Run(context.Background(), defaultCfg("MINE_IDENTICAL"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if upserts != 0 {
		t.Errorf("expected identical from/to text to be gated out, got %d upserts", upserts)
	}
}

func TestMiner_Run_GateRejectsForbiddenPlaceholder(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	eng := newEngineWithDocs(t, []memDoc{
		{SourceCode: "MINE_PLACEHOLDER", Mode: "Definition", OriginalText: "a phrase with a sentinel value", EnhancedText: domain.NonEnglishSentinel + " some text"},
	})
	m := mine.New(pool, eng, newTestLogger())

	seedAnnotation(t, pool, "MINE_PLACEHOLDER", "a phrase with a sentinel value", "a phrase with a sentinel value changed", `{}`)

	_, upserts, err := m.Run(context.Background(), defaultCfg("MINE_PLACEHOLDER"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if upserts != 0 {
		t.Errorf("expected a suggestion containing the non-English sentinel to be gated out, got %d upserts", upserts)
	}
}

func TestMiner_Run_SkipsCandidatesMatchingAnExistingEnabledRule(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	eng := newEngineWithDocs(t, []memDoc{
		{SourceCode: "MINE_EXISTING", Mode: "Definition", OriginalText: "a commonly seen household pet", EnhancedText: "a commonly kept household pet"},
	})
	m := mine.New(pool, eng, newTestLogger())

	seedAnnotation(t, pool, "MINE_EXISTING", "a commonly seen household pet", "a commonly seen household pet redux", `{}`)

	_, err := pool.Exec(context.Background(),
		`INSERT INTO rewrite_rules (from_text, to_text, mode_code, is_whole_word, is_regex, priority, enabled, notes)
		 VALUES ('a commonly seen household pet', 'a commonly kept household pet', 'English', true, false, 500, true, '')`,
	)
	if err != nil {
		t.Fatalf("seed existing rule: %v", err)
	}

	_, upserts, err := m.Run(context.Background(), defaultCfg("MINE_EXISTING"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if upserts != 0 {
		t.Errorf("expected a candidate matching an already-enabled rule to be skipped, got %d upserts", upserts)
	}
}

func TestMiner_Run_PersistsMinedSuggestionsIntoNotes(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	eng := newEngineWithDocs(t, []memDoc{
		{SourceCode: "MINE_NOTES", Mode: "Definition", OriginalText: "an animal that barks and wags its tail", EnhancedText: "a domesticated canine that barks and wags its tail"},
	})
	m := mine.New(pool, eng, newTestLogger())

	seedAnnotation(t, pool, "MINE_NOTES", "an animal that barks and wags its tail", "an animal that barks", `{}`)

	updated, _, err := m.Run(context.Background(), defaultCfg("MINE_NOTES"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if updated != 1 {
		t.Fatalf("expected 1 notes row updated, got %d", updated)
	}

	var rawNotes string
	if err := pool.QueryRow(context.Background(),
		`SELECT ai_notes_json FROM ai_annotations WHERE source_code = 'MINE_NOTES'`,
	).Scan(&rawNotes); err != nil {
		t.Fatalf("query notes: %v", err)
	}
	var notes domain.AiNotes
	if err := json.Unmarshal([]byte(rawNotes), &notes); err != nil {
		t.Fatalf("unmarshal notes: %v", err)
	}
	if len(notes.MinedSuggestions) != 1 {
		t.Fatalf("expected 1 mined suggestion folded into notes, got %d", len(notes.MinedSuggestions))
	}
	if notes.MinedSuggestions[0].Text != "a domesticated canine that barks and wags its tail" {
		t.Errorf("unexpected mined suggestion text: %q", notes.MinedSuggestions[0].Text)
	}

	updatedAgain, _, err := m.Run(context.Background(), defaultCfg("MINE_NOTES"))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if updatedAgain != 0 {
		t.Errorf("expected re-running with no new suggestions to report 0 notes updates, got %d", updatedAgain)
	}
}

func TestMiner_Run_NoAnnotationsIsANoop(t *testing.T) {
	pool := testhelper.SetupTestDB(t)
	eng := newEngineWithDocs(t, nil)
	m := mine.New(pool, eng, newTestLogger())

	updated, upserts, err := m.Run(context.Background(), defaultCfg("MINE_EMPTY"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if updated != 0 || upserts != 0 {
		t.Errorf("expected no-op for a source with no annotations, got updated=%d upserts=%d", updated, upserts)
	}
}
