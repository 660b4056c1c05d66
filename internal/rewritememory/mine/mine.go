// Package mine consumes AI-annotated rows, queries the suggestion engine,
// and turns high-confidence suggestions into rewrite-map candidates.
package mine

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/dictimport/internal/adapter/postgres"
	"github.com/heartmarshall/dictimport/internal/app/seeder/wiktionary"
	"github.com/heartmarshall/dictimport/internal/domain"
	"github.com/heartmarshall/dictimport/internal/rewritememory/suggest"
)

const (
	defaultMaxCandidatesPerRun = 300
	maxMaxCandidatesPerRun     = 5000
	exampleSuggestionsPerRow   = 10
	titleLenCap                = 80
	exampleLenCap              = 200
	definitionLenCap           = 300
	minPairLen                 = 3
	digitRatioGate             = 0.20
	symbolRatioGate            = 0.35
	minedSuggestionTextCap     = 200
)

var forbiddenPlaceholders = []string{domain.NonEnglishSentinel, domain.BilingualExampleSentinel}

// pair is one candidate (fromText, toText) rewrite observation before the
// candidate gate runs.
type pair struct {
	mode  domain.RewriteMode
	from  string
	to    string
	score float64
}

// Miner runs the mining step described in §4.I.
type Miner struct {
	pool *pgxpool.Pool
	eng  *suggest.Engine
	log  *slog.Logger
}

// New constructs a Miner.
func New(pool *pgxpool.Pool, eng *suggest.Engine, log *slog.Logger) *Miner {
	return &Miner{pool: pool, eng: eng, log: log}
}

// Config bounds one mining run.
type Config struct {
	SourceCode             string
	Take                   int
	MaxSuggestions         int
	MinScore               float64
	CandidateMinConfidence float64
	MaxCandidatesPerRun    int
}

type annotatedRow struct {
	parsedID     string
	originalDef  string
	notesJSON    string
	meaningTitle string
}

// Run executes one mining pass for cfg.SourceCode and reports how many
// notes rows were updated with fresh suggestions and how many candidates
// were upserted.
func (m *Miner) Run(ctx context.Context, cfg Config) (updatedNotes, candidateUpserts int, err error) {
	maxCandidates := cfg.MaxCandidatesPerRun
	if maxCandidates <= 0 {
		maxCandidates = defaultMaxCandidatesPerRun
	}
	if maxCandidates > maxMaxCandidatesPerRun {
		maxCandidates = maxMaxCandidatesPerRun
	}

	rows, err := m.loadAnnotatedRows(ctx, cfg.SourceCode, cfg.Take)
	if err != nil {
		return 0, 0, err
	}

	existingKeys, err := m.existingRuleKeys(ctx)
	if err != nil {
		return 0, 0, err
	}

	var allPairs []pair
	for _, r := range rows {
		pairs, notesChanged := m.minePairs(ctx, r, cfg)
		if notesChanged {
			updatedNotes++
		}
		allPairs = append(allPairs, pairs...)
	}

	gated := gateAndBucket(allPairs, cfg.CandidateMinConfidence)
	gated = filterAgainstExistingRules(gated, existingKeys)

	if len(gated) > maxCandidates {
		m.log.Debug("mine: dropping candidates beyond per-run cap",
			slog.Int("dropped", len(gated)-maxCandidates), slog.Int("cap", maxCandidates))
		gated = gated[:maxCandidates]
	}

	sortGatedCandidates(gated)

	for _, g := range gated {
		if err := m.upsertCandidate(ctx, cfg.SourceCode, g); err != nil {
			m.log.Error("mine: candidate upsert failed", slog.String("error", err.Error()))
			continue
		}
		candidateUpserts++
	}

	return updatedNotes, candidateUpserts, nil
}

func (m *Miner) loadAnnotatedRows(ctx context.Context, sourceCode string, take int) ([]annotatedRow, error) {
	if take <= 0 {
		take = 500
	}
	if take > 5000 {
		take = 5000
	}

	rows, err := m.pool.Query(ctx,
		`SELECT a.parsed_definition_id::text, a.original_definition, a.ai_notes_json, pd.meaning_title
		 FROM ai_annotations a
		 JOIN parsed_definitions pd ON pd.id = a.parsed_definition_id
		 WHERE a.source_code = $1
		 ORDER BY a.id
		 LIMIT $2`,
		sourceCode, take,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []annotatedRow
	for rows.Next() {
		var r annotatedRow
		if err := rows.Scan(&r.parsedID, &r.originalDef, &r.notesJSON, &r.meaningTitle); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// minePairs queries the suggestion engine for one annotated row (once for
// the definition, once for the title, and once for each of up to 10
// example rewrites), folds the top
// results back into the row's notes (sorted score desc, then matched hash
// ascending) via persistNotes, and returns the raw (fromText, suggestion)
// pairs found so the caller can run them through the candidate gate.
func (m *Miner) minePairs(ctx context.Context, r annotatedRow, cfg Config) ([]pair, bool) {
	var pairs []pair
	var all []suggest.Suggestion

	defSuggestions := m.eng.GetSuggestions(cfg.SourceCode, domain.ModeDefinition, r.originalDef, cfg.MaxSuggestions, cfg.MinScore)
	all = append(all, defSuggestions...)
	for _, s := range defSuggestions {
		pairs = append(pairs, pair{mode: domain.ModeDefinition, from: r.originalDef, to: s.SuggestionText, score: s.Score})
	}

	titleSuggestions := m.eng.GetSuggestions(cfg.SourceCode, domain.ModeMeaningTitle, r.meaningTitle, cfg.MaxSuggestions, cfg.MinScore)
	all = append(all, titleSuggestions...)
	for _, s := range titleSuggestions {
		pairs = append(pairs, pair{mode: domain.ModeMeaningTitle, from: r.meaningTitle, to: s.SuggestionText, score: s.Score})
	}

	notes := parseNotes(r.notesJSON)
	exampleTake := exampleSuggestionsPerRow
	if exampleTake > len(notes.ExampleRewrites) {
		exampleTake = len(notes.ExampleRewrites)
	}
	for i := 0; i < exampleTake; i++ {
		orig := notes.ExampleRewrites[i].Original
		suggestions := m.eng.GetSuggestions(cfg.SourceCode, domain.ModeExample, orig, cfg.MaxSuggestions, cfg.MinScore)
		all = append(all, suggestions...)
		for _, s := range suggestions {
			pairs = append(pairs, pair{mode: domain.ModeExample, from: orig, to: s.SuggestionText, score: s.Score})
		}
	}

	top := topSuggestions(all, cfg.MaxSuggestions)
	if !sameSuggestions(notes.MinedSuggestions, top) {
		notes.MinedSuggestions = top
		if err := m.persistNotes(ctx, r.parsedID, cfg.SourceCode, notes); err != nil {
			m.log.Error("mine: persist notes failed", slog.String("error", err.Error()))
			return pairs, false
		}
		return pairs, true
	}
	return pairs, false
}

// topSuggestions picks the top maxSuggestions hits by score desc, then
// matched hash ascending, converting them to the persisted note shape.
func topSuggestions(suggestions []suggest.Suggestion, maxSuggestions int) []domain.MinedSuggestion {
	if len(suggestions) == 0 {
		return nil
	}
	top := make([]suggest.Suggestion, len(suggestions))
	copy(top, suggestions)
	sort.SliceStable(top, func(i, j int) bool {
		if top[i].Score != top[j].Score {
			return top[i].Score > top[j].Score
		}
		return top[i].MatchedHash < top[j].MatchedHash
	})
	if maxSuggestions > 0 && len(top) > maxSuggestions {
		top = top[:maxSuggestions]
	}
	out := make([]domain.MinedSuggestion, len(top))
	for i, s := range top {
		text := wiktionary.TruncateDefinition(s.SuggestionText, minedSuggestionTextCap)
		out[i] = domain.MinedSuggestion{Mode: s.Mode, Text: text, Score: s.Score, MatchedHash: s.MatchedHash}
	}
	return out
}

func sameSuggestions(a, b []domain.MinedSuggestion) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (m *Miner) persistNotes(ctx context.Context, parsedID, sourceCode string, notes domain.AiNotes) error {
	raw, err := json.Marshal(notes)
	if err != nil {
		return err
	}
	q := postgres.QuerierFromCtx(ctx, m.pool)
	_, err = q.Exec(ctx,
		`UPDATE ai_annotations SET ai_notes_json = $1 WHERE parsed_definition_id = $2::uuid AND source_code = $3`,
		string(raw), parsedID, sourceCode,
	)
	return err
}

func parseNotes(raw string) domain.AiNotes {
	var notes domain.AiNotes
	if strings.TrimSpace(raw) == "" {
		return notes
	}
	_ = json.Unmarshal([]byte(raw), &notes)
	return notes
}

// gatedCandidate is a pair that survived the candidate gate, with its
// score mapped to a confidence bucket.
type gatedCandidate struct {
	mode       domain.RewriteMode
	from       string
	to         string
	confidence float64
}

// gateAndBucket applies the §4.I step 5 validation gate, then maps
// surviving pairs' scores to a confidence bucket and drops anything below
// minConfidence.
func gateAndBucket(pairs []pair, minConfidence float64) []gatedCandidate {
	var out []gatedCandidate
	for _, p := range pairs {
		from := strings.TrimSpace(p.from)
		to := strings.TrimSpace(p.to)
		if !passesGate(p.mode, from, to) {
			continue
		}
		conf := confidenceBucket(p.score)
		if conf < minConfidence {
			continue
		}
		out = append(out, gatedCandidate{mode: p.mode, from: from, to: to, confidence: conf})
	}
	return out
}

func passesGate(mode domain.RewriteMode, from, to string) bool {
	if len(from) <= minPairLen || len(to) <= minPairLen {
		return false
	}
	if from == to {
		return false
	}
	if containsControlWhitespace(from) || containsControlWhitespace(to) {
		return false
	}
	if cap, ok := lengthCapFor(mode); ok && (len(from) > cap || len(to) > cap) {
		return false
	}
	if digitRatio(from) >= digitRatioGate || digitRatio(to) >= digitRatioGate {
		return false
	}
	if symbolRatio(from) >= symbolRatioGate || symbolRatio(to) >= symbolRatioGate {
		return false
	}
	if strings.HasSuffix(from, ":") || strings.HasSuffix(to, ":") {
		return false
	}
	if containsForbiddenPlaceholder(from) || containsForbiddenPlaceholder(to) {
		return false
	}
	return true
}

func lengthCapFor(mode domain.RewriteMode) (int, bool) {
	switch mode {
	case domain.ModeMeaningTitle:
		return titleLenCap, true
	case domain.ModeExample:
		return exampleLenCap, true
	case domain.ModeDefinition:
		return definitionLenCap, true
	}
	return 0, false
}

func containsControlWhitespace(s string) bool {
	return strings.ContainsAny(s, "\n\t\r")
}

func containsForbiddenPlaceholder(s string) bool {
	for _, ph := range forbiddenPlaceholders {
		if strings.Contains(s, ph) {
			return true
		}
	}
	return false
}

func digitRatio(s string) float64 {
	return runeClassRatio(s, unicode.IsDigit)
}

func symbolRatio(s string) float64 {
	return runeClassRatio(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r)
	})
}

func runeClassRatio(s string, class func(rune) bool) float64 {
	total := 0
	matched := 0
	for _, r := range s {
		total++
		if class(r) {
			matched++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(matched) / float64(total)
}

// confidenceBucket maps a raw suggestion score to the fixed confidence
// buckets from §4.I step 6.
func confidenceBucket(score float64) float64 {
	switch {
	case score >= 2.0:
		return 0.90
	case score >= 1.6:
		return 0.80
	case score >= 1.2:
		return 0.70
	default:
		return 0.60
	}
}

func filterAgainstExistingRules(candidates []gatedCandidate, existing map[string]bool) []gatedCandidate {
	var out []gatedCandidate
	for _, c := range candidates {
		key := string(domain.NormalizeRuleMode(c.mode)) + "\x00" + c.from
		if existing[key] {
			continue
		}
		out = append(out, c)
	}
	return out
}

func sortGatedCandidates(candidates []gatedCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.mode != b.mode {
			return a.mode < b.mode
		}
		if a.from != b.from {
			return a.from < b.from
		}
		return a.to < b.to
	})
}

func (m *Miner) existingRuleKeys(ctx context.Context) (map[string]bool, error) {
	rows, err := m.pool.Query(ctx, `SELECT COALESCE(mode_code, ''), from_text FROM rewrite_rules WHERE enabled`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var mode, from string
		if err := rows.Scan(&mode, &from); err != nil {
			return nil, err
		}
		out[mode+"\x00"+from] = true
	}
	return out, rows.Err()
}

func (m *Miner) upsertCandidate(ctx context.Context, sourceCode string, c gatedCandidate) error {
	q := postgres.QuerierFromCtx(ctx, m.pool)
	_, err := q.Exec(ctx,
		`INSERT INTO rewrite_map_candidates
		   (source_code, mode, from_text, to_text, suggested_count, avg_confidence_score, status, first_seen_utc, last_seen_utc)
		 VALUES ($1, $2, $3, $4, 1, $5, 'Pending', now(), now())
		 ON CONFLICT (source_code, mode, from_text, to_text) DO UPDATE SET
		   suggested_count = rewrite_map_candidates.suggested_count + 1,
		   avg_confidence_score = (rewrite_map_candidates.avg_confidence_score * rewrite_map_candidates.suggested_count + EXCLUDED.avg_confidence_score)
		                          / (rewrite_map_candidates.suggested_count + 1),
		   last_seen_utc = now()
		 WHERE rewrite_map_candidates.status = 'Pending'`,
		sourceCode, string(c.mode), c.from, c.to, c.confidence,
	)
	return err
}
