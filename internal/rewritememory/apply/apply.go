// Package apply applies promoted rewrite rules to text at parse/query
// time and tracks how often each rule fires.
package apply

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/dictimport/internal/adapter/postgres/batcher"
	"github.com/heartmarshall/dictimport/internal/domain"
	"github.com/heartmarshall/dictimport/internal/textutil"
)

// rule is a compiled, ready-to-apply rewrite rule.
type rule struct {
	id          int64
	fromText    string
	toText      string
	modeCode    *domain.RewriteMode
	isWholeWord bool
	isRegex     bool
	priority    int
	wholeWordRe *regexp.Regexp
	userRe      *regexp.Regexp
}

// ruleType names the kind of rule that produced a hit, for the aggregated
// telemetry counter.
func (r rule) ruleType() string {
	if r.isRegex {
		return "regex"
	}
	if r.isWholeWord {
		return "whole-word"
	}
	return "substring"
}

// Applier loads and applies the enabled rewrite rule set.
type Applier struct {
	pool    *pgxpool.Pool
	batcher *batcher.Batcher
	log     *slog.Logger

	mu    sync.Mutex
	rules []rule
}

// New constructs an Applier backed by pool for rule lookup and b for
// asynchronously recording rule-hit telemetry. Call LoadRules before the
// first Apply call and periodically thereafter to pick up newly promoted
// rules.
func New(pool *pgxpool.Pool, b *batcher.Batcher, log *slog.Logger) *Applier {
	return &Applier{pool: pool, batcher: b, log: log}
}

// LoadRules refreshes the in-memory compiled rule set from rewrite_rules,
// ordered per §4.K step 2: priority ascending, then longer fromText first,
// then fromText ascending, then id ascending.
func (a *Applier) LoadRules(ctx context.Context) error {
	rows, err := a.pool.Query(ctx,
		`SELECT id, from_text, to_text, mode_code, is_whole_word, is_regex, priority
		 FROM rewrite_rules WHERE enabled ORDER BY id`,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	var compiled []rule
	for rows.Next() {
		var r rule
		var modeCode *string
		if err := rows.Scan(&r.id, &r.fromText, &r.toText, &modeCode, &r.isWholeWord, &r.isRegex, &r.priority); err != nil {
			return err
		}
		if modeCode != nil {
			m := domain.RewriteMode(*modeCode)
			r.modeCode = &m
		}
		if r.isRegex {
			re, err := regexp.Compile(r.fromText)
			if err != nil {
				a.log.Error("apply: skipping rule with invalid regex", slog.Int64("rule_id", r.id), slog.String("error", err.Error()))
				continue
			}
			r.userRe = re
		} else if r.isWholeWord {
			re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(r.fromText) + `\b`)
			if err != nil {
				continue
			}
			r.wholeWordRe = re
		}
		compiled = append(compiled, r)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	sortRules(compiled)

	a.mu.Lock()
	a.rules = compiled
	a.mu.Unlock()
	return nil
}

// sortRules orders rules per §4.K step 2.
func sortRules(rules []rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		a, b := rules[i], rules[j]
		if a.priority != b.priority {
			return a.priority < b.priority
		}
		if len(a.fromText) != len(b.fromText) {
			return len(a.fromText) > len(b.fromText)
		}
		if a.fromText != b.fromText {
			return a.fromText < b.fromText
		}
		return a.id < b.id
	})
}

// Apply sequentially applies every enabled rule scoped to mode (rules with
// a nil ModeCode apply to every mode) to text, protecting numeric/technical
// tokens first so rules never corrupt them. It returns the rewritten text
// and enqueues a hit-count update for every rule that fired.
func (a *Applier) Apply(ctx context.Context, sourceCode string, mode domain.RewriteMode, text string) string {
	a.mu.Lock()
	rules := a.rules
	a.mu.Unlock()
	if len(rules) == 0 || strings.TrimSpace(text) == "" {
		return text
	}

	protected := textutil.Protect(text)
	out := protected.Text

	for _, r := range rules {
		if r.modeCode != nil && *r.modeCode != mode {
			continue
		}
		rewritten, hit := applyOne(r, out)
		if !hit {
			continue
		}
		out = rewritten
		a.recordHit(ctx, sourceCode, mode, r)
	}

	return textutil.Restore(out, protected.Map)
}

func applyOne(r rule, text string) (string, bool) {
	switch {
	case r.isRegex:
		if r.userRe == nil || !r.userRe.MatchString(text) {
			return text, false
		}
		return r.userRe.ReplaceAllString(text, r.toText), true
	case r.isWholeWord:
		if r.wholeWordRe == nil || !r.wholeWordRe.MatchString(text) {
			return text, false
		}
		return r.wholeWordRe.ReplaceAllString(text, r.toText), true
	default:
		if !strings.Contains(text, r.fromText) {
			return text, false
		}
		return strings.ReplaceAll(text, r.fromText, r.toText), true
	}
}

func (a *Applier) recordHit(ctx context.Context, sourceCode string, mode domain.RewriteMode, r rule) {
	if a.batcher == nil {
		return
	}
	now := time.Now().UTC()
	const upsertSQL = `
		INSERT INTO rewrite_rule_hits (source_code, mode, rule_type, rule_key, hit_count, first_hit_utc, last_hit_utc)
		VALUES ($1, $2, $3, $4, 1, $5, $5)
		ON CONFLICT (source_code, mode, rule_type, rule_key) DO UPDATE SET
		  hit_count = rewrite_rule_hits.hit_count + 1,
		  last_hit_utc = EXCLUDED.last_hit_utc`
	a.batcher.Enqueue(ctx, "rewrite_rule_hit_upsert", upsertSQL, 5, sourceCode, string(mode), r.ruleType(), r.fromText, now)
}
