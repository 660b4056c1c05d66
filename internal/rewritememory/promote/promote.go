// Package promote turns approved rewrite-map candidates into authoritative
// rewrite rules applied at parse time.
package promote

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/dictimport/internal/adapter/postgres"
	"github.com/heartmarshall/dictimport/internal/domain"
)

const (
	defaultTake = 200
	maxTake     = 5000
	maxTextLen  = 400
	notesMaxLen = 200
)

// suggestedCount boost tiers: count >= threshold -> priority delta.
var countBoosts = []struct {
	threshold int
	delta     int
}{
	{50, -30},
	{10, -20},
	{3, -10},
}

// avgConfidenceScore boost tiers: confidence >= threshold -> priority delta.
var confidenceBoosts = []struct {
	threshold float64
	delta     int
}{
	{0.90, -30},
	{0.75, -20},
	{0.60, -10},
}

// Promoter promotes Approved candidates into rewrite_rules.
type Promoter struct {
	pool *pgxpool.Pool
	txm  *postgres.TxManager
	log  *slog.Logger
}

// New constructs a Promoter.
func New(pool *pgxpool.Pool, txm *postgres.TxManager, log *slog.Logger) *Promoter {
	return &Promoter{pool: pool, txm: txm, log: log}
}

type approvedCandidate struct {
	id                 int64
	mode               domain.RewriteMode
	fromText           string
	toText             string
	suggestedCount     int
	avgConfidenceScore float64
}

// Promote pulls up to take Approved candidates for sourceCode, upserts each
// as a rewrite rule, and marks the source candidates Promoted. approvedBy
// is recorded on the candidate row and folded into the rule's notes.
func (p *Promoter) Promote(ctx context.Context, sourceCode, approvedBy string, take int) (promoted int, err error) {
	if take <= 0 {
		take = defaultTake
	}
	if take > maxTake {
		take = maxTake
	}

	candidates, err := p.loadApproved(ctx, sourceCode, take)
	if err != nil {
		return 0, fmt.Errorf("promote: load approved candidates: %w", err)
	}

	for _, c := range candidates {
		from := strings.TrimSpace(c.fromText)
		to := strings.TrimSpace(c.toText)
		if from == "" || to == "" || from == to {
			continue
		}
		if len(from) > maxTextLen || len(to) > maxTextLen {
			continue
		}

		priority := priorityFor(c.suggestedCount, c.avgConfidenceScore)
		notes := formatNotes(approvedBy, sourceCode)

		err := p.upsertRule(ctx, c, from, to, priority, notes, approvedBy)
		if err != nil {
			p.log.Error("promote: upsert rule failed",
				slog.Int64("candidate_id", c.id), slog.String("error", err.Error()))
			continue
		}
		promoted++
	}

	return promoted, nil
}

func (p *Promoter) loadApproved(ctx context.Context, sourceCode string, take int) ([]approvedCandidate, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, mode, from_text, to_text, suggested_count, avg_confidence_score
		 FROM rewrite_map_candidates
		 WHERE source_code = $1 AND status = 'Approved'
		 ORDER BY id
		 LIMIT $2`,
		sourceCode, take,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []approvedCandidate
	for rows.Next() {
		var c approvedCandidate
		var mode string
		if err := rows.Scan(&c.id, &mode, &c.fromText, &c.toText, &c.suggestedCount, &c.avgConfidenceScore); err != nil {
			return nil, err
		}
		c.mode = domain.RewriteMode(mode)
		out = append(out, c)
	}
	return out, rows.Err()
}

// priorityFor computes a rule's priority per §4.J step 3: base 500, reduced
// by the best-matching suggestedCount and avgConfidenceScore boost tiers,
// clamped to [MinRulePriority, MaxRulePriority].
func priorityFor(suggestedCount int, avgConfidence float64) int {
	priority := domain.DefaultRulePriority
	for _, b := range countBoosts {
		if suggestedCount >= b.threshold {
			priority += b.delta
			break
		}
	}
	for _, b := range confidenceBoosts {
		if avgConfidence >= b.threshold {
			priority += b.delta
			break
		}
	}
	return domain.ClampPriority(priority)
}

// formatNotes builds the rule's provenance note, capped at notesMaxLen
// (well under the rewrite_rules.notes column's own 500-char limit).
func formatNotes(approvedBy, sourceCode string) string {
	note := fmt.Sprintf("PROMOTED_BY=%s;SRC=%s;UTC=%s", approvedBy, sourceCode, time.Now().UTC().Format("2006-01-02"))
	return domain.TruncateRunes(note, notesMaxLen)
}

func (p *Promoter) upsertRule(ctx context.Context, c approvedCandidate, from, to string, priority int, notes, approvedBy string) error {
	return p.txm.RunInTx(ctx, func(ctx context.Context) error {
		q := postgres.QuerierFromCtx(ctx, p.pool)
		ruleMode := domain.NormalizeRuleMode(c.mode)

		_, err := q.Exec(ctx,
			`INSERT INTO rewrite_rules (from_text, to_text, mode_code, is_whole_word, is_regex, priority, enabled, notes)
			 VALUES ($1, $2, $3, true, false, $4, true, $5)
			 ON CONFLICT (COALESCE(mode_code, ''), from_text, is_whole_word, is_regex) DO UPDATE SET
			   to_text = EXCLUDED.to_text,
			   priority = EXCLUDED.priority,
			   enabled = true,
			   notes = EXCLUDED.notes`,
			from, to, string(ruleMode), priority, notes,
		)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		_, err = q.Exec(ctx,
			`UPDATE rewrite_map_candidates
			 SET status = 'Promoted', approved_by = $1, approved_utc = $2
			 WHERE id = $3`,
			approvedBy, now, c.id,
		)
		return err
	})
}
