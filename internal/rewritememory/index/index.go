// Package index builds and incrementally maintains the full-text index of
// (original, enhanced) text pairs that the suggestion engine searches.
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/heartmarshall/dictimport/internal/domain"
	"github.com/heartmarshall/dictimport/internal/textutil"
)

// parseNotes unmarshals the ai_notes_json blob, tolerating blank or
// malformed input by returning the zero value — the index builder must
// never fail a whole run over one row's unparsable notes.
func parseNotes(raw string) domain.AiNotes {
	var notes domain.AiNotes
	if strings.TrimSpace(raw) == "" {
		return notes
	}
	_ = json.Unmarshal([]byte(raw), &notes)
	return notes
}

const (
	maxTextLen          = 800
	maxExamplesPerRow   = 20
	defaultTake         = 500
	minTake             = 1
	maxTake             = 5000
	stateFileName       = "_index_state.json"
)

// document is the flat shape stored in the bleve index for one rewrite tuple.
type document struct {
	SourceCode       string
	Mode             string
	OriginalText     string
	OriginalTextHash string
	EnhancedText     string
}

// buildMapping constructs the index document mapping described in §4.G:
// SourceCode/Mode/OriginalTextHash are unanalyzed keyword fields,
// OriginalText is analyzed for full-text search, EnhancedText is stored
// only.
func buildMapping() mapping.IndexMapping {
	keyword := bleve.NewTextFieldMapping()
	keyword.Analyzer = "keyword"

	analyzed := bleve.NewTextFieldMapping()
	analyzed.Analyzer = "standard"

	stored := bleve.NewTextFieldMapping()
	stored.Index = false
	stored.Store = true

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("SourceCode", keyword)
	doc.AddFieldMappingsAt("Mode", keyword)
	doc.AddFieldMappingsAt("OriginalText", analyzed)
	doc.AddFieldMappingsAt("OriginalTextHash", keyword)
	doc.AddFieldMappingsAt("EnhancedText", stored)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	return im
}

// Open opens the bleve index at path, creating it (and its parent
// directory) with the rewrite-memory document mapping if it does not yet
// exist.
func Open(path string) (bleve.Index, error) {
	if idx, err := bleve.Open(path); err == nil {
		return idx, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("index: create parent dir: %w", err)
	}
	return bleve.New(path, buildMapping())
}

// NewMemOnly builds an in-memory index with the rewrite-memory document
// mapping, for tests and other ephemeral uses that don't need a file-backed
// index.
func NewMemOnly() (bleve.Index, error) {
	return bleve.NewMemOnly(buildMapping())
}

// auditSink receives a durable copy of every tuple fed into the bleve
// index, so the index can be rebuilt from Postgres without replaying AI
// annotations. Satisfied by *batcher.Batcher.
type auditSink interface {
	Enqueue(ctx context.Context, key, sql string, paramsPerOp int, args ...any)
}

const auditInsertKey = "lucene_suggestion_index_row_insert"

// Builder incrementally feeds newly annotated definitions into the index.
type Builder struct {
	pool  *pgxpool.Pool
	idx   bleve.Index
	state *stateStore
	audit auditSink
}

// New constructs a Builder backed by the bleve index at indexPath and a
// JSON cursor state file alongside it. audit may be nil, in which case
// indexed tuples are not mirrored to Postgres.
func New(pool *pgxpool.Pool, idx bleve.Index, indexPath string, audit auditSink) *Builder {
	return &Builder{
		pool:  pool,
		idx:   idx,
		state: newStateStore(filepath.Join(filepath.Dir(indexPath), stateFileName)),
		audit: audit,
	}
}

type annotationRow struct {
	cursor       int64
	sourceCode   string
	originalDef  string
	enhancedDef  string
	notesJSON    string
	meaningTitle string
}

// Build ingests annotations for sourceCode newer than the persisted
// high-water mark, up to take rows (a take below 1 means the default of
// 500; larger values are capped at 5000), and writes their derived index
// tuples. It returns the number of documents written.
func (b *Builder) Build(ctx context.Context, sourceCode string, take int) (int, error) {
	take = clampTake(take)

	st, err := b.state.load()
	if err != nil {
		return 0, fmt.Errorf("index: load state: %w", err)
	}
	cursor := st.cursorFor(sourceCode)

	rows, err := b.fetchAnnotations(ctx, sourceCode, cursor, take)
	if err != nil {
		return 0, fmt.Errorf("index: fetch annotations: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	var docs []document
	var maxCursor int64
	for _, r := range rows {
		docs = append(docs, deriveTuples(r)...)
		if r.cursor > maxCursor {
			maxCursor = r.cursor
		}
	}

	sort.Slice(docs, func(i, j int) bool {
		a, c := docs[i], docs[j]
		if a.SourceCode != c.SourceCode {
			return a.SourceCode < c.SourceCode
		}
		if a.Mode != c.Mode {
			return a.Mode < c.Mode
		}
		if a.OriginalText != c.OriginalText {
			return a.OriginalText < c.OriginalText
		}
		return a.EnhancedText < c.EnhancedText
	})

	batch := b.idx.NewBatch()
	for _, d := range docs {
		id := fmt.Sprintf("%s|%s|%s", d.SourceCode, d.Mode, d.OriginalTextHash)
		if err := batch.Index(id, d); err != nil {
			return 0, fmt.Errorf("index: add to batch: %w", err)
		}
	}
	if err := b.idx.Batch(batch); err != nil {
		return 0, fmt.Errorf("index: flush batch: %w", err)
	}

	b.mirrorToAudit(ctx, docs)

	if err := b.state.save(sourceCode, maxCursor); err != nil {
		return 0, fmt.Errorf("index: save state: %w", err)
	}

	return len(docs), nil
}

// mirrorToAudit enqueues a durable copy of each indexed tuple into
// lucene_suggestion_index_rows so the bleve index can be rebuilt from
// Postgres alone if its on-disk files are ever lost.
func (b *Builder) mirrorToAudit(ctx context.Context, docs []document) {
	if b.audit == nil {
		return
	}
	const insertSQL = `
		INSERT INTO lucene_suggestion_index_rows
		  (source_code, mode, original_text, enhanced_text, original_text_hash)
		VALUES ($1, $2, $3, $4, $5)`
	for _, d := range docs {
		b.audit.Enqueue(ctx, auditInsertKey, insertSQL, 5, d.SourceCode, d.Mode, d.OriginalText, d.EnhancedText, d.OriginalTextHash)
	}
}

func (b *Builder) fetchAnnotations(ctx context.Context, sourceCode string, afterCursor int64, take int) ([]annotationRow, error) {
	rows, err := b.pool.Query(ctx,
		`SELECT a.id, a.source_code, a.original_definition, a.ai_enhanced_definition, a.ai_notes_json, pd.meaning_title
		 FROM ai_annotations a
		 JOIN parsed_definitions pd ON pd.id = a.parsed_definition_id
		 WHERE a.source_code = $1 AND a.id > $2
		 ORDER BY a.id
		 LIMIT $3`,
		sourceCode, afterCursor, take,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []annotationRow
	for rows.Next() {
		var r annotationRow
		if err := rows.Scan(&r.cursor, &r.sourceCode, &r.originalDef, &r.enhancedDef, &r.notesJSON, &r.meaningTitle); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// deriveTuples emits up to one definition tuple, one meaning-title tuple,
// and up to maxExamplesPerRow example tuples for a single annotation, per
// §4.G step 3.
func deriveTuples(r annotationRow) []document {
	var docs []document

	if orig, enh := normalizeForIndex(r.originalDef), normalizeForIndex(r.enhancedDef); orig != "" && orig != enh {
		docs = append(docs, document{
			SourceCode:       r.sourceCode,
			Mode:             string(domain.ModeDefinition),
			OriginalText:     orig,
			OriginalTextHash: textutil.Hash(orig),
			EnhancedText:     enh,
		})
	}

	notes := parseNotes(r.notesJSON)

	titleOriginal := notes.OriginalTitle
	if titleOriginal == "" {
		titleOriginal = r.meaningTitle
	}
	if orig, enh := normalizeForIndex(titleOriginal), normalizeForIndex(notes.Title); orig != "" && enh != "" && orig != enh {
		docs = append(docs, document{
			SourceCode:       r.sourceCode,
			Mode:             string(domain.ModeMeaningTitle),
			OriginalText:     orig,
			OriginalTextHash: textutil.Hash(orig),
			EnhancedText:     enh,
		})
	}

	examples := notes.ExampleRewrites
	if len(examples) > maxExamplesPerRow {
		examples = examples[:maxExamplesPerRow]
	}
	for _, ex := range examples {
		orig, enh := normalizeForIndex(ex.Original), normalizeForIndex(ex.Enhanced)
		if orig == "" || enh == "" || orig == enh {
			continue
		}
		docs = append(docs, document{
			SourceCode:       r.sourceCode,
			Mode:             string(domain.ModeExample),
			OriginalText:     orig,
			OriginalTextHash: textutil.Hash(orig),
			EnhancedText:     enh,
		})
	}

	return docs
}

func normalizeForIndex(s string) string {
	s = strings.TrimSpace(s)
	s = domain.CollapseWhitespace(s)
	return domain.TruncateRunes(s, maxTextLen)
}

func clampTake(take int) int {
	if take < minTake {
		return defaultTake
	}
	if take > maxTake {
		return maxTake
	}
	return take
}
