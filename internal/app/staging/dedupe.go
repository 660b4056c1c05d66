package staging

import (
	"strconv"
	"strings"

	"github.com/heartmarshall/dictimport/internal/domain"
)

// maxDedupeKeyLen bounds the definition portion of the within-batch dedupe
// key so a pathologically long definition cannot blow up memory.
const maxDedupeKeyLen = 512

// DedupeWithinBatch removes duplicate rows sharing the same
// (sourceCode, senseNumber, normalizedWord, definition) key, case-folded and
// whitespace-collapsed, preserving the first occurrence's order.
func DedupeWithinBatch(rows []domain.StagingRow) []domain.StagingRow {
	seen := make(map[string]struct{}, len(rows))
	out := make([]domain.StagingRow, 0, len(rows))

	for _, r := range rows {
		key := dedupeKey(r)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}

	return out
}

func dedupeKey(r domain.StagingRow) string {
	def := domain.CollapseWhitespace(strings.ToLower(r.Definition))
	def = domain.TruncateRunes(def, maxDedupeKeyLen)

	var b strings.Builder
	b.WriteString(strings.ToLower(r.SourceCode))
	b.WriteByte('\x00')
	b.WriteString(strconv.Itoa(r.SenseNumberKey()))
	b.WriteByte('\x00')
	b.WriteString(strings.ToLower(r.NormalizedWord))
	b.WriteByte('\x00')
	b.WriteString(def)
	return b.String()
}
