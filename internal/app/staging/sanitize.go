package staging

import (
	"strings"

	"github.com/heartmarshall/dictimport/internal/domain"
	"github.com/heartmarshall/dictimport/internal/textutil"
)

// Sanitize converts raw entries into staging rows: trims and truncates every
// string field to its column bound (the raw fragment is truncated but not
// trimmed), coerces out-of-range timestamps, defaults
// a blank source code, computes word/definition hashes, and drops rows whose
// word or definition is blank after trimming or whose computed hash has the
// wrong length. Dropped rows are simply omitted — data-shape problems are
// never propagated (spec.md §7 class 3).
func Sanitize(entries []domain.RawEntry) []domain.StagingRow {
	rows := make([]domain.StagingRow, 0, len(entries))

	for _, e := range entries {
		word := strings.TrimSpace(e.Word)
		definition := strings.TrimSpace(e.Definition)
		if word == "" || definition == "" {
			continue
		}

		definition = repairText(definition)
		word = domain.TruncateRunes(word, domain.MaxWordLen)
		definition = domain.TruncateRunes(definition, domain.MaxDefinitionLen)
		normalizedWord := domain.TruncateRunes(domain.NormalizeText(e.NormalizedWord), domain.MaxWordLen)
		if normalizedWord == "" {
			normalizedWord = domain.NormalizeText(word)
		}

		pos := e.PartOfSpeech
		if pos != nil {
			v := domain.TruncateRunes(strings.TrimSpace(*pos), domain.MaxPOSLen)
			pos = &v
		}

		etymology := e.Etymology
		if etymology != nil {
			v := domain.TruncateRunes(repairText(strings.TrimSpace(*etymology)), domain.MaxEtymologyLen)
			etymology = &v
		}

		rawFragment := e.RawFragment
		if rawFragment != nil {
			v := domain.TruncateRunes(*rawFragment, domain.MaxRawFragmentLen)
			rawFragment = &v
		}

		sourceCode := domain.NormalizeSourceCode(e.SourceCode)

		wordHash := textutil.HashBytes(word)
		definitionHash := textutil.HashBytes(definition)
		if len(wordHash) != 32 || len(definitionHash) != 32 {
			continue
		}

		rows = append(rows, domain.StagingRow{
			Word:           word,
			NormalizedWord: normalizedWord,
			PartOfSpeech:   pos,
			Definition:     definition,
			Etymology:      etymology,
			SenseNumber:    e.SenseNumber,
			RawFragment:    rawFragment,
			SourceCode:     sourceCode,
			CreatedUtc:     domain.CoerceCreatedUtc(e.CreatedUtc),
			WordHash:       wordHash,
			DefinitionHash: definitionHash,
		})
	}

	return rows
}

// repairText runs a raw free-text field through the shared bracket/quote
// balancer and punctuation normalizer before it is persisted, so malformed
// source dumps (a dangling "(", a stray trailing quote, doubled punctuation)
// never reach storage as-is.
func repairText(text string) string {
	text = textutil.BalanceBrackets(text).Text
	text = textutil.BalanceQuotes(text).Text
	return textutil.NormalizePunctuation(text)
}
