package textutil

import (
	"unicode"

	"golang.org/x/text/unicode/rangetable"
)

// latinish is the merged range table of scripts treated as compatible with
// English source text: Latin letters plus the marks, numbers, and
// punctuation that commonly appear alongside them. Anything outside this
// table is evidence of non-English content.
var latinish = rangetable.Merge(
	unicode.Latin,
	unicode.Common,
	unicode.Mn, // combining marks (diacritics)
	unicode.Nd, // decimal digits
)

// scriptBuckets lists the script families this classifier recognizes.
// DetectLanguageCode picks the family that owns the most non-Latinish
// runes; on a tie, the family listed first wins.
var scriptBuckets = []struct {
	code  string
	table *unicode.RangeTable
}{
	{"zh", unicode.Han},
	{"ja", rangetable.Merge(unicode.Hiragana, unicode.Katakana)},
	{"ko", unicode.Hangul},
	{"ru", unicode.Cyrillic},
	{"ar", unicode.Arabic},
	{"he", unicode.Hebrew},
	{"el", unicode.Greek},
	{"hi", unicode.Devanagari},
	{"th", unicode.Thai},
}

// ContainsNonEnglish reports whether s contains any rune outside the
// Latin-compatible script set, ignoring whitespace and punctuation (any
// Unicode punctuation rune, not only ASCII).
func ContainsNonEnglish(s string) bool {
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			continue
		}
		if !unicode.In(r, latinish) {
			return true
		}
	}
	return false
}

// DetectLanguageCode buckets s into a coarse non-English script family
// (e.g. "zh", "ru", "ar"), returning "und" when s is Latin-compatible or
// its script doesn't match any recognized bucket. It picks the bucket that
// owns the most runes in s, so mixed text is classified by its dominant
// foreign script.
func DetectLanguageCode(s string) string {
	counts := make(map[string]int, len(scriptBuckets))
	for _, r := range s {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.In(r, latinish) {
			continue
		}
		for _, b := range scriptBuckets {
			if unicode.In(r, b.table) {
				counts[b.code]++
				break
			}
		}
	}

	best, bestCount := "und", 0
	for _, b := range scriptBuckets {
		if c := counts[b.code]; c > bestCount {
			best, bestCount = b.code, c
		}
	}
	return best
}
