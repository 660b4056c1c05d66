package textutil

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// MaxProtectedTokens is the maximum number of placeholders assigned per
// input, per §4.A.
const MaxProtectedTokens = 200

// protectedPattern is one entry in the pattern list used by Protect.
type protectedPattern struct {
	name string
	re   *regexp.Regexp
}

// protectedPatterns is the fixed list of substrings that must survive
// normalization unchanged, with more specific patterns (dotted tech
// acronyms, versioned runtimes) listed before generic ones (bare numbers,
// single letters). The list order does not decide overlaps: Protect keeps
// the earliest-starting match and, among matches starting at the same
// offset, the longest.
var protectedPatterns = []protectedPattern{
	{"dotnet-core", regexp.MustCompile(`\.NET(?: Core| Framework| Standard)?\b`)},
	{"email", regexp.MustCompile(`\b[[:alnum:]._%+\-]+@[[:alnum:].\-]+\.[[:alpha:]]{2,}\b`)},
	{"url", regexp.MustCompile(`\bhttps?://[^\s)]+`)},
	{"ip", regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)},
	{"version", regexp.MustCompile(`\bv?\d+\.\d+(?:\.\d+)*\b`)},
	{"date", regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b|\b\d{1,2}/\d{1,2}/\d{2,4}\b`)},
	{"time", regexp.MustCompile(`\b\d{1,2}:\d{2}(?::\d{2})?\s?(?:[AaPp][Mm])?\b`)},
	{"scientific", regexp.MustCompile(`\b\d+(?:\.\d+)?[eE][+\-]?\d+\b`)},
	{"phone", regexp.MustCompile(`\b\+?\d{1,3}[\s.\-]?\(?\d{2,4}\)?[\s.\-]?\d{3}[\s.\-]?\d{2,4}\b`)},
	{"vin", regexp.MustCompile(`\b[A-HJ-NPR-Z0-9]{17}\b`)},
	{"currency", regexp.MustCompile(`[$€£¥]\s?\d+(?:[.,]\d+)*`)},
	{"percentage", regexp.MustCompile(`\b\d+(?:\.\d+)?%`)},
	{"fraction", regexp.MustCompile(`\b\d+/\d+\b`)},
	{"ordinal", regexp.MustCompile(`\b\d+(?:st|nd|rd|th)\b`)},
	{"unit", regexp.MustCompile(`\b\d+(?:\.\d+)?\s?(?:kg|km|cm|mm|mg|ml|lb|oz|ft|in|mph|kmh|kWh|GB|MB|KB|TB)\b`)},
	{"file-ext", regexp.MustCompile(`\b[\w\-]+\.(?:go|py|js|ts|java|rb|rs|cpp|c|h|json|yaml|yml|toml|md|txt|csv|pdf)\b`)},
	{"chem", regexp.MustCompile(`\b[A-Z][a-z]?\d*(?:[A-Z][a-z]?\d*){1,}\b`)},
	{"abbrev-dotted", regexp.MustCompile(`\b[A-Za-z](?:\.[A-Za-z])+\.?`)},
	{"abbrev-eg", regexp.MustCompile(`\b(?:e\.g\.|i\.e\.|etc\.|vs\.|Mr\.|Mrs\.|Ms\.|Dr\.|Jr\.|Sr\.|St\.|Prof\.|Ph\.D\.)`)},
	{"acronym", regexp.MustCompile(`\b[A-Z]{2,}\b`)},
	{"roman", regexp.MustCompile(`\b(?:[XIVLCDM]{2,})\b`)},
}

// placeholder formats a protected-token placeholder for slot i (1-based).
func placeholder(i int) string {
	return fmt.Sprintf("⟦PT%06d⟧", i)
}

// ProtectResult is the outcome of Protect.
type ProtectResult struct {
	Text string
	Map  map[string]string // placeholder -> original substring
}

// span is a half-open [start, end) match in byte offsets.
type span struct {
	start, end int
	text       string
}

// Protect replaces runs matched by the prioritized pattern list with opaque
// placeholders, left-to-right, at most MaxProtectedTokens per input, never
// overlapping. On any failure it returns the input unchanged with an empty
// map — it never panics or returns an error.
func Protect(text string) (result ProtectResult) {
	defer func() {
		if recover() != nil {
			result = ProtectResult{Text: text, Map: map[string]string{}}
		}
	}()

	var spans []span
	for _, p := range protectedPatterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			spans = append(spans, span{start: loc[0], end: loc[1], text: text[loc[0]:loc[1]]})
		}
	}

	// Resolve overlaps: start-ascending, length-descending, so the first
	// (longest, earliest) match at any position wins.
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return (spans[i].end - spans[i].start) > (spans[j].end - spans[j].start)
	})

	var chosen []span
	lastEnd := -1
	for _, s := range spans {
		if s.start < lastEnd {
			continue // overlaps previously chosen span
		}
		chosen = append(chosen, s)
		lastEnd = s.end
		if len(chosen) >= MaxProtectedTokens {
			break
		}
	}

	if len(chosen) == 0 {
		return ProtectResult{Text: text, Map: map[string]string{}}
	}

	m := make(map[string]string, len(chosen))
	var b []byte
	cursor := 0
	for i, s := range chosen {
		ph := placeholder(i + 1)
		b = append(b, text[cursor:s.start]...)
		b = append(b, ph...)
		m[ph] = s.text
		cursor = s.end
	}
	b = append(b, text[cursor:]...)

	return ProtectResult{Text: string(b), Map: m}
}

// Restore replaces placeholders in text back to their original substrings,
// using m (as returned by Protect). Placeholders are fixed-width and never
// nest, so a single literal pass is sufficient.
func Restore(text string, m map[string]string) string {
	if len(m) == 0 {
		return text
	}
	rep := make([]string, 0, len(m)*2)
	for ph, original := range m {
		rep = append(rep, ph, original)
	}
	return strings.NewReplacer(rep...).Replace(text)
}
