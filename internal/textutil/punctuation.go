package textutil

import (
	"regexp"
	"strings"
)

var (
	reRepeatedBang    = regexp.MustCompile(`!{2,}`)
	reRepeatedQuery   = regexp.MustCompile(`\?{2,}`)
	reRepeatedComma   = regexp.MustCompile(`,{2,}`)
	reThreeDots       = regexp.MustCompile(`\.{3,}`)
	reSpaceBeforePunc = regexp.MustCompile(`\s+([,.!?;:])`)
	reNoSpaceAfter    = regexp.MustCompile(`([,.!?;:])([^\s"'”’)\]\x60])`)
	reMultiSpace      = regexp.MustCompile(`[ \t]{2,}`)
	reDashRun         = regexp.MustCompile(`-{2,}`)
)

// NormalizePunctuation applies a fixed, deterministic rewrite sequence to
// punctuation: it collapses repeated terminal punctuation, standardizes the
// ellipsis, removes space before and enforces a single space after
// sentence punctuation, collapses dash runs to an em dash, and squashes
// incidental multi-space runs. Protected spans (see Protect) — version
// numbers, abbreviations, decimals — are masked before the rewrite and
// restored after, so the punctuation inside them is never touched.
func NormalizePunctuation(text string) string {
	protected := Protect(text)
	s := protected.Text

	s = reThreeDots.ReplaceAllString(s, "…")
	s = reRepeatedBang.ReplaceAllString(s, "!")
	s = reRepeatedQuery.ReplaceAllString(s, "?")
	s = reRepeatedComma.ReplaceAllString(s, ",")
	s = reDashRun.ReplaceAllString(s, "—")
	s = reSpaceBeforePunc.ReplaceAllString(s, "$1")
	s = reNoSpaceAfter.ReplaceAllString(s, "$1 $2")
	s = reMultiSpace.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	return Restore(s, protected.Map)
}
