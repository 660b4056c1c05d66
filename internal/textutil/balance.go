package textutil

import "strings"

type bracketPair struct{ open, close rune }

var bracketPairs = []bracketPair{
	{'(', ')'},
	{'[', ']'},
	{'{', '}'},
}

var curlyQuotePairs = []bracketPair{
	{'“', '”'},
	{'‘', '’'},
}

// BalanceResult is the outcome of a balance operation: the repaired text,
// whether a repair was made, and (when Changed) a short description of
// which defect was fixed.
type BalanceResult struct {
	Text    string
	Changed bool
	Reason  string
}

type pairDefect struct {
	close       rune
	missingOpen bool // true: stray closer found, strip it; false: missing closer, append it
}

// detectPairDefect scans pairs for a single exactly-one imbalance across
// all of them combined; more than one combined imbalance (or more than one
// missing/stray rune for a single kind) is ambiguous and reported as no
// defect.
func detectPairDefect(text string, pairs []bracketPair) (pairDefect, bool) {
	var defects []pairDefect
	for _, p := range pairs {
		opens := strings.Count(text, string(p.open))
		closes := strings.Count(text, string(p.close))
		switch {
		case opens == closes:
			// balanced, nothing to do
		case opens == closes+1:
			defects = append(defects, pairDefect{close: p.close, missingOpen: false})
		case closes == opens+1:
			defects = append(defects, pairDefect{close: p.close, missingOpen: true})
		default:
			// off by more than one: ambiguous, bail out of the whole
			// operation.
			return pairDefect{}, false
		}
	}
	if len(defects) != 1 {
		return pairDefect{}, false
	}
	return defects[0], true
}

// applyPairDefect repairs text per d: appends the missing closer, or strips
// the trailing stray closer.
func applyPairDefect(text string, d pairDefect) (string, string) {
	closeStr := string(d.close)
	if d.missingOpen {
		idx := strings.LastIndex(text, closeStr)
		return text[:idx] + text[idx+len(closeStr):], "stray closing " + closeStr
	}
	return text + closeStr, "missing closing " + closeStr
}

// BalanceBrackets repairs text that is short exactly one closing or one
// opening bracket for a single bracket kind ((), [], {}), by appending the
// missing closer or stripping a trailing stray closer. Text with zero
// imbalances, or more than one imbalance (across all kinds combined), is
// returned unchanged: the fix is only confident when there is a single,
// unambiguous defect.
func BalanceBrackets(text string) BalanceResult {
	d, ok := detectPairDefect(text, bracketPairs)
	if !ok {
		return BalanceResult{Text: text}
	}
	fixed, reason := applyPairDefect(text, d)
	return BalanceResult{Text: fixed, Changed: true, Reason: reason}
}

// BalanceQuotes repairs a single imbalance among curly quote pairs, the
// straight double quote, or the apostrophe used as a quote mark, the same
// way BalanceBrackets does for bracket pairs.
func BalanceQuotes(text string) BalanceResult {
	if d, ok := detectPairDefect(text, curlyQuotePairs); ok {
		fixed, reason := applyPairDefect(text, d)
		return BalanceResult{Text: fixed, Changed: true, Reason: reason}
	}

	if doubles := strings.Count(text, `"`); doubles%2 == 1 {
		return BalanceResult{Text: text + `"`, Changed: true, Reason: `missing closing "`}
	}

	// A single apostrophe used for contractions (don't, it's) is common
	// and not a quote defect; only treat an odd count as a defect when the
	// apostrophe appears at a word boundary consistent with quoting, i.e.
	// surrounded by whitespace or string edges on the opening side.
	if singles := strings.Count(text, `'`); singles%2 == 1 && looksLikeOpenQuote(text) {
		return BalanceResult{Text: text + `'`, Changed: true, Reason: "missing closing '"}
	}

	return BalanceResult{Text: text}
}

func looksLikeOpenQuote(text string) bool {
	idx := strings.IndexRune(text, '\'')
	if idx < 0 {
		return false
	}
	if idx == 0 {
		return true
	}
	prev := text[idx-1]
	return prev == ' ' || prev == '\t' || prev == '\n' || prev == '('
}
