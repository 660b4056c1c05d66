package textutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"
)

// tokenPreservationFileName and stopWordsFileName are the two sidecar
// config files TitleCaseRules.Reload searches for.
const (
	tokenPreservationFileName = "token-preservation-rules.json"
	stopWordsFileName         = "stopwords-core.json"
)

// TitleCaseRules is the process-wide, hot-reloadable title-case policy:
// words in stopWords are lowercased mid-title (unless first, last, or
// otherwise forced to capitalize), and words in preserveCase keep their
// exact casing verbatim (acronyms, proper nouns) regardless of position.
type TitleCaseRules struct {
	mu           sync.RWMutex
	stopWords    map[string]struct{}
	preserveCase map[string]string // lowercase key -> canonical casing
}

// rules is the single package-level instance every ToTitleCase call reads:
// a single initialized instance behind a read lock, reloadable at runtime.
var rules = newDefaultTitleCaseRules()

func newDefaultTitleCaseRules() *TitleCaseRules {
	r := &TitleCaseRules{
		stopWords:    make(map[string]struct{}, len(defaultStopWords())),
		preserveCase: make(map[string]string),
	}
	for _, w := range defaultStopWords() {
		r.stopWords[w] = struct{}{}
	}
	return r
}

func defaultPreserveWords() []string {
	return []string{"C#", ".NET", "iPhone", "iOS", "macOS", "iPad"}
}

func defaultStopWords() []string {
	return []string{
		"a", "an", "and", "as", "at", "but", "by", "for", "from", "if",
		"in", "into", "nor", "of", "on", "onto", "or", "over", "per",
		"so", "the", "to", "via", "vs", "with", "yet",
	}
}

type tokenPreservationFile struct {
	PreserveWords []string `json:"preserve_words"`
}

type stopWordsFile struct {
	StopWords []string `json:"stop_words"`
}

// searchDirs returns, in priority order, the directories Reload scans for
// the two sidecar config files: a per-user config directory, baseDir's
// domain/rewrite subdirectory, the working directory's domain/rewrite
// subdirectory, and finally the working directory itself.
func searchDirs(baseDir string) []string {
	var dirs []string
	if cfgDir, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(cfgDir, "DictionaryImporter"))
	}
	if baseDir != "" {
		dirs = append(dirs, filepath.Join(baseDir, "domain", "rewrite"))
	}
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, filepath.Join(cwd, "domain", "rewrite"))
	}
	dirs = append(dirs, ".")
	return dirs
}

// findOrCreate scans dirs in order for name; the first existing copy wins.
// If none of the directories already hold the file, it is written to dirs'
// first entry with defaultContent and that path is returned.
func findOrCreate(dirs []string, name string, defaultContent []byte) (string, error) {
	for _, dir := range dirs {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	dir := dirs[0]
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, defaultContent, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", err
	}
	return path, nil
}

// Reload rebuilds r from token-preservation-rules.json and
// stopwords-core.json, searching {AppData/DictionaryImporter/,
// {baseDir}/domain/rewrite/, cwd/domain/rewrite/, ./} for each in turn. A
// file missing from every directory is created, in the first directory of
// the search path, with built-in defaults. Concurrent calls to ToTitleCase
// always observe a complete, consistent policy — never a partially loaded
// one.
func (r *TitleCaseRules) Reload(baseDir string) error {
	dirs := searchDirs(baseDir)

	defaultPreserve, err := json.MarshalIndent(tokenPreservationFile{PreserveWords: defaultPreserveWords()}, "", "  ")
	if err != nil {
		return err
	}
	preservePath, err := findOrCreate(dirs, tokenPreservationFileName, defaultPreserve)
	if err != nil {
		return err
	}

	defaultStops, err := json.MarshalIndent(stopWordsFile{StopWords: defaultStopWords()}, "", "  ")
	if err != nil {
		return err
	}
	stopsPath, err := findOrCreate(dirs, stopWordsFileName, defaultStops)
	if err != nil {
		return err
	}

	preserveRaw, err := os.ReadFile(preservePath)
	if err != nil {
		return err
	}
	var pf tokenPreservationFile
	if err := json.Unmarshal(preserveRaw, &pf); err != nil {
		return err
	}

	stopsRaw, err := os.ReadFile(stopsPath)
	if err != nil {
		return err
	}
	var sf stopWordsFile
	if err := json.Unmarshal(stopsRaw, &sf); err != nil {
		return err
	}

	stopWords := make(map[string]struct{}, len(sf.StopWords))
	for _, w := range sf.StopWords {
		stopWords[strings.ToLower(w)] = struct{}{}
	}
	preserveCase := make(map[string]string, len(pf.PreserveWords))
	for _, w := range pf.PreserveWords {
		preserveCase[strings.ToLower(w)] = w
	}

	r.mu.Lock()
	r.stopWords = stopWords
	r.preserveCase = preserveCase
	r.mu.Unlock()
	return nil
}

// ReloadTitleCaseConfig reloads the package-level title-case policy from
// the sidecar config files found under baseDir's search path; see
// TitleCaseRules.Reload.
func ReloadTitleCaseConfig(baseDir string) error {
	return rules.Reload(baseDir)
}

// ToTitleCase renders text in title case: the first and last word are
// always capitalized, configured stop-words stay lowercase elsewhere, and
// configured preserve-words keep their exact canonical casing (e.g. "iOS",
// "McDonald's") regardless of position. Hyphenated words are title-cased
// per hyphen-separated segment.
func ToTitleCase(text string) string {
	rules.mu.RLock()
	stopWords := rules.stopWords
	preserveCase := rules.preserveCase
	rules.mu.RUnlock()

	words := strings.Fields(text)
	if len(words) == 0 {
		return text
	}

	for i, w := range words {
		words[i] = titleCaseWord(w, preserveCase, stopWords, i == 0 || i == len(words)-1)
	}
	return strings.Join(words, " ")
}

// titleCaseWord decides the casing of a single space-separated token,
// recursing per segment when w is hyphenated.
func titleCaseWord(w string, preserveCase map[string]string, stopWords map[string]struct{}, forceCapitalize bool) string {
	if strings.Contains(w, "-") {
		segments := strings.Split(w, "-")
		for i, seg := range segments {
			segments[i] = titleCaseWord(seg, preserveCase, stopWords, forceCapitalize || i == 0)
		}
		return strings.Join(segments, "-")
	}

	lower := strings.ToLower(w)
	if canonical, ok := preserveCase[lower]; ok {
		return canonical
	}
	if !forceCapitalize {
		if _, stop := stopWords[lower]; stop {
			return lower
		}
	}
	return capitalizeWord(w)
}

func capitalizeWord(w string) string {
	if w == "" {
		return w
	}
	r := []rune(w)
	r[0] = unicode.ToUpper(r[0])
	for i := 1; i < len(r); i++ {
		r[i] = unicode.ToLower(r[i])
	}
	return string(r)
}
