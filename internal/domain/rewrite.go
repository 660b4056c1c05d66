package domain

import (
	"time"

	"github.com/google/uuid"
)

// RewriteMode is the text role a rewrite applies to, or a style code used
// for rule scoping.
type RewriteMode string

const (
	ModeDefinition   RewriteMode = "Definition"
	ModeMeaningTitle RewriteMode = "MeaningTitle"
	ModeExample      RewriteMode = "Example"

	ModeAcademic     RewriteMode = "Academic"
	ModeCasual       RewriteMode = "Casual"
	ModeEducational  RewriteMode = "Educational"
	ModeEmail        RewriteMode = "Email"
	ModeEnglish      RewriteMode = "English"
	ModeFormal       RewriteMode = "Formal"
	ModeGrammarFix   RewriteMode = "GrammarFix"
	ModeLegal        RewriteMode = "Legal"
	ModeMedical      RewriteMode = "Medical"
	ModeNeutral      RewriteMode = "Neutral"
	ModeProfessional RewriteMode = "Professional"
	ModeSimplify     RewriteMode = "Simplify"
	ModeTechnical    RewriteMode = "Technical"
)

// styleModes is the closed set of style codes rule promotion normalizes
// into; legacy index modes are mapped onto ModeEnglish.
var styleModes = map[RewriteMode]bool{
	ModeAcademic: true, ModeCasual: true, ModeEducational: true,
	ModeEmail: true, ModeEnglish: true, ModeFormal: true,
	ModeGrammarFix: true, ModeLegal: true, ModeMedical: true,
	ModeNeutral: true, ModeProfessional: true, ModeSimplify: true,
	ModeTechnical: true,
}

// IsStyleMode reports whether m is one of the closed promotion-time style
// codes rather than an index-time mode (Definition/MeaningTitle/Example).
func IsStyleMode(m RewriteMode) bool { return styleModes[m] }

// NormalizeRuleMode maps legacy index-time modes onto the style-code space
// used by RewriteRule, per §4.J ("Legacy Definition/MeaningTitle/Title/
// Example map to English").
func NormalizeRuleMode(m RewriteMode) RewriteMode {
	switch m {
	case ModeDefinition, ModeMeaningTitle, ModeExample, "Title":
		return ModeEnglish
	}
	if IsStyleMode(m) {
		return m
	}
	return ModeEnglish
}

// AiAnnotation is a single AI-enhanced rewrite observation, the only table
// the rewrite-memory subsystem reads from upstream enrichment.
type AiAnnotation struct {
	SourceCode           string
	ParsedDefinitionID   uuid.UUID
	OriginalDefinition   string
	AiEnhancedDefinition string
	AiNotesJSON          string
	Provider             string
	Model                string
	CreatedUtc           time.Time
}

// AiNotes is the structured payload carried in AiAnnotation.AiNotesJSON.
type AiNotes struct {
	Title            string            `json:"title,omitempty"`
	OriginalTitle    string            `json:"originalTitle,omitempty"`
	ExampleRewrites  []ExampleRewrite  `json:"exampleRewrites,omitempty"`
	MinedSuggestions []MinedSuggestion `json:"minedSuggestions,omitempty"`
}

// ExampleRewrite is one (original, enhanced) example pair inside AiNotes.
type ExampleRewrite struct {
	Original string `json:"original"`
	Enhanced string `json:"enhanced"`
}

// MinedSuggestion is one rewrite-memory suggestion folded back into
// AiNotes by the mining step, so a later review pass can see what the
// memory index proposed for this row without re-querying it.
type MinedSuggestion struct {
	Mode        RewriteMode `json:"mode"`
	Text        string      `json:"text"`
	Score       float64     `json:"score"`
	MatchedHash string      `json:"matchedHash"`
}

// LuceneSuggestionIndexRow is one index-ready tuple fed to the suggestion
// index (component G).
type LuceneSuggestionIndexRow struct {
	SourceCode        string
	Mode              RewriteMode
	OriginalText      string
	EnhancedText      string
	OriginalTextHash  string
}

// CandidateStatus is the lifecycle state of a RewriteMapCandidate.
type CandidateStatus string

const (
	CandidatePending  CandidateStatus = "Pending"
	CandidateApproved CandidateStatus = "Approved"
	CandidateRejected CandidateStatus = "Rejected"
	CandidatePromoted CandidateStatus = "Promoted"
)

// RewriteMapCandidate is a proposed (fromText, toText) rewrite awaiting
// approval.
type RewriteMapCandidate struct {
	ID                 int64
	SourceCode         string
	Mode               RewriteMode
	FromText           string
	ToText             string
	SuggestedCount     int
	AvgConfidenceScore float64
	Status             CandidateStatus
	FirstSeenUtc       time.Time
	LastSeenUtc        time.Time
	ApprovedBy         *string
	ApprovedUtc        *time.Time
}

// RewriteRule is a promoted, authoritative rewrite rule applied at parse
// time.
type RewriteRule struct {
	ID          int64
	FromText    string
	ToText      string
	ModeCode    *RewriteMode
	IsWholeWord bool
	IsRegex     bool
	Priority    int
	Enabled     bool
	Notes      string
}

// Priority bounds from §3.
const (
	MinRulePriority     = 50
	MaxRulePriority     = 1000
	DefaultRulePriority = 500
)

// ClampPriority clamps p into [MinRulePriority, MaxRulePriority].
func ClampPriority(p int) int {
	if p < MinRulePriority {
		return MinRulePriority
	}
	if p > MaxRulePriority {
		return MaxRulePriority
	}
	return p
}

// RewriteRuleHit is a telemetric counter for rule applications.
type RewriteRuleHit struct {
	SourceCode  string
	Mode        RewriteMode
	RuleType    string
	RuleKey     string
	HitCount    int
	FirstHitUtc time.Time
	LastHitUtc  time.Time
}
