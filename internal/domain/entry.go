package domain

import (
	"time"

	"github.com/google/uuid"
)

// DictionaryEntry is the canonical word for one (sourceCode, normalizedWord).
type DictionaryEntry struct {
	ID                     uuid.UUID
	SourceCode             string
	NormalizedWord         string
	Word                   string
	PartOfSpeech           *string
	PartOfSpeechConfidence *int
	CreatedUtc             time.Time
}

// ParsedDefinition is one sense of an entry, possibly a sub-sense of
// another ParsedDefinition (ParentParsedID).
type ParsedDefinition struct {
	ID             uuid.UUID
	EntryID        uuid.UUID
	ParentParsedID *uuid.UUID
	MeaningTitle   string
	SenseNumber    *int
	DomainCode     *string
	UsageLabel     *string
	Definition     string
	RawFragment    *string
	CreatedUtc     time.Time
}

// DefaultMeaningTitle is used when a parsed definition has no explicit title.
const DefaultMeaningTitle = "unnamed sense"

// SenseNumberKey returns SenseNumber if set, otherwise -1.
func (p ParsedDefinition) SenseNumberKey() int {
	if p.SenseNumber == nil {
		return -1
	}
	return *p.SenseNumber
}

// ParentParsedIDKey returns ParentParsedID if set, otherwise uuid.Nil; callers
// compare against the sentinel "-1" semantics of the natural key by treating
// uuid.Nil as "no parent", which can never collide with a real parsed id.
func (p ParsedDefinition) ParentParsedIDKey() uuid.UUID {
	if p.ParentParsedID == nil {
		return uuid.Nil
	}
	return *p.ParentParsedID
}

// FieldType enumerates the child-row kinds that can route text through the
// non-English side-store.
type FieldType string

const (
	FieldTypeDefinition FieldType = "Definition"
	FieldTypeExample    FieldType = "Example"
	FieldTypeSynonym    FieldType = "Synonym"
	FieldTypeAlias      FieldType = "Alias"
	FieldTypeVariant    FieldType = "Variant"
	FieldTypeCrossRef   FieldType = "CrossReference"
	FieldTypeEtymology  FieldType = "Etymology"
	FieldTypeTitle      FieldType = "MeaningTitle"
)

// NonEnglishSentinel replaces the canonical text column whenever the payload
// was routed through the non-English side-store.
const NonEnglishSentinel = "[NON_ENGLISH]"

// BilingualExampleSentinel is forbidden as both original and rewritten
// example text.
const BilingualExampleSentinel = "[BILINGUAL_EXAMPLE]"

// Alias is a child row on a ParsedDefinition.
type Alias struct {
	ID                uuid.UUID
	ParsedID          uuid.UUID
	SourceCode        string
	Text              string
	HasNonEnglishText bool
	NonEnglishTextID  *int64
	CreatedUtc        time.Time
}

// Synonym is a child row on a ParsedDefinition.
type Synonym struct {
	ID                uuid.UUID
	ParsedID          uuid.UUID
	SourceCode        string
	Text              string
	HasNonEnglishText bool
	NonEnglishTextID  *int64
	CreatedUtc        time.Time
}

// Example is a child row scoped per entry (not per parsed id) to avoid
// repeating the same example across sibling senses.
type Example struct {
	ID                uuid.UUID
	EntryID           uuid.UUID
	ParsedID          uuid.UUID
	SourceCode        string
	Text              string
	HasNonEnglishText bool
	NonEnglishTextID  *int64
	CreatedUtc        time.Time
}

// Variant is keyed by EntryID rather than ParsedID.
type Variant struct {
	ID                uuid.UUID
	EntryID           uuid.UUID
	SourceCode        string
	Text              string
	HasNonEnglishText bool
	NonEnglishTextID  *int64
	CreatedUtc        time.Time
}

// CrossReference is a child row on a ParsedDefinition.
type CrossReference struct {
	ID                uuid.UUID
	ParsedID          uuid.UUID
	SourceCode        string
	Text              string
	HasNonEnglishText bool
	NonEnglishTextID  *int64
	CreatedUtc        time.Time
}

// Etymology is keyed by EntryID rather than ParsedID.
type Etymology struct {
	ID                uuid.UUID
	EntryID           uuid.UUID
	SourceCode        string
	Text              string
	HasNonEnglishText bool
	NonEnglishTextID  *int64
	CreatedUtc        time.Time
}

// NonEnglishText is an append-only row holding the original text whenever a
// canonical column was replaced with NonEnglishSentinel.
type NonEnglishText struct {
	ID               int64
	OriginalText     string
	DetectedLanguage *string
	CharacterCount   int
	SourceCode       string
	FieldType        FieldType
	CreatedUtc       time.Time
}
