package config

import "fmt"

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Database.MaxConns <= 0 {
		return fmt.Errorf("database.max_conns must be > 0 (got %d)", c.Database.MaxConns)
	}
	if c.Database.MinConns < 0 {
		return fmt.Errorf("database.min_conns must be >= 0 (got %d)", c.Database.MinConns)
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("database.min_conns (%d) must not exceed database.max_conns (%d)", c.Database.MinConns, c.Database.MaxConns)
	}

	if c.Import.SourceCode == "" {
		return fmt.Errorf("import.source_code is required")
	}
	if c.Import.BatchSize <= 0 {
		return fmt.Errorf("import.batch_size must be > 0 (got %d)", c.Import.BatchSize)
	}

	if err := c.Suggestion.validate(); err != nil {
		return fmt.Errorf("suggestion: %w", err)
	}

	if err := c.Promotion.validate(); err != nil {
		return fmt.Errorf("promotion: %w", err)
	}

	if c.Grammar.EnhancedGrammarEnabled && c.Grammar.LanguageToolUrl == "" {
		return fmt.Errorf("grammar.language_tool_url is required when grammar.enhanced_grammar_enabled is true")
	}

	return nil
}

func (s *SuggestionConfig) validate() error {
	if s.IndexPath == "" {
		return fmt.Errorf("index_path is required")
	}
	if s.MaxSuggestions <= 0 {
		return fmt.Errorf("max_suggestions must be > 0 (got %d)", s.MaxSuggestions)
	}
	if s.MinScore < 0 || s.MinScore > 1 {
		return fmt.Errorf("min_score must be within [0, 1] (got %v)", s.MinScore)
	}
	if s.Take <= 0 {
		return fmt.Errorf("take must be > 0 (got %d)", s.Take)
	}
	if s.Take < s.MaxSuggestions {
		return fmt.Errorf("take (%d) must be >= max_suggestions (%d)", s.Take, s.MaxSuggestions)
	}
	return nil
}

func (p *PromotionConfig) validate() error {
	if p.CandidateMinConfidence < 0 || p.CandidateMinConfidence > 1 {
		return fmt.Errorf("candidate_min_confidence must be within [0, 1] (got %v)", p.CandidateMinConfidence)
	}
	if p.MaxCandidatesPerRun <= 0 {
		return fmt.Errorf("max_candidates_per_run must be > 0 (got %d)", p.MaxCandidatesPerRun)
	}
	return nil
}
