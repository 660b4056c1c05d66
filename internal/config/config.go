package config

import "time"

// Config is the root application configuration.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Log        LogConfig        `yaml:"log"`
	Import     ImportConfig     `yaml:"import"`
	Suggestion SuggestionConfig `yaml:"suggestion"`
	Promotion  PromotionConfig  `yaml:"promotion"`
	Grammar    GrammarConfig    `yaml:"grammar"`
	IPA        IPAConfig        `yaml:"ipa"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"                env-required:"true"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"25"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"5"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// ImportConfig holds settings for the staging/import pipeline (component E).
type ImportConfig struct {
	SourceCode string `yaml:"source_code" env:"IMPORT_SOURCE_CODE" env-default:"UNKNOWN"`
	BatchSize  int    `yaml:"batch_size"  env:"IMPORT_BATCH_SIZE"  env-default:"500"`
}

// SuggestionConfig holds settings for the bleve-backed rewrite suggestion
// index (components G/H).
type SuggestionConfig struct {
	IndexPath      string  `yaml:"index_path"      env:"SUGGESTION_INDEX_PATH"      env-default:"./data/suggestion.bleve"`
	MaxSuggestions int     `yaml:"max_suggestions" env:"SUGGESTION_MAX_SUGGESTIONS" env-default:"5"`
	MinScore       float64 `yaml:"min_score"       env:"SUGGESTION_MIN_SCORE"       env-default:"0.5"`
	Take           int     `yaml:"take"            env:"SUGGESTION_TAKE"            env-default:"20"`
}

// PromotionConfig holds settings for candidate mining and rule promotion
// (components I/J).
type PromotionConfig struct {
	WriteCandidatesToSql   bool    `yaml:"write_candidates_to_sql"  env:"PROMOTION_WRITE_CANDIDATES"    env-default:"true"`
	CandidateMinConfidence float64 `yaml:"candidate_min_confidence" env:"PROMOTION_MIN_CONFIDENCE"       env-default:"0.6"`
	MaxCandidatesPerRun    int     `yaml:"max_candidates_per_run"   env:"PROMOTION_MAX_CANDIDATES_RUN"   env-default:"1000"`
}

// GrammarConfig holds settings for the optional external grammar-check
// collaborator.
type GrammarConfig struct {
	EnhancedGrammarEnabled bool   `yaml:"enhanced_grammar_enabled" env:"GRAMMAR_ENHANCED_ENABLED" env-default:"false"`
	LanguageToolUrl        string `yaml:"language_tool_url"        env:"GRAMMAR_LANGUAGETOOL_URL"`
}

// IPAConfig holds settings for pronunciation-source preference ordering.
type IPAConfig struct {
	Sources []string `yaml:"sources" env:"IPA_SOURCES" env-separator:","`
}
