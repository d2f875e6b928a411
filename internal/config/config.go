// Package config holds engine-wide tunables loaded from a TOML file, the way
// the rest of this codebase family loads its server and game configuration.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Engine holds the tunables for a running constraint-engine process. One
// Engine config is shared by every controller in the process; the TokTrie it
// points at is built once from VocabPath and is itself immutable thereafter.
type Engine struct {
	// VocabPath is the path to a serialized TokTrie vocabulary artifact (see
	// internal/toktrie's binary format).
	VocabPath string `toml:"vocab_path"`

	// MaxTokenLen bounds the byte length of any single vocabulary token. The
	// trie rejects tokens longer than this at build time.
	MaxTokenLen int `toml:"max_token_len"`

	// InitPromptBudget is the time budget for init_prompt calls (seconds in
	// the file, a time.Duration once parsed).
	InitPromptBudget time.Duration `toml:"-"`
	InitPromptBudgetSeconds float64 `toml:"init_prompt_budget_seconds"`

	// StepBudget is the time budget for pre_process/mid_process/post_process
	// calls (single-digit milliseconds per §5).
	StepBudget time.Duration `toml:"-"`
	StepBudgetMillis float64 `toml:"step_budget_millis"`

	// LogLevel controls the verbosity of the default print(bytes) sink.
	LogLevel string `toml:"log_level"`
}

// DefaultMaxTokenLen is used when a config omits max_token_len.
const DefaultMaxTokenLen = 128

// Default returns an Engine config with the defaults used when no file is
// supplied.
func Default() Engine {
	return Engine{
		MaxTokenLen:             DefaultMaxTokenLen,
		InitPromptBudgetSeconds: 5,
		StepBudgetMillis:        20,
		LogLevel:                "info",
	}
}

// Load reads and parses a TOML config file at path, filling in any field left
// unset with the value from Default.
func Load(path string) (Engine, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Engine{}, fmt.Errorf("decode config %q: %w", path, err)
	}
	return cfg.resolved(), nil
}

// Parse decodes TOML config text directly rather than reading it from a
// file, filling in unset fields the same way Load does.
func Parse(text string) (Engine, error) {
	cfg := Default()
	if _, err := toml.Decode(text, &cfg); err != nil {
		return Engine{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg.resolved(), nil
}

func (cfg Engine) resolved() Engine {
	if cfg.MaxTokenLen <= 0 {
		cfg.MaxTokenLen = DefaultMaxTokenLen
	}
	if cfg.InitPromptBudgetSeconds <= 0 {
		cfg.InitPromptBudgetSeconds = 5
	}
	if cfg.StepBudgetMillis <= 0 {
		cfg.StepBudgetMillis = 20
	}
	cfg.InitPromptBudget = time.Duration(cfg.InitPromptBudgetSeconds * float64(time.Second))
	cfg.StepBudget = time.Duration(cfg.StepBudgetMillis * float64(time.Millisecond))
	return cfg
}
