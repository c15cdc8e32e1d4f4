// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// StoreConfig holds settings for the session store.
type StoreConfig struct {
	// DataDir is the base directory for the session database
	// (contains paper.db).
	DataDir string `json:"data_dir" yaml:"data_dir"`
}

// GuardConfig holds settings for the stage data guard.
type GuardConfig struct {
	// MaxFieldLength is the truncation cap for ordinary string fields
	// (default 2000).
	MaxFieldLength int `json:"max_field_length" yaml:"max_field_length"`

	// RingkasanMax caps the ringkasan decision summary (default 280).
	RingkasanMax int `json:"ringkasan_max" yaml:"ringkasan_max"`

	// RingkasanDetailMax caps the ringkasanDetail field (default 1000).
	RingkasanDetailMax int `json:"ringkasan_detail_max" yaml:"ringkasan_detail_max"`
}

// WithDefaults fills zero-valued guard settings with their defaults.
func (c GuardConfig) WithDefaults() GuardConfig {
	if c.MaxFieldLength <= 0 {
		c.MaxFieldLength = 2000
	}
	if c.RingkasanMax <= 0 {
		c.RingkasanMax = 280
	}
	if c.RingkasanDetailMax <= 0 {
		c.RingkasanDetailMax = 1000
	}
	return c
}

// WorkflowConfig holds settings for the stage workflow engine.
type WorkflowConfig struct {
	// EnforceBudget enables the soft content-budget check on approval.
	EnforceBudget bool `json:"enforce_budget" yaml:"enforce_budget"`

	// CharsPerWord converts cumulative ringkasan characters into a word
	// estimate for the budget check (default 6). The ratio is a heuristic
	// and deliberately configurable.
	CharsPerWord int `json:"chars_per_word" yaml:"chars_per_word"`

	// BudgetTolerance is the multiple of the outline's totalWordCount the
	// estimate may reach before approval is rejected (default 1.5).
	BudgetTolerance float64 `json:"budget_tolerance" yaml:"budget_tolerance"`
}

// WithDefaults fills zero-valued workflow settings with their defaults.
func (c WorkflowConfig) WithDefaults() WorkflowConfig {
	if c.CharsPerWord <= 0 {
		c.CharsPerWord = 6
	}
	if c.BudgetTolerance <= 0 {
		c.BudgetTolerance = 1.5
	}
	return c
}

// EngineConfig groups all component configurations.
type EngineConfig struct {
	Store    StoreConfig    `json:"store" yaml:"store"`
	Guard    GuardConfig    `json:"guard" yaml:"guard"`
	Workflow WorkflowConfig `json:"workflow" yaml:"workflow"`
}
