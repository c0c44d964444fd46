// Package config loads and validates the pipeline's tunables. Layering
// goes: built-in defaults, overridden by an optional YAML file, overridden
// by environment variables, then validated as a whole before use.
package config

import "time"

// VideoMode selects how Scene.video_note is computed in Stage 7 (spec.md
// §4.7 step 4).
type VideoMode string

const (
	VideoModeBasic VideoMode = "basic"
	VideoModeFull  VideoMode = "full"
)

// Config is the full set of recognized options from spec.md §6.
type Config struct {
	MaxParallelAPI int `yaml:"max_parallel_api"`

	Stage6BatchSize int `yaml:"stage6_batch_size"`
	Stage7BatchSize int `yaml:"stage7_batch_size"`

	LLMRetryMax              int           `yaml:"llm_retry_max"`
	LLMRetryBaseSeconds      int           `yaml:"llm_retry_base_seconds"`
	LLMRequestTimeoutSeconds int           `yaml:"llm_request_timeout_seconds"`
	LLMMaxRetryWait          time.Duration `yaml:"-"` // not set or read by this module; llm.Client caps waits at 32 × RetryBase()

	VideoMode VideoMode `yaml:"video_mode"`

	ScanIntervalSeconds int    `yaml:"scan_interval_seconds"`
	InboxDir            string `yaml:"inbox_dir"`
	ProjectsDir         string `yaml:"projects_dir"`

	LLMEndpoint string   `yaml:"llm_endpoint"`
	LLMModel    string   `yaml:"llm_model"`
	LLMAPIKeys  []string `yaml:"llm_api_keys"`

	// DuplicateThreshold is the Open Question from spec.md §9 exposed as a
	// tunable: the fraction of a Stage 7 batch that must be near-duplicate
	// before the Fallback Generator takes over the whole batch.
	DuplicateThreshold float64 `yaml:"duplicate_threshold"`

	// DuplicateSimilarity is the normalized-Levenshtein-similarity cutoff
	// (0..1) above which two prompts count as "near-exact" duplicates.
	DuplicateSimilarity float64 `yaml:"duplicate_similarity"`
}

// RequestTimeout returns LLMRequestTimeoutSeconds as a time.Duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.LLMRequestTimeoutSeconds) * time.Second
}

// ScanInterval returns ScanIntervalSeconds as a time.Duration.
func (c *Config) ScanInterval() time.Duration {
	return time.Duration(c.ScanIntervalSeconds) * time.Second
}

// RetryBase returns LLMRetryBaseSeconds as a time.Duration.
func (c *Config) RetryBase() time.Duration {
	return time.Duration(c.LLMRetryBaseSeconds) * time.Second
}
