package config

// DefaultConfig returns the built-in defaults from spec.md §6.
func DefaultConfig() *Config {
	return &Config{
		MaxParallelAPI:           10,
		Stage6BatchSize:          15,
		Stage7BatchSize:          10,
		LLMRetryMax:              15,
		LLMRetryBaseSeconds:      3,
		LLMRequestTimeoutSeconds: 120,
		VideoMode:                VideoModeBasic,
		ScanIntervalSeconds:      60,
		InboxDir:                 "INBOX",
		ProjectsDir:              "PROJECTS",
		LLMModel:                 "gpt-4o-mini",
		DuplicateThreshold:       0.8,
		DuplicateSimilarity:      0.92,
	}
}
