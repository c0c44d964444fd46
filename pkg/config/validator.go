package config

import "errors"

// Validate aggregates every field-level check into one pass via a single
// exported entry point.
func Validate(c *Config) error {
	var errs []error

	if c.MaxParallelAPI <= 0 {
		errs = append(errs, NewValidationError("max_parallel_api", "must be positive"))
	}
	if c.Stage6BatchSize <= 0 {
		errs = append(errs, NewValidationError("stage6_batch_size", "must be positive"))
	}
	if c.Stage7BatchSize <= 0 {
		errs = append(errs, NewValidationError("stage7_batch_size", "must be positive"))
	}
	if c.LLMRetryMax <= 0 {
		errs = append(errs, NewValidationError("llm_retry_max", "must be positive"))
	}
	if c.LLMRetryBaseSeconds <= 0 {
		errs = append(errs, NewValidationError("llm_retry_base_seconds", "must be positive"))
	}
	if c.LLMRequestTimeoutSeconds <= 0 {
		errs = append(errs, NewValidationError("llm_request_timeout_seconds", "must be positive"))
	}
	if c.VideoMode != VideoModeBasic && c.VideoMode != VideoModeFull {
		errs = append(errs, NewValidationError("video_mode", "must be 'basic' or 'full'"))
	}
	if c.ScanIntervalSeconds <= 0 {
		errs = append(errs, NewValidationError("scan_interval_seconds", "must be positive"))
	}
	if c.InboxDir == "" {
		errs = append(errs, NewValidationError("inbox_dir", "required"))
	}
	if c.ProjectsDir == "" {
		errs = append(errs, NewValidationError("projects_dir", "required"))
	}
	if c.LLMEndpoint == "" {
		errs = append(errs, NewValidationError("llm_endpoint", "required"))
	}
	if c.LLMModel == "" {
		errs = append(errs, NewValidationError("llm_model", "required"))
	}
	if len(c.LLMAPIKeys) == 0 {
		errs = append(errs, NewValidationError("llm_api_keys", "at least one key required"))
	}
	if c.DuplicateThreshold <= 0 || c.DuplicateThreshold > 1 {
		errs = append(errs, NewValidationError("duplicate_threshold", "must be in (0, 1]"))
	}
	if c.DuplicateSimilarity <= 0 || c.DuplicateSimilarity > 1 {
		errs = append(errs, NewValidationError("duplicate_similarity", "must be in (0, 1]"))
	}

	return errors.Join(errs...)
}
