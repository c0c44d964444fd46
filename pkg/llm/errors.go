package llm

import "fmt"

// RetryableError marks a failure the retry policy should keep retrying:
// 429, 5xx, timeouts, and transport errors (spec.md §4.1).
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return fmt.Sprintf("llm: retryable: %v", e.Err) }
func (e *RetryableError) Unwrap() error { return e.Err }

// TerminalError marks a failure the retry policy must not retry: any 4xx
// other than 429 (spec.md §4.1).
type TerminalError struct{ Err error }

func (e *TerminalError) Error() string { return fmt.Sprintf("llm: terminal: %v", e.Err) }
func (e *TerminalError) Unwrap() error { return e.Err }
