// Package chat holds the text generation backends used to write horoscopes:
// an OpenAI-compatible chat completions client (the default provider) and a
// Gemini client built on google.golang.org/genai.
//
// Both backends take the same Request and return the completion text. They
// classify their own failures: a missing credential is
// apperr.ConfigMissing, anything else is apperr.GenerationFailed. Neither
// retries; retry policy belongs to the caller.
package chat

import "strings"

// Request is one generation call.
type Request struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// normalizeCompletion trims whitespace around the model output.
func normalizeCompletion(s string) string {
	return strings.TrimSpace(s)
}

// truncate returns the first n bytes of s, appending "..." if truncated.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
