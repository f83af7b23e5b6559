// Package adapter provides LLM provider adapters behind a single interface.
// A failed or empty generation is a recoverable condition for callers, never
// a fault they must panic on.
package adapter

import (
	"context"

	"mathmentor/pkg/artifact"
)

// Adapter defines the interface for LLM provider adapters.
type Adapter interface {
	// Generate sends a prompt to the model and returns the response.
	// The system instruction may be empty.
	Generate(ctx context.Context, model, system, prompt string) (*Response, error)

	// Name returns the adapter's identifier.
	Name() string

	// Models returns the list of supported models.
	Models() []string
}

// Usage captures normalized token usage.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response wraps an adapter output and optional usage data.
type Response struct {
	Artifact *artifact.Artifact
	Usage    *Usage
}

// Content returns the generated text, or "" when the response is unusable.
func (r *Response) Content() string {
	if r == nil || r.Artifact == nil {
		return ""
	}
	return r.Artifact.Content
}
