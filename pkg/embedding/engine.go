// Package embedding provides vector embedding generation with a persistent
// content-addressed cache and shared rate limiting across all external calls.
package embedding

import (
	"context"
)

// Task selects the embedding task type for a text.
type Task string

const (
	// TaskDocument embeds text for storage in an index.
	TaskDocument Task = "document"
	// TaskQuery embeds text for searching an index.
	TaskQuery Task = "query"
)

// Engine generates vector embeddings for text.
type Engine interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string, task Task) ([]float32, error)

	// Dimensions returns the dimensionality of embeddings.
	Dimensions() int

	// Name returns the engine name.
	Name() string
}
