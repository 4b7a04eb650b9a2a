// Package llm provides clients for the model endpoints used in SQL
// generation and question embedding.
package llm

import "context"

// Client defines the interface for LLM operations. Use this interface
// for dependency injection to enable mocking in tests.
type Client interface {
	// GenerateResponse generates a chat completion for the prompt.
	GenerateResponse(ctx context.Context, prompt, systemMessage string, temperature float64) (string, error)

	// CreateEmbedding generates an embedding vector for the input text.
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)

	// Model returns the configured generation model name.
	Model() string
}
