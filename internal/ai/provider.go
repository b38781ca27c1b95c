// Package ai turns changed-file content into structured review
// findings via an LLM provider.
package ai

import "context"

// TextGenerator is the minimal interface any LLM backend must
// implement. internal/copilot and the OpenAI provider below both
// satisfy it.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Provider is a TextGenerator with lifecycle management.
type Provider interface {
	TextGenerator
	Start() error
	Stop() error
}
