package ai

import (
	"context"
)

// TextGenerator is the interface every AI provider implements.
// Implement this interface to add new AI providers (Gemini, Ollama, Bedrock, etc.)
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ProviderType represents the AI provider type
type ProviderType string

const (
	ProviderGemini  ProviderType = "gemini"
	ProviderOllama  ProviderType = "ollama"
	ProviderBedrock ProviderType = "bedrock"
	ProviderAuto    ProviderType = "auto"
)
