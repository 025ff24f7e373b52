package ai

import (
	"context"
	"fmt"
	"log"
	"time"

	"lead-responder/pkg/gemini"

	"golang.org/x/time/rate"
)

// Config holds AI provider configuration
type Config struct {
	Provider ProviderType

	GeminiAPIKey string
	GeminiModel  string

	OllamaBaseURL string // e.g., "http://localhost:11434"
	OllamaModel   string // e.g., "llama3", "mistral"

	BedrockModelID string
	AWSRegion      string

	// RequestsPerMinute paces all providers; zero disables pacing.
	RequestsPerMinute int
}

// NewTextGenerator creates a TextGenerator based on the config
// This is the factory function - switch AI provider by changing cfg.Provider
func NewTextGenerator(ctx context.Context, cfg Config) (TextGenerator, error) {
	gen, err := newProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.RequestsPerMinute > 0 {
		gen = NewPacedGenerator(gen, cfg.RequestsPerMinute)
	}
	return gen, nil
}

func newProvider(ctx context.Context, cfg Config) (TextGenerator, error) {
	switch cfg.Provider {
	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for Gemini provider")
		}
		return gemini.NewGeminiService(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)

	case ProviderOllama:
		return NewOllamaService(cfg.OllamaBaseURL, cfg.OllamaModel), nil

	case ProviderBedrock:
		return NewBedrockServiceFromEnv(ctx, cfg.AWSRegion, cfg.BedrockModelID)

	case ProviderAuto:
		ollama := NewOllamaService(cfg.OllamaBaseURL, cfg.OllamaModel)
		if cfg.GeminiAPIKey == "" {
			log.Println("[AI] No Gemini key configured, auto mode uses Ollama only")
			return ollama, nil
		}
		g, err := gemini.NewGeminiService(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		return NewFallbackService(g, "Gemini", ollama, "Ollama"), nil

	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}

// PacedGenerator spaces requests to stay under a provider's per-minute quota.
type PacedGenerator struct {
	next    TextGenerator
	limiter *rate.Limiter
}

func NewPacedGenerator(next TextGenerator, perMinute int) *PacedGenerator {
	if perMinute <= 0 {
		return &PacedGenerator{next: next, limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &PacedGenerator{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
	}
}

func (p *PacedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("unable to acquire AI request slot: %w", err)
	}
	return p.next.Generate(ctx, prompt)
}
