package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
)

// FallbackService routes every prompt to the primary provider first and to
// the secondary one when the primary fails.
type FallbackService struct {
	primary       TextGenerator
	secondary     TextGenerator
	primaryName   string
	secondaryName string
}

// NewFallbackService creates a new fallback service with both providers
func NewFallbackService(primary TextGenerator, primaryName string, secondary TextGenerator, secondaryName string) *FallbackService {
	return &FallbackService{
		primary:       primary,
		secondary:     secondary,
		primaryName:   primaryName,
		secondaryName: secondaryName,
	}
}

// isConnectionError checks if the error is a network/connection error
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, indicator := range []string{"connection refused", "no such host", "network is unreachable", "connection reset", "dial tcp"} {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}

// Generate implements TextGenerator
func (f *FallbackService) Generate(ctx context.Context, prompt string) (string, error) {
	var primaryErr error
	if f.primary != nil {
		result, err := f.primary.Generate(ctx, prompt)
		if err == nil {
			return result, nil
		}
		primaryErr = err
		if isConnectionError(err) {
			log.Printf("[AI] %s connection failed: %v, falling back to %s", f.primaryName, err, f.secondaryName)
		} else {
			log.Printf("[AI] %s error: %v, falling back to %s", f.primaryName, err, f.secondaryName)
		}
	}

	if f.secondary == nil {
		if primaryErr != nil {
			return "", fmt.Errorf("%s generation failed: %w", f.primaryName, primaryErr)
		}
		return "", fmt.Errorf("no AI provider available")
	}

	result, err := f.secondary.Generate(ctx, prompt)
	if err == nil {
		log.Printf("[AI] %s generation successful", f.secondaryName)
		return result, nil
	}
	// Both errors stay reachable so retry classification still sees a 429.
	return "", fmt.Errorf("all AI providers failed: %w", errors.Join(primaryErr, err))
}
