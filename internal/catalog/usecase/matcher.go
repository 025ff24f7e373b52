package usecase

import (
	"context"
	"fmt"
	"strings"

	"lead-responder/internal/catalog/domain"
	"lead-responder/internal/catalog/repository"
	"lead-responder/pkg/fuzzy"
)

// titleCandidates is how many title hits are ranked before picking the best.
const titleCandidates = 20

// Matcher turns the model's keyword guesses into catalog products.
type Matcher struct {
	repo repository.ProductRepository
}

func NewMatcher(repo repository.ProductRepository) *Matcher {
	return &Matcher{repo: repo}
}

// FindProduct tries the title guess, then the category guess, then falls
// back to a few catalog products.
func (m *Matcher) FindProduct(ctx context.Context, titleGuess, categoryGuess string) (*domain.MatchResult, error) {
	if title, ok := usable(titleGuess); ok {
		hits, err := m.repo.SearchByTitle(ctx, title, titleCandidates)
		if err != nil {
			return nil, fmt.Errorf("unable to search products by title: %w", err)
		}
		if len(hits) > 0 {
			titles := make([]string, len(hits))
			for i, p := range hits {
				titles[i] = p.Title
			}
			best := hits[fuzzy.RankByDistance(title, titles)[0]]
			return &domain.MatchResult{Exact: &best}, nil
		}
	}

	if category, ok := usable(categoryGuess); ok {
		hits, err := m.repo.SearchByCategory(ctx, category, domain.MaxAlternatives)
		if err != nil {
			return nil, fmt.Errorf("unable to search products by category: %w", err)
		}
		if len(hits) > 0 {
			return &domain.MatchResult{Alternatives: hits}, nil
		}
	}

	products, err := m.repo.List(ctx, domain.MaxAlternatives)
	if err != nil {
		return nil, fmt.Errorf("unable to list products: %w", err)
	}
	return &domain.MatchResult{Alternatives: products}, nil
}

// usable treats blank values and the literal "null" the model sometimes
// emits as absent.
func usable(guess string) (string, bool) {
	guess = strings.TrimSpace(guess)
	if guess == "" || strings.EqualFold(guess, "null") {
		return "", false
	}
	return guess, true
}
