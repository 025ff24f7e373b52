package repository

import (
	"context"
	"strings"

	"lead-responder/internal/catalog/domain"

	"gorm.io/gorm"
)

// ProductRepository is a read-only view over the storefront catalog
type ProductRepository interface {
	SearchByTitle(ctx context.Context, term string, limit int) ([]domain.Product, error)
	SearchByCategory(ctx context.Context, term string, limit int) ([]domain.Product, error)
	// List returns in-stock products first.
	List(ctx context.Context, limit int) ([]domain.Product, error)
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) SearchByTitle(ctx context.Context, term string, limit int) ([]domain.Product, error) {
	return r.searchColumn(ctx, "title", term, limit)
}

func (r *productRepository) SearchByCategory(ctx context.Context, term string, limit int) ([]domain.Product, error) {
	return r.searchColumn(ctx, "category", term, limit)
}

// searchColumn runs a case-insensitive substring match. column is never
// user input.
func (r *productRepository) searchColumn(ctx context.Context, column, term string, limit int) ([]domain.Product, error) {
	pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(term))) + "%"

	var products []domain.Product
	err := r.db.WithContext(ctx).
		Where("LOWER("+column+") LIKE ? ESCAPE '\\'", pattern).
		Order("in_stock DESC").
		Order("title ASC").
		Limit(limit).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (r *productRepository) List(ctx context.Context, limit int) ([]domain.Product, error) {
	var products []domain.Product
	err := r.db.WithContext(ctx).
		Order("in_stock DESC").
		Order("title ASC").
		Limit(limit).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
