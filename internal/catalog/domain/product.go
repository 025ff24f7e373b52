package domain

import (
	"fmt"
	"strings"
)

// MaxAlternatives caps how many products are suggested when there is no
// exact match.
const MaxAlternatives = 3

// Product is a storefront catalog item. The table belongs to the
// storefront; this service only reads it.
type Product struct {
	ID         string `json:"id" gorm:"primaryKey"`
	Title      string `json:"title"`
	Category   string `json:"category"`
	PriceCents int64  `json:"price_cents"`
	Currency   string `json:"currency"`
	Slug       string `json:"slug"`
	InStock    bool   `json:"in_stock"`
}

func (Product) TableName() string {
	return "products"
}

// URL is the storefront page for the product.
func (p Product) URL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/products/" + p.Slug
}

// FormatPrice renders the price as "12.50 USD".
func (p Product) FormatPrice() string {
	currency := p.Currency
	if currency == "" {
		currency = "USD"
	}
	sign := ""
	cents := p.PriceCents
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, cents/100, cents%100, strings.ToUpper(currency))
}

// MatchResult carries either an exact product, a short list of
// alternatives, or nothing.
type MatchResult struct {
	Exact        *Product  `json:"exact,omitempty"`
	Alternatives []Product `json:"alternatives,omitempty"`
}

func (m *MatchResult) IsEmpty() bool {
	return m == nil || (m.Exact == nil && len(m.Alternatives) == 0)
}
