// Package producer defines how ingestion obtains normalized items from external sources.
package producer

import (
	"context"

	"chronicle/internal/models"
)

// BatchSource returns one full result set per run.
type BatchSource interface {
	Fetch(ctx context.Context) ([]models.Item, error)
}

// PagedSource returns successive non-empty pages; an empty page signals completion.
// A failed page is requested again with the same page number.
type PagedSource interface {
	FetchPage(ctx context.Context, page int) ([]models.Item, error)
}

// BatchFunc adapts a function to BatchSource.
type BatchFunc func(ctx context.Context) ([]models.Item, error)

func (f BatchFunc) Fetch(ctx context.Context) ([]models.Item, error) { return f(ctx) }

// PagedFunc adapts a function to PagedSource.
type PagedFunc func(ctx context.Context, page int) ([]models.Item, error)

func (f PagedFunc) FetchPage(ctx context.Context, page int) ([]models.Item, error) {
	return f(ctx, page)
}
