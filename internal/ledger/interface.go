package ledger

import (
	"context"

	"chronicle/internal/models"
)

// Ledger is the append-only history used by ingestion. It exposes no update or delete.
type Ledger interface {
	Append(ctx context.Context, kind models.Kind, row models.NewRow) (models.Row, error)
	Latest(ctx context.Context, kind models.Kind, key string) (*models.Row, error)
	History(ctx context.Context, kind models.Kind, key string) ([]models.Row, error)
}

// Reader serves presentation queries. Every list is newest first.
type Reader interface {
	LatestN(ctx context.Context, kind models.Kind, n int) ([]models.Row, error)
	All(ctx context.Context, kind models.Kind) ([]models.Row, error)
	Get(ctx context.Context, kind models.Kind, id int64) (*models.Row, error)
	History(ctx context.Context, kind models.Kind, key string) ([]models.Row, error)
	Counts(ctx context.Context) (map[string]int64, error)
}

var (
	_ Ledger = (*Store)(nil)
	_ Reader = (*Store)(nil)
)
