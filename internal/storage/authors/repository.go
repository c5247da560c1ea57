package authors

import (
	"context"

	"opdsgrab/internal/types"
)

type Repository interface {
	// GetByName returns nil without error for unknown author.
	GetByName(ctx context.Context, name string) (*types.Author, error)

	Save(ctx context.Context, names ...string) error

	// Search matches every word of query against author name, case-insensitively.
	Search(ctx context.Context, query string, limit int) ([]*types.Author, error)
}
