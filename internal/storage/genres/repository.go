package genres

import (
	"context"
)

// Genre titles are matched case-insensitively.
type Repository interface {
	// GetIdByTitles keys the result by titles as they were requested.
	// Unknown titles are absent from the result.
	GetIdByTitles(ctx context.Context, titles ...string) (map[string]uint16, error)

	Insert(ctx context.Context, titles ...string) (map[string]uint16, error)

	GetAll(ctx context.Context) ([]string, error)
}
