package books

import (
	"context"

	"opdsgrab/internal/types"
)

type GroupingType string

const (
	GroupByAuthor   GroupingType = "author"
	GroupByGenres   GroupingType = "genres"
	GroupByLanguage GroupingType = "language"
)

type Filter struct {
	Query          string
	Author         string
	GenreIds       []uint16
	Language       string
	OnlyDownloaded bool
}

type Repository interface {
	GetById(ctx context.Context, id string) (*types.Book, error)

	// Save keeps downloaded path of already stored books.
	Save(ctx context.Context, books ...*types.Book) error
	MarkDownloaded(ctx context.Context, bookId string, path string) error

	LinkBookAndAuthors(ctx context.Context, bookId string, authorNames ...string) error
	LinkBookAndGenres(ctx context.Context, bookId string, genreIds ...uint16) error

	Search(ctx context.Context, filter Filter, limit, offset int,
		groupings ...GroupingType) ([]BookInGroup, error)
}
