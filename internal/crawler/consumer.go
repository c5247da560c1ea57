package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"opdsgrab/internal/storage/authors"
	"opdsgrab/internal/storage/books"
	"opdsgrab/internal/storage/genres"
	"opdsgrab/internal/types"
)

// Consumer receives what the crawl produces. Returning IgnoreError reports a
// problem without stopping the crawl, any other error stops it.
type Consumer interface {
	ConsumeBooks(ctx context.Context, lang types.Language, books []*types.Book) error
	ConsumeDownload(ctx context.Context, target *types.DownloadTarget) error
}

type IgnoreError struct {
	Err error
}

func (e IgnoreError) Error() string {
	return "ignored: " + e.Err.Error()
}

func (e IgnoreError) Unwrap() error {
	return e.Err
}

func isIgnored(err error) bool {
	var ignore IgnoreError
	return errors.As(err, &ignore)
}

type LoggerConsumer struct {
	Logger *slog.Logger
}

func (c *LoggerConsumer) ConsumeBooks(ctx context.Context, lang types.Language, books []*types.Book) error {
	for _, b := range books {
		var authors_ string
		if len(b.Authors) > 0 {
			sb := strings.Builder{}
			if len(b.Authors) > 1 {
				sb.WriteString("by authors ")
			} else {
				sb.WriteString("by author ")
			}
			sb.WriteString(strings.Join(b.Authors, ", "))
			authors_ = sb.String()
		} else {
			authors_ = "without authors"
		}

		suffixEpub := ""
		if b.EpubUrl != "" {
			suffixEpub = " with EPUB"
		}

		c.Logger.DebugContext(ctx, "Consumed "+lang.Name+" book "+b.Id+" ("+b.Title+") "+authors_+suffixEpub)
	}

	c.Logger.InfoContext(ctx, fmt.Sprintf("Consumed %d %s books", len(books), lang.Name))

	return nil
}

func (c *LoggerConsumer) ConsumeDownload(ctx context.Context, target *types.DownloadTarget) error {
	c.Logger.InfoContext(ctx, "Consumed download of "+target.Title+" to "+target.Path)
	return nil
}

type StoringConsumer struct {
	Logger  *slog.Logger
	Books   books.Repository
	Authors authors.Repository
	Genres  genres.Repository
}

func (s *StoringConsumer) ConsumeBooks(ctx context.Context, lang types.Language, books []*types.Book) error {
	if len(books) == 0 {
		return nil
	}

	uniqAuthorNames := make(map[string]struct{})
	uniqGenreTitles := make(map[string]struct{})

	for _, b := range books {
		for _, name := range b.Authors {
			uniqAuthorNames[name] = struct{}{}
		}
		for _, genreTitle := range b.Genres {
			uniqGenreTitles[genreTitle] = struct{}{}
		}
	}

	var authorNames []string
	for name := range uniqAuthorNames {
		authorNames = append(authorNames, name)
	}

	if err := s.Authors.Save(ctx, authorNames...); err != nil {
		return fmt.Errorf("saving authors: %w", err)
	}

	var genreTitles []string
	for genreTitle := range uniqGenreTitles {
		genreTitles = append(genreTitles, genreTitle)
	}

	gs, err := s.Genres.GetIdByTitles(ctx, genreTitles...)
	if err != nil {
		return fmt.Errorf("finding existing genres: %w", err)
	}

	if gs == nil {
		gs = make(map[string]uint16)
	}

	numNewGenres := 0
	for _, genreTitle := range genreTitles {
		if _, ok := gs[genreTitle]; !ok {
			genreTitles[numNewGenres] = genreTitle
			numNewGenres += 1
		}
	}
	genreTitles = genreTitles[:numNewGenres]

	newGenres, err := s.Genres.Insert(ctx, genreTitles...)
	if err != nil {
		return fmt.Errorf("inserting new genres: %w", err)
	}

	for genreTitle, genreId := range newGenres {
		gs[genreTitle] = genreId
	}

	err = s.Books.Save(ctx, books...)
	if err != nil {
		return fmt.Errorf("saving books: %w", err)
	}

	for _, book := range books {
		err := s.Books.LinkBookAndAuthors(ctx, book.Id, book.Authors...)
		if err != nil {
			return fmt.Errorf("linking book and authors: %w", err)
		}

		var bookGenres []uint16
		for _, genreTitle := range book.Genres {
			genreId, ok := gs[genreTitle]
			if !ok {
				s.Logger.WarnContext(ctx, "Genre was neither found nor inserted: "+genreTitle,
					slog.String("book", book.Id))
				continue
			}

			bookGenres = append(bookGenres, genreId)
		}

		err = s.Books.LinkBookAndGenres(ctx, book.Id, bookGenres...)
		if err != nil {
			return fmt.Errorf("linking book and genres: %w", err)
		}
	}

	s.Logger.InfoContext(ctx, fmt.Sprintf("Stored %d %s books", len(books), lang.Name))

	return nil
}

func (s *StoringConsumer) ConsumeDownload(ctx context.Context, target *types.DownloadTarget) error {
	if target.Id == "" {
		return IgnoreError{Err: errors.New("downloaded book " + target.Title + " has no id")}
	}

	err := s.Books.MarkDownloaded(ctx, target.Id, target.Path)
	if err != nil {
		return fmt.Errorf("marking book as downloaded: %w", err)
	}

	return nil
}
