package books

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"opdsgrab/internal/types"
)

var (
	subAuthors = goqu.Select(goqu.L("array_agg(author_name order by author_order)")).
			From("book_author").
			Where(goqu.C("book_id").Eq(goqu.C("id").Table("book")))
	subGenres = goqu.Select(goqu.L("array_agg(genre.title order by genre.title)")).
			From("book_genre").
			Join(goqu.T("genre"), goqu.On(
			goqu.C("id").Table("genre").
				Eq(goqu.C("genre_id")),
		)).
		Where(goqu.C("book_id").Eq(goqu.C("id").Table("book")))
)

func NewPGXRepository(pg *pgxpool.Pool, l *slog.Logger) Repository {
	return &pgxRepo{pg: pg, g: goqu.Dialect("postgres"), l: l}
}

type pgxRepo struct {
	pg *pgxpool.Pool
	g  goqu.DialectWrapper
	l  *slog.Logger
}

type pgxBook struct {
	Id             string `db:"id"`
	Title          string `db:"title"`
	Language       string `db:"language"`
	Issued         string `db:"issued"`
	About          string `db:"about"`
	EpubUrl        string `db:"epub_url"`
	CoverUrl       string `db:"cover_url"`
	DownloadedPath string `db:"downloaded_path" goqu:"skipinsert"`
}

type pgxBookFull struct {
	Base      pgxBook  `db:""` // follow
	Authors   []string `db:"authors"`
	Genres    []string `db:"genres"`
	Groupings any      `db:"groupings"`
}

func parseStoredUrl(raw, what string, l *slog.Logger, ctx context.Context) string {
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil {
		l.ErrorContext(ctx, "Failed to parse "+what+" URL stored in DB ("+raw+"): "+err.Error())
		return ""
	}

	return u.String()
}

func (b *pgxBook) intoCommon(authors []string, genres []string, l *slog.Logger, ctx context.Context) *types.Book {
	return &types.Book{
		Id:       b.Id,
		Title:    b.Title,
		Authors:  authors,
		Genres:   genres,
		Language: b.Language,
		Issued:   b.Issued,
		About:    b.About,
		EpubUrl:  parseStoredUrl(b.EpubUrl, "EPUB", l, ctx),
		Cover:    parseStoredUrl(b.CoverUrl, "cover", l, ctx),
		Path:     b.DownloadedPath,
	}
}

func (p *pgxRepo) selectBooks() *goqu.SelectDataset {
	return p.g.From("book").
		Select("book.*",
			subAuthors.As("authors"),
			subGenres.As("genres"))
}

func (p *pgxRepo) GetById(ctx context.Context, id string) (*types.Book, error) {
	sql, params, err := p.selectBooks().
		Where(goqu.C("id").Table("book").Eq(id)).
		ToSQL()
	if err != nil {
		return nil, err
	}

	var row pgxBookFull

	err = pgxscan.Get(ctx, p.pg, &row, sql, params...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = nil
		}
		return nil, err
	}

	return row.Base.intoCommon(row.Authors, row.Genres, p.l, ctx), nil
}

func (p *pgxRepo) Save(ctx context.Context, books ...*types.Book) error {
	if len(books) == 0 {
		return nil
	}

	rows := make([]any, 0, len(books))
	for _, book := range books {
		rows = append(rows, pgxBook{
			Id:       book.Id,
			Title:    book.Title,
			Language: book.Language,
			Issued:   book.Issued,
			About:    book.About,
			EpubUrl:  book.EpubUrl,
			CoverUrl: book.Cover,
		})
	}

	sql, params, err := p.g.Insert("book").
		Rows(rows...).
		OnConflict(goqu.DoUpdate("id", map[string]any{
			"title":     goqu.L("excluded.title"),
			"language":  goqu.L("excluded.language"),
			"issued":    goqu.L("excluded.issued"),
			"about":     goqu.L("excluded.about"),
			"epub_url":  goqu.L("excluded.epub_url"),
			"cover_url": goqu.L("excluded.cover_url"),
		})).
		ToSQL()
	if err != nil {
		return err
	}

	_, err = p.pg.Exec(ctx, sql, params...)
	return err
}

func (p *pgxRepo) MarkDownloaded(ctx context.Context, bookId string, path string) error {
	sql, params, err := p.g.Update("book").
		Set(goqu.Record{"downloaded_path": path}).
		Where(goqu.C("id").Eq(bookId)).
		ToSQL()
	if err != nil {
		return err
	}

	tag, err := p.pg.Exec(ctx, sql, params...)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		p.l.WarnContext(ctx, "Marked as downloaded book which is not stored: "+bookId)
	}

	return nil
}

func (p *pgxRepo) LinkBookAndAuthors(ctx context.Context, bookId string, authorNames ...string) error {
	sql, params, err := p.g.Delete("book_author").
		Where(goqu.C("book_id").Eq(bookId)).
		ToSQL()
	if err != nil {
		return err
	}

	_, err = p.pg.Exec(ctx, sql, params...)
	if err != nil {
		return err
	}

	if len(authorNames) == 0 {
		return nil
	}

	type row struct {
		BookId      string `db:"book_id"`
		AuthorName  string `db:"author_name"`
		AuthorOrder uint16 `db:"author_order"`
	}

	rows := make([]any, 0, len(authorNames))

	for ix, name := range authorNames {
		rows = append(rows, row{
			BookId:      bookId,
			AuthorName:  name,
			AuthorOrder: uint16(ix + 1),
		})
	}

	sql, params, err = p.g.Insert("book_author").
		Rows(rows...).
		ToSQL()
	if err != nil {
		return err
	}

	_, err = p.pg.Exec(ctx, sql, params...)
	return err
}

func (p *pgxRepo) LinkBookAndGenres(ctx context.Context, bookId string, genreIds ...uint16) error {
	sql, params, err := p.g.Delete("book_genre").
		Where(goqu.C("book_id").Eq(bookId)).
		ToSQL()
	if err != nil {
		return err
	}

	_, err = p.pg.Exec(ctx, sql, params...)
	if err != nil {
		return err
	}

	if len(genreIds) == 0 {
		return nil
	}

	type row struct {
		BookId  string `db:"book_id"`
		GenreId uint16 `db:"genre_id"`
	}

	rows := make([]any, 0, len(genreIds))

	for _, genreId := range genreIds {
		rows = append(rows, row{
			BookId:  bookId,
			GenreId: genreId,
		})
	}

	sql, params, err = p.g.Insert("book_genre").
		Rows(rows...).
		OnConflict(goqu.DoNothing()).
		ToSQL()
	if err != nil {
		return err
	}

	_, err = p.pg.Exec(ctx, sql, params...)
	return err
}

func escapeLike(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(strings.ReplaceAll(strings.TrimSpace(s),
		"\\", "\\\\"),
		"_", "\\_"),
		"%", "\\%")
}

func (p *pgxRepo) Search(ctx context.Context, filter Filter, limit, offset int,
	groupings ...GroupingType) ([]BookInGroup, error) {

	qb := p.selectBooks().
		Limit(uint(limit))

	if offset != 0 {
		qb = qb.Offset(uint(offset))
	}

	groupingExprs := make([]string, 0, len(groupings))
	groupingPostProcess := make([]func(row *pgxBookFull) Grouping, 0, len(groupings))

	seenGrouping := make(map[GroupingType]struct{}, len(groupings))
	for _, grouping := range groupings {
		if _, ok := seenGrouping[grouping]; ok {
			continue
		}

		seenGrouping[grouping] = struct{}{}

		switch grouping {
		case GroupByAuthor:
			groupIx := len(groupingExprs)
			groupingPostProcess = append(groupingPostProcess, func(row *pgxBookFull) Grouping {
				return Grouping{ByAuthor: row.Groupings.([]any)[groupIx].(string)}
			})
			groupingExprs = append(groupingExprs, "book_author.author_name")
			qb = qb.
				Join(goqu.T("book_author"), goqu.On(
					goqu.C("id").Table("book").Eq(goqu.C("book_id").Table("book_author")),
				)).
				OrderAppend(goqu.C("author_name").Table("book_author").Asc())
		case GroupByLanguage:
			groupIx := len(groupingExprs)
			groupingPostProcess = append(groupingPostProcess, func(row *pgxBookFull) Grouping {
				return Grouping{ByLanguage: row.Groupings.([]any)[groupIx].(string)}
			})
			groupingExprs = append(groupingExprs, "book.language")
			qb = qb.OrderAppend(goqu.C("language").Table("book").Asc())
		case GroupByGenres:
			groupingPostProcess = append(groupingPostProcess, func(row *pgxBookFull) Grouping {
				return Grouping{ByGenres: row.Genres}
			})

			qb = qb.OrderAppend(goqu.C("genres").Asc())
		}
	}

	if len(groupingExprs) != 0 {
		qb = qb.SelectAppend(
			goqu.L("jsonb_build_array(" + strings.Join(groupingExprs, ", ") + ")").
				As("groupings"),
		)
	}

	query := escapeLike(filter.Query)
	if query != "" {
		qb = qb.Where(goqu.C("title").Table("book").ILike("%" + query + "%"))
	}

	author := strings.TrimSpace(filter.Author)
	if author != "" {
		qb = qb.Where(goqu.C("id").Table("book").In(
			goqu.Select("book_id").
				From("book_author").
				Where(goqu.C("author_name").Eq(author)),
		))
	}

	if len(filter.GenreIds) > 0 {
		qb = qb.Where(goqu.C("id").Table("book").In(
			goqu.Select("book_id").
				From("book_genre").
				Where(goqu.C("genre_id").In(filter.GenreIds)),
		))
	}

	language := strings.TrimSpace(filter.Language)
	if language != "" {
		qb = qb.Where(goqu.C("language").Table("book").Eq(language))
	}

	if filter.OnlyDownloaded {
		qb = qb.Where(goqu.C("downloaded_path").Table("book").Neq(""))
	}

	sql, params, err := qb.
		OrderAppend(goqu.C("title").Table("book").Asc()).
		ToSQL()
	if err != nil {
		return nil, err
	}

	var rows []pgxBookFull

	err = pgxscan.Select(ctx, p.pg, &rows, sql, params...)
	if err != nil {
		return nil, err
	}

	ret := make([]BookInGroup, 0, len(rows))
	for _, row := range rows {
		groupings := make([]Grouping, 0, len(groupingPostProcess))
		for _, pp := range groupingPostProcess {
			groupings = append(groupings, pp(&row))
		}

		ret = append(ret, BookInGroup{
			Groups: groupings,
			Book:   row.Base.intoCommon(row.Authors, row.Genres, p.l, ctx),
		})
	}

	return ret, nil
}
