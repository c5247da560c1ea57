package authors

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"opdsgrab/internal/types"
)

func NewPGXRepository(pg *pgxpool.Pool, l *slog.Logger) Repository {
	return &pgxRepo{pg: pg, g: goqu.Dialect("postgres"), l: l}
}

type pgxRepo struct {
	pg *pgxpool.Pool
	g  goqu.DialectWrapper
	l  *slog.Logger
}

type pgxAuthor struct {
	Name  string `db:"name"`
	Books uint32 `db:"books"`
}

func (a *pgxAuthor) intoCommon() *types.Author {
	return &types.Author{
		Name:  a.Name,
		Books: a.Books,
	}
}

func (p *pgxRepo) selectAuthors() *goqu.SelectDataset {
	return p.g.From(goqu.T("author").As("a")).
		Select(
			goqu.I("a.name").As("name"),
			goqu.L("count(ba.book_id)").As("books"),
		).
		LeftJoin(goqu.T("book_author").As("ba"), goqu.On(goqu.I("ba.author_name").Eq(goqu.I("a.name")))).
		GroupBy(goqu.I("a.name"))
}

func (p *pgxRepo) GetByName(ctx context.Context, name string) (*types.Author, error) {
	sql, params, err := p.selectAuthors().
		Where(goqu.I("a.name").Eq(name)).
		ToSQL()
	if err != nil {
		return nil, err
	}

	var row pgxAuthor

	err = pgxscan.Get(ctx, p.pg, &row, sql, params...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = nil
		}
		return nil, err
	}

	return row.intoCommon(), nil
}

func (p *pgxRepo) Save(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return nil
	}

	vals := make([][]any, 0, len(names))
	for _, name := range names {
		vals = append(vals, []any{name})
	}

	sql, params, err := p.g.Insert("author").
		Cols("name").
		Vals(vals...).
		OnConflict(goqu.DoNothing()).
		ToSQL()
	if err != nil {
		return err
	}

	_, err = p.pg.Exec(ctx, sql, params...)
	if err != nil {
		p.l.ErrorContext(ctx, "Failed to save authors: "+err.Error())
	}

	return err
}

func (p *pgxRepo) Search(ctx context.Context, query string, limit int) ([]*types.Author, error) {
	qb := p.selectAuthors().
		Order(goqu.I("a.name").Asc()).
		Limit(uint(limit))

	for _, word := range strings.Split(query, " ") {
		word = strings.ReplaceAll(strings.ReplaceAll(strings.ReplaceAll(strings.TrimSpace(word),
			"\\", "\\\\"),
			"_", "\\_"),
			"%", "\\%")
		if word != "" {
			qb = qb.Where(goqu.I("a.name").ILike("%" + word + "%"))
		}
	}

	sql, params, err := qb.ToSQL()
	if err != nil {
		return nil, err
	}

	var rows []pgxAuthor

	err = pgxscan.Select(ctx, p.pg, &rows, sql, params...)
	if err != nil {
		return nil, err
	}

	ret := make([]*types.Author, 0, len(rows))
	for _, row := range rows {
		ret = append(ret, row.intoCommon())
	}

	return ret, nil
}
