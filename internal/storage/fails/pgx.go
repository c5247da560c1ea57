package fails

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
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

type pgxTarget struct {
	Url      string                `json:"url"`
	Type     uint8                 `json:"type"`
	Language *types.Language       `json:"language,omitempty"`
	Book     *types.DownloadTarget `json:"book,omitempty"`
}

type pgxRecord struct {
	Id        uint64     `db:"id"`
	RunId     uuid.UUID  `db:"run_id"`
	StartTime *time.Time `db:"start_time"`
	Target    pgxTarget  `db:"target"`
	Error     string     `db:"error"`
}

func (p *pgxRepo) Save(ctx context.Context, runId uuid.UUID, startTime *time.Time, target types.Target, cause error) error {
	targetRow := pgxTarget{
		Type:     uint8(target.Type),
		Language: target.Language,
		Book:     target.Book,
	}

	if target.Url != nil {
		targetRow.Url = target.Url.String()
	}

	targetJson, err := json.Marshal(targetRow)
	if err != nil {
		return err
	}

	sql, params, err := p.g.Insert("fail").
		Rows(goqu.Record{
			"run_id":     runId,
			"start_time": startTime,
			"target":     string(targetJson),
			"error":      cause.Error(),
		}).
		ToSQL()
	if err != nil {
		return err
	}

	_, err = p.pg.Exec(ctx, sql, params...)
	return err
}

func (p *pgxRepo) GetFails(ctx context.Context, runId uuid.UUID, notAfter *time.Time, limit uint) ([]*Record, error) {
	qb := p.g.From("fail").
		Order(goqu.C("start_time").Desc(), goqu.C("id").Asc()).
		Limit(limit)

	if notAfter != nil {
		qb = qb.Where(goqu.C("start_time").Lte(notAfter))
	}

	if runId != uuid.Nil {
		qb = qb.Where(goqu.C("run_id").Eq(runId))
	}

	sql, params, err := qb.ToSQL()
	if err != nil {
		return nil, err
	}

	var rows []pgxRecord

	err = pgxscan.Select(ctx, p.pg, &rows, sql, params...)
	if err != nil {
		return nil, err
	}

	ret := make([]*Record, 0, len(rows))
	for _, row := range rows {
		var u *url.URL
		if row.Target.Url != "" {
			u, err = url.Parse(row.Target.Url)
			if err != nil {
				p.l.ErrorContext(ctx, "Failed to parse fail target URL stored in DB ("+row.Target.Url+"): "+err.Error())
				continue
			}
		}

		ret = append(ret, &Record{
			Id:        row.Id,
			RunId:     row.RunId,
			StartTime: row.StartTime,
			Target: types.Target{
				Url:      u,
				Type:     types.TargetType(row.Target.Type),
				Language: row.Target.Language,
				Book:     row.Target.Book,
			},
			Error: row.Error,
		})
	}

	return ret, nil
}

func (p *pgxRepo) DeleteById(ctx context.Context, id uint64) error {
	sql, params, err := p.g.Delete("fail").
		Where(goqu.C("id").Eq(id)).
		ToSQL()
	if err != nil {
		return err
	}

	_, err = p.pg.Exec(ctx, sql, params...)
	return err
}
