package postgresql

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rcalendar/msa-rcalendar/internal/domain/calendar"
	"github.com/rcalendar/msa-rcalendar/internal/pkg/database"
)

type resourceRepositoryImpl struct {
	db *database.DB
}

// NewResourceRepository wires a calendar.ResourceRepository against the
// shared pool/tx-aware Querier.
func NewResourceRepository(db *database.DB) calendar.ResourceRepository {
	return &resourceRepositoryImpl{db: db}
}

func (r *resourceRepositoryImpl) Create(ctx context.Context, res calendar.Resource) (calendar.Resource, error) {
	q := GetQuerier(ctx, r.db)
	query := `
		INSERT INTO resources (id, app, external_id, created_at)
		VALUES (uuidv7(), $1, $2, NOW())
		RETURNING id, created_at
	`
	err := q.QueryRow(ctx, query, res.App, res.ExternalID).Scan(&res.ID, &res.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return calendar.Resource{}, calendar.ErrDuplicateExternalID
		}
		return calendar.Resource{}, err
	}
	return res, nil
}

func (r *resourceRepositoryImpl) GetByID(ctx context.Context, app, id string) (calendar.Resource, error) {
	q := GetQuerier(ctx, r.db)
	var res calendar.Resource
	err := q.QueryRow(ctx, `SELECT id, app, external_id, created_at FROM resources WHERE id = $1 AND app = $2`, id, app).
		Scan(&res.ID, &res.App, &res.ExternalID, &res.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return calendar.Resource{}, calendar.ErrResourceNotFound
		}
		return calendar.Resource{}, err
	}
	return res, nil
}

func (r *resourceRepositoryImpl) GetByExternalID(ctx context.Context, app string, externalID int64) (calendar.Resource, error) {
	q := GetQuerier(ctx, r.db)
	var res calendar.Resource
	err := q.QueryRow(ctx, `SELECT id, app, external_id, created_at FROM resources WHERE app = $1 AND external_id = $2`, app, externalID).
		Scan(&res.ID, &res.App, &res.ExternalID, &res.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return calendar.Resource{}, calendar.ErrResourceNotFound
		}
		return calendar.Resource{}, err
	}
	return res, nil
}

func (r *resourceRepositoryImpl) Delete(ctx context.Context, app, id string) error {
	q := GetQuerier(ctx, r.db)
	commandTag, err := q.Exec(ctx, `DELETE FROM resources WHERE id = $1 AND app = $2`, id, app)
	if err != nil {
		return err
	}
	if commandTag.RowsAffected() == 0 {
		return calendar.ErrResourceNotFound
	}
	return nil
}
