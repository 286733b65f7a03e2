package postgresql

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rcalendar/msa-rcalendar/internal/domain/calendar"
	"github.com/rcalendar/msa-rcalendar/internal/pkg/database"
)

type managerRepositoryImpl struct {
	db *database.DB
}

// NewManagerRepository wires a calendar.ManagerRepository, including its
// M:N organization membership edges, against the shared pool/tx-aware
// Querier.
func NewManagerRepository(db *database.DB) calendar.ManagerRepository {
	return &managerRepositoryImpl{db: db}
}

func (r *managerRepositoryImpl) Create(ctx context.Context, m calendar.Manager) (calendar.Manager, error) {
	q := GetQuerier(ctx, r.db)
	query := `
		INSERT INTO managers (id, app, external_id, created_at)
		VALUES (uuidv7(), $1, $2, NOW())
		RETURNING id, created_at
	`
	err := q.QueryRow(ctx, query, m.App, m.ExternalID).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return calendar.Manager{}, calendar.ErrDuplicateExternalID
		}
		return calendar.Manager{}, err
	}
	return m, nil
}

func (r *managerRepositoryImpl) GetByID(ctx context.Context, app, id string) (calendar.Manager, error) {
	q := GetQuerier(ctx, r.db)
	var m calendar.Manager
	err := q.QueryRow(ctx, `SELECT id, app, external_id, created_at FROM managers WHERE id = $1 AND app = $2`, id, app).
		Scan(&m.ID, &m.App, &m.ExternalID, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return calendar.Manager{}, calendar.ErrManagerNotFound
		}
		return calendar.Manager{}, err
	}
	return m, nil
}

func (r *managerRepositoryImpl) GetByExternalID(ctx context.Context, app string, externalID int64) (calendar.Manager, error) {
	q := GetQuerier(ctx, r.db)
	var m calendar.Manager
	err := q.QueryRow(ctx, `SELECT id, app, external_id, created_at FROM managers WHERE app = $1 AND external_id = $2`, app, externalID).
		Scan(&m.ID, &m.App, &m.ExternalID, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return calendar.Manager{}, calendar.ErrManagerNotFound
		}
		return calendar.Manager{}, err
	}
	return m, nil
}

func (r *managerRepositoryImpl) Delete(ctx context.Context, app, id string) error {
	q := GetQuerier(ctx, r.db)
	commandTag, err := q.Exec(ctx, `DELETE FROM managers WHERE id = $1 AND app = $2`, id, app)
	if err != nil {
		return err
	}
	if commandTag.RowsAffected() == 0 {
		return calendar.ErrManagerNotFound
	}
	return nil
}

func (r *managerRepositoryImpl) AddToOrganization(ctx context.Context, managerID, organizationID string) error {
	q := GetQuerier(ctx, r.db)
	_, err := q.Exec(ctx, `
		INSERT INTO organization_managers (organization_id, manager_id)
		VALUES ($1, $2)
		ON CONFLICT (organization_id, manager_id) DO NOTHING
	`, organizationID, managerID)
	return err
}

func (r *managerRepositoryImpl) RemoveFromOrganization(ctx context.Context, managerID, organizationID string) error {
	q := GetQuerier(ctx, r.db)
	_, err := q.Exec(ctx, `
		DELETE FROM organization_managers WHERE organization_id = $1 AND manager_id = $2
	`, organizationID, managerID)
	return err
}

func (r *managerRepositoryImpl) IsMemberOf(ctx context.Context, managerID, organizationID string) (bool, error) {
	q := GetQuerier(ctx, r.db)
	var exists bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM organization_managers WHERE organization_id = $1 AND manager_id = $2)
	`, organizationID, managerID).Scan(&exists)
	return exists, err
}

func (r *managerRepositoryImpl) ListByOrganization(ctx context.Context, organizationID string) ([]calendar.Manager, error) {
	q := GetQuerier(ctx, r.db)
	rows, err := q.Query(ctx, `
		SELECT m.id, m.app, m.external_id, m.created_at
		FROM managers m
		JOIN organization_managers om ON om.manager_id = m.id
		WHERE om.organization_id = $1
		ORDER BY m.external_id
	`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []calendar.Manager
	for rows.Next() {
		var m calendar.Manager
		if err := rows.Scan(&m.ID, &m.App, &m.ExternalID, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
