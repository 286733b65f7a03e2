package postgresql

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rcalendar/msa-rcalendar/internal/domain/calendar"
	"github.com/rcalendar/msa-rcalendar/internal/pkg/database"
)

type organizationRepositoryImpl struct {
	db *database.DB
}

// NewOrganizationRepository wires a calendar.OrganizationRepository
// against the shared pool/tx-aware Querier.
func NewOrganizationRepository(db *database.DB) calendar.OrganizationRepository {
	return &organizationRepositoryImpl{db: db}
}

func (r *organizationRepositoryImpl) Create(ctx context.Context, org calendar.Organization) (calendar.Organization, error) {
	q := GetQuerier(ctx, r.db)
	query := `
		INSERT INTO organizations (id, app, external_id, created_at)
		VALUES (uuidv7(), $1, $2, NOW())
		RETURNING id, created_at
	`
	err := q.QueryRow(ctx, query, org.App, org.ExternalID).Scan(&org.ID, &org.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return calendar.Organization{}, calendar.ErrDuplicateExternalID
		}
		return calendar.Organization{}, err
	}
	return org, nil
}

func (r *organizationRepositoryImpl) GetByID(ctx context.Context, app, id string) (calendar.Organization, error) {
	q := GetQuerier(ctx, r.db)
	query := `SELECT id, app, external_id, created_at FROM organizations WHERE id = $1 AND app = $2`
	var org calendar.Organization
	err := q.QueryRow(ctx, query, id, app).Scan(&org.ID, &org.App, &org.ExternalID, &org.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return calendar.Organization{}, calendar.ErrOrganizationNotFound
		}
		return calendar.Organization{}, err
	}
	return org, nil
}

func (r *organizationRepositoryImpl) GetByExternalID(ctx context.Context, app string, externalID int64) (calendar.Organization, error) {
	q := GetQuerier(ctx, r.db)
	query := `SELECT id, app, external_id, created_at FROM organizations WHERE app = $1 AND external_id = $2`
	var org calendar.Organization
	err := q.QueryRow(ctx, query, app, externalID).Scan(&org.ID, &org.App, &org.ExternalID, &org.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return calendar.Organization{}, calendar.ErrOrganizationNotFound
		}
		return calendar.Organization{}, err
	}
	return org, nil
}

func (r *organizationRepositoryImpl) Delete(ctx context.Context, app, id string) error {
	q := GetQuerier(ctx, r.db)
	// Cascades to resource_memberships, schedule_fragments and intervals
	// via the FK ON DELETE CASCADE policy (spec §9's "soft-delete on
	// cascade... kept").
	commandTag, err := q.Exec(ctx, `DELETE FROM organizations WHERE id = $1 AND app = $2`, id, app)
	if err != nil {
		return err
	}
	if commandTag.RowsAffected() == 0 {
		return calendar.ErrOrganizationNotFound
	}
	return nil
}
