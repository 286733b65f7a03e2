package postgresql

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rcalendar/msa-rcalendar/internal/domain/calendar"
	"github.com/rcalendar/msa-rcalendar/internal/pkg/database"
)

type membershipRepositoryImpl struct {
	db *database.DB
}

// NewMembershipRepository wires a calendar.MembershipRepository against
// the shared pool/tx-aware Querier.
func NewMembershipRepository(db *database.DB) calendar.MembershipRepository {
	return &membershipRepositoryImpl{db: db}
}

func (r *membershipRepositoryImpl) Create(ctx context.Context, m calendar.ResourceMembership) (calendar.ResourceMembership, error) {
	q := GetQuerier(ctx, r.db)
	query := `
		INSERT INTO resource_memberships (id, resource_id, organization_id, fulltime, schedule_extended_to, created_at)
		VALUES (uuidv7(), $1, $2, $3, $4, NOW())
		RETURNING id, created_at
	`
	err := q.QueryRow(ctx, query, m.ResourceID, m.OrganizationID, m.Fulltime, m.ScheduleExtendedTo).
		Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return calendar.ResourceMembership{}, calendar.ErrDuplicateExternalID
		}
		return calendar.ResourceMembership{}, err
	}
	return m, nil
}

func (r *membershipRepositoryImpl) GetByID(ctx context.Context, id string) (calendar.ResourceMembership, error) {
	q := GetQuerier(ctx, r.db)
	return scanMembership(q.QueryRow(ctx, `
		SELECT id, resource_id, organization_id, fulltime, schedule_extended_to, created_at
		FROM resource_memberships WHERE id = $1
	`, id))
}

func (r *membershipRepositoryImpl) GetByResourceAndOrganization(ctx context.Context, resourceID, organizationID string) (calendar.ResourceMembership, error) {
	q := GetQuerier(ctx, r.db)
	return scanMembership(q.QueryRow(ctx, `
		SELECT id, resource_id, organization_id, fulltime, schedule_extended_to, created_at
		FROM resource_memberships WHERE resource_id = $1 AND organization_id = $2
	`, resourceID, organizationID))
}

func (r *membershipRepositoryImpl) ListByResource(ctx context.Context, resourceID string) ([]calendar.ResourceMembership, error) {
	q := GetQuerier(ctx, r.db)
	rows, err := q.Query(ctx, `
		SELECT id, resource_id, organization_id, fulltime, schedule_extended_to, created_at
		FROM resource_memberships WHERE resource_id = $1
	`, resourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []calendar.ResourceMembership
	for rows.Next() {
		var m calendar.ResourceMembership
		if err := rows.Scan(&m.ID, &m.ResourceID, &m.OrganizationID, &m.Fulltime, &m.ScheduleExtendedTo, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *membershipRepositoryImpl) Delete(ctx context.Context, id string) error {
	q := GetQuerier(ctx, r.db)
	commandTag, err := q.Exec(ctx, `DELETE FROM resource_memberships WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if commandTag.RowsAffected() == 0 {
		return calendar.ErrMembershipNotFound
	}
	return nil
}

func (r *membershipRepositoryImpl) SetFulltime(ctx context.Context, id string, fulltime bool) error {
	q := GetQuerier(ctx, r.db)
	commandTag, err := q.Exec(ctx, `UPDATE resource_memberships SET fulltime = $1 WHERE id = $2`, fulltime, id)
	if err != nil {
		return err
	}
	if commandTag.RowsAffected() == 0 {
		return calendar.ErrMembershipNotFound
	}
	return nil
}

func (r *membershipRepositoryImpl) UpdateScheduleExtendedTo(ctx context.Context, id string, extendedTo time.Time) error {
	q := GetQuerier(ctx, r.db)
	commandTag, err := q.Exec(ctx, `UPDATE resource_memberships SET schedule_extended_to = $1 WHERE id = $2`, extendedTo, id)
	if err != nil {
		return err
	}
	if commandTag.RowsAffected() == 0 {
		return calendar.ErrMembershipNotFound
	}
	return nil
}

// ResourcesByOrganization restores Organization.get_resource_ids from the
// original source (SPEC_FULL §3): the roster of resources belonging to an
// organization, optionally narrowed to fulltime-only or parttime-only
// members, used when /organization/{id}/intervals/ is queried without a
// resource filter.
func (r *membershipRepositoryImpl) ResourcesByOrganization(ctx context.Context, organizationID string, fulltimeOnly, parttimeOnly bool) ([]calendar.Resource, error) {
	q := GetQuerier(ctx, r.db)
	query := `
		SELECT res.id, res.app, res.external_id, res.created_at
		FROM resources res
		JOIN resource_memberships rm ON rm.resource_id = res.id
		WHERE rm.organization_id = $1
	`
	switch {
	case fulltimeOnly:
		query += ` AND rm.fulltime = true`
	case parttimeOnly:
		query += ` AND rm.fulltime = false`
	}

	rows, err := q.Query(ctx, query, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []calendar.Resource
	for rows.Next() {
		var res calendar.Resource
		if err := rows.Scan(&res.ID, &res.App, &res.ExternalID, &res.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// ListStaleSchedules finds every membership due for a roll-forward: any
// membership with no persisted watermark yet, fulltime or not, or whose
// watermark has fallen behind before.
func (r *membershipRepositoryImpl) ListStaleSchedules(ctx context.Context, before time.Time) ([]calendar.ResourceMembership, error) {
	q := GetQuerier(ctx, r.db)
	rows, err := q.Query(ctx, `
		SELECT id, resource_id, organization_id, fulltime, schedule_extended_to, created_at
		FROM resource_memberships
		WHERE schedule_extended_to IS NULL OR schedule_extended_to < $1
	`, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []calendar.ResourceMembership
	for rows.Next() {
		var m calendar.ResourceMembership
		if err := rows.Scan(&m.ID, &m.ResourceID, &m.OrganizationID, &m.Fulltime, &m.ScheduleExtendedTo, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMembership(row pgx.Row) (calendar.ResourceMembership, error) {
	var m calendar.ResourceMembership
	err := row.Scan(&m.ID, &m.ResourceID, &m.OrganizationID, &m.Fulltime, &m.ScheduleExtendedTo, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return calendar.ResourceMembership{}, calendar.ErrMembershipNotFound
		}
		return calendar.ResourceMembership{}, err
	}
	return m, nil
}
