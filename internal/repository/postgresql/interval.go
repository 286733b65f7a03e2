package postgresql

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rcalendar/msa-rcalendar/internal/domain/calendar"
	"github.com/rcalendar/msa-rcalendar/internal/pkg/database"
)

type intervalRepositoryImpl struct {
	db *database.DB
}

// NewIntervalRepository wires the calendar.IntervalRepository the
// interval algebra's persistent Bag runs against.
func NewIntervalRepository(db *database.DB) calendar.IntervalRepository {
	return &intervalRepositoryImpl{db: db}
}

func (r *intervalRepositoryImpl) Create(ctx context.Context, i calendar.Interval) (calendar.Interval, error) {
	q := GetQuerier(ctx, r.db)
	query := `
		INSERT INTO intervals (id, resource_id, kind, start_at, end_at, organization_id, manager_id, comment, created_at)
		VALUES (uuidv7(), $1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING id, created_at
	`
	err := q.QueryRow(ctx, query, i.ResourceID, i.Kind, i.Start, i.End, i.OrganizationID, i.ManagerID, i.Comment).
		Scan(&i.ID, &i.CreatedAt)
	if err != nil {
		return calendar.Interval{}, err
	}
	return i, nil
}

func (r *intervalRepositoryImpl) Update(ctx context.Context, i calendar.Interval) (calendar.Interval, error) {
	q := GetQuerier(ctx, r.db)
	commandTag, err := q.Exec(ctx, `
		UPDATE intervals
		SET start_at = $1, end_at = $2, organization_id = $3, manager_id = $4, comment = $5
		WHERE id = $6
	`, i.Start, i.End, i.OrganizationID, i.ManagerID, i.Comment, i.ID)
	if err != nil {
		return calendar.Interval{}, err
	}
	if commandTag.RowsAffected() == 0 {
		return calendar.Interval{}, calendar.ErrIntervalNotFound
	}
	return i, nil
}

func (r *intervalRepositoryImpl) Delete(ctx context.Context, id string) error {
	q := GetQuerier(ctx, r.db)
	_, err := q.Exec(ctx, `DELETE FROM intervals WHERE id = $1`, id)
	return err
}

func (r *intervalRepositoryImpl) GetByID(ctx context.Context, id string) (calendar.Interval, error) {
	q := GetQuerier(ctx, r.db)
	i, err := scanInterval(q.QueryRow(ctx, `
		SELECT id, resource_id, kind, start_at, end_at, organization_id, manager_id, comment, created_at
		FROM intervals WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return calendar.Interval{}, calendar.ErrIntervalNotFound
		}
		return calendar.Interval{}, err
	}
	return i, nil
}

// Between returns every interval on resourceID whose [start,end) touches,
// is contained in, or contains [start,end), excluding intervals that only
// meet the query window at a boundary (half-open semantics, spec §4B): an
// interval starting exactly at the query's end, or ending exactly at the
// query's start, does not overlap.
func (r *intervalRepositoryImpl) Between(ctx context.Context, resourceID string, start, end time.Time) ([]calendar.Interval, error) {
	q := GetQuerier(ctx, r.db)
	rows, err := q.Query(ctx, `
		SELECT id, resource_id, kind, start_at, end_at, organization_id, manager_id, comment, created_at
		FROM intervals
		WHERE resource_id = $1 AND start_at < $3 AND end_at > $2
	`, resourceID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIntervals(rows)
}

// At returns intervals strictly covering instant (open at the endpoints).
func (r *intervalRepositoryImpl) At(ctx context.Context, resourceID string, instant time.Time) ([]calendar.Interval, error) {
	q := GetQuerier(ctx, r.db)
	rows, err := q.Query(ctx, `
		SELECT id, resource_id, kind, start_at, end_at, organization_id, manager_id, comment, created_at
		FROM intervals
		WHERE resource_id = $1 AND start_at < $2 AND end_at > $2
	`, resourceID, instant)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIntervals(rows)
}

// Similar returns intervals sharing (resource, kind, organization,
// manager) with i, excluding i itself. NULL organization/manager compare
// equal to NULL via IS NOT DISTINCT FROM, not `=` (spec §9's explicit
// callout — `=` against NULL is never true in SQL and would silently drop
// every Unavailable interval's similar set).
func (r *intervalRepositoryImpl) Similar(ctx context.Context, i calendar.Interval, start, end time.Time) ([]calendar.Interval, error) {
	q := GetQuerier(ctx, r.db)
	rows, err := q.Query(ctx, `
		SELECT id, resource_id, kind, start_at, end_at, organization_id, manager_id, comment, created_at
		FROM intervals
		WHERE resource_id = $1
		  AND kind = $2
		  AND organization_id IS NOT DISTINCT FROM $3
		  AND manager_id IS NOT DISTINCT FROM $4
		  AND id != $5
		  AND start_at <= $7 AND end_at >= $6
	`, i.ResourceID, i.Kind, i.OrganizationID, i.ManagerID, i.ID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIntervals(rows)
}

// ManagersOver returns the distinct managers appearing in ManagerReserved
// or OrgReserved intervals among the given set.
func (r *intervalRepositoryImpl) ManagersOver(ctx context.Context, intervals []calendar.Interval) ([]calendar.Manager, error) {
	ids := make(map[string]struct{})
	for _, i := range intervals {
		if i.ManagerID != nil && (i.Kind == calendar.KindManagerReserved || i.Kind == calendar.KindOrgReserved) {
			ids[*i.ManagerID] = struct{}{}
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	managerIDs := make([]string, 0, len(ids))
	for id := range ids {
		managerIDs = append(managerIDs, id)
	}

	q := GetQuerier(ctx, r.db)
	rows, err := q.Query(ctx, `
		SELECT id, app, external_id, created_at FROM managers WHERE id = ANY($1)
	`, managerIDs)
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

func scanInterval(row pgx.Row) (calendar.Interval, error) {
	var i calendar.Interval
	err := row.Scan(&i.ID, &i.ResourceID, &i.Kind, &i.Start, &i.End, &i.OrganizationID, &i.ManagerID, &i.Comment, &i.CreatedAt)
	return i, err
}

type intervalRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanIntervals(rows intervalRows) ([]calendar.Interval, error) {
	var out []calendar.Interval
	for rows.Next() {
		var i calendar.Interval
		if err := rows.Scan(&i.ID, &i.ResourceID, &i.Kind, &i.Start, &i.End, &i.OrganizationID, &i.ManagerID, &i.Comment, &i.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}
