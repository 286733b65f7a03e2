package postgresql

import (
	"context"
	"time"

	"github.com/rcalendar/msa-rcalendar/internal/domain/calendar"
	"github.com/rcalendar/msa-rcalendar/internal/pkg/database"
)

type scheduleFragmentRepositoryImpl struct {
	db *database.DB
}

// NewScheduleFragmentRepository wires a calendar.ScheduleFragmentRepository
// against the shared pool/tx-aware Querier. Fragment times are stored as
// plain HH:MM:SS text (not a Postgres `time`/`timetz` column): every
// fragment is already UTC-normalized by the time it reaches this layer
// (temporal.NormalizeToUTC), so the column only ever needs to round-trip a
// clock reading, and text keeps the driver-side type mapping trivial.
func NewScheduleFragmentRepository(db *database.DB) calendar.ScheduleFragmentRepository {
	return &scheduleFragmentRepositoryImpl{db: db}
}

func (r *scheduleFragmentRepositoryImpl) ListByMembership(ctx context.Context, membershipID string) ([]calendar.ScheduleFragment, error) {
	q := GetQuerier(ctx, r.db)
	rows, err := q.Query(ctx, `
		SELECT id, membership_id, day_of_week, start_time, end_time
		FROM schedule_fragments WHERE membership_id = $1
		ORDER BY day_of_week, start_time
	`, membershipID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFragments(rows)
}

func (r *scheduleFragmentRepositoryImpl) ReplaceForMembership(ctx context.Context, membershipID string, fragments []calendar.ScheduleFragment) error {
	q := GetQuerier(ctx, r.db)
	if _, err := q.Exec(ctx, `DELETE FROM schedule_fragments WHERE membership_id = $1`, membershipID); err != nil {
		return err
	}
	for _, f := range fragments {
		_, err := q.Exec(ctx, `
			INSERT INTO schedule_fragments (id, membership_id, day_of_week, start_time, end_time)
			VALUES (uuidv7(), $1, $2, $3, $4)
		`, membershipID, f.DayOfWeek, formatTimeOfDay(f.StartTime), formatTimeOfDay(f.EndTime))
		if err != nil {
			return err
		}
	}
	return nil
}

// ListByResourceExcludingMembership enforces Invariant 7: every fragment
// belonging to the resource's other memberships, used to detect a
// cross-organization schedule conflict.
func (r *scheduleFragmentRepositoryImpl) ListByResourceExcludingMembership(ctx context.Context, resourceID, excludeMembershipID string) ([]calendar.ScheduleFragment, error) {
	q := GetQuerier(ctx, r.db)
	rows, err := q.Query(ctx, `
		SELECT sf.id, sf.membership_id, sf.day_of_week, sf.start_time, sf.end_time
		FROM schedule_fragments sf
		JOIN resource_memberships rm ON rm.id = sf.membership_id
		WHERE rm.resource_id = $1 AND rm.id != $2
	`, resourceID, excludeMembershipID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFragments(rows)
}

type fragmentRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanFragments(rows fragmentRows) ([]calendar.ScheduleFragment, error) {
	var out []calendar.ScheduleFragment
	for rows.Next() {
		var f calendar.ScheduleFragment
		var start, end string
		if err := rows.Scan(&f.ID, &f.MembershipID, &f.DayOfWeek, &start, &end); err != nil {
			return nil, err
		}
		var err error
		if f.StartTime, err = parseTimeOfDay(start); err != nil {
			return nil, err
		}
		if f.EndTime, err = parseTimeOfDay(end); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func formatTimeOfDay(t time.Time) string {
	return t.In(time.UTC).Format("15:04:05")
}

func parseTimeOfDay(s string) (time.Time, error) {
	return time.ParseInLocation("15:04:05", s, time.UTC)
}
