package materializer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcalendar/msa-rcalendar/internal/domain/calendar"
)

// fakeIntervalRepo is a minimal in-memory calendar.IntervalRepository, just
// enough surface for the materializer to exercise against without a
// database — the same "fake repo, real algebra" shape the teacher's
// service-level tests use against a real Postgres, adapted here to stay
// dependency-free.
type fakeIntervalRepo struct {
	items map[string]calendar.Interval
	seq   int
}

func newFakeIntervalRepo() *fakeIntervalRepo {
	return &fakeIntervalRepo{items: map[string]calendar.Interval{}}
}

func (f *fakeIntervalRepo) Create(_ context.Context, i calendar.Interval) (calendar.Interval, error) {
	f.seq++
	i.ID = fmt.Sprintf("generated-%d", f.seq)
	f.items[i.ID] = i
	return i, nil
}

func (f *fakeIntervalRepo) Update(_ context.Context, i calendar.Interval) (calendar.Interval, error) {
	f.items[i.ID] = i
	return i, nil
}

func (f *fakeIntervalRepo) Delete(_ context.Context, id string) error {
	delete(f.items, id)
	return nil
}

func (f *fakeIntervalRepo) GetByID(_ context.Context, id string) (calendar.Interval, error) {
	return f.items[id], nil
}

func (f *fakeIntervalRepo) Between(_ context.Context, resourceID string, start, end time.Time) ([]calendar.Interval, error) {
	var out []calendar.Interval
	for _, i := range f.items {
		if i.ResourceID != resourceID {
			continue
		}
		if i.Start.Equal(end) || i.End.Equal(start) {
			continue
		}
		if i.End.Before(start) || i.Start.After(end) {
			continue
		}
		out = append(out, i)
	}
	return out, nil
}

func (f *fakeIntervalRepo) At(_ context.Context, resourceID string, instant time.Time) ([]calendar.Interval, error) {
	var out []calendar.Interval
	for _, i := range f.items {
		if i.ResourceID == resourceID && i.Start.Before(instant) && i.End.After(instant) {
			out = append(out, i)
		}
	}
	return out, nil
}

func (f *fakeIntervalRepo) Similar(_ context.Context, probe calendar.Interval, start, end time.Time) ([]calendar.Interval, error) {
	var out []calendar.Interval
	for _, i := range f.items {
		if !i.SameIdentity(probe) {
			continue
		}
		if i.End.Before(start) || i.Start.After(end) {
			continue
		}
		out = append(out, i)
	}
	return out, nil
}

func (f *fakeIntervalRepo) ManagersOver(_ context.Context, _ []calendar.Interval) ([]calendar.Manager, error) {
	return nil, nil
}

type fakeFragmentRepo struct {
	byMembership map[string][]calendar.ScheduleFragment
}

func (f *fakeFragmentRepo) ListByMembership(_ context.Context, membershipID string) ([]calendar.ScheduleFragment, error) {
	return f.byMembership[membershipID], nil
}

func (f *fakeFragmentRepo) ReplaceForMembership(_ context.Context, membershipID string, fragments []calendar.ScheduleFragment) error {
	f.byMembership[membershipID] = fragments
	return nil
}

func (f *fakeFragmentRepo) ListByResourceExcludingMembership(_ context.Context, _, _ string) ([]calendar.ScheduleFragment, error) {
	return nil, nil
}

type fakeMembershipRepo struct {
	extendedTo map[string]time.Time
}

func (f *fakeMembershipRepo) Create(_ context.Context, m calendar.ResourceMembership) (calendar.ResourceMembership, error) {
	return m, nil
}
func (f *fakeMembershipRepo) GetByID(_ context.Context, id string) (calendar.ResourceMembership, error) {
	return calendar.ResourceMembership{ID: id}, nil
}
func (f *fakeMembershipRepo) GetByResourceAndOrganization(_ context.Context, _, _ string) (calendar.ResourceMembership, error) {
	return calendar.ResourceMembership{}, nil
}
func (f *fakeMembershipRepo) ListByResource(_ context.Context, _ string) ([]calendar.ResourceMembership, error) {
	return nil, nil
}
func (f *fakeMembershipRepo) Delete(_ context.Context, _ string) error { return nil }
func (f *fakeMembershipRepo) SetFulltime(_ context.Context, _ string, _ bool) error {
	return nil
}
func (f *fakeMembershipRepo) UpdateScheduleExtendedTo(_ context.Context, id string, extendedTo time.Time) error {
	f.extendedTo[id] = extendedTo
	return nil
}
func (f *fakeMembershipRepo) ResourcesByOrganization(_ context.Context, _ string, _, _ bool) ([]calendar.Resource, error) {
	return nil, nil
}
func (f *fakeMembershipRepo) ListStaleSchedules(_ context.Context, _ time.Time) ([]calendar.ResourceMembership, error) {
	return nil, nil
}

func mustParseT(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

// TestApplySchedule_WeeklyProjection is scenario S5: a membership with
// fragments {Mon 09-12, Wed 14-16} materializes into OrgReserved intervals
// on the matching weekdays across a two-week range.
func TestApplySchedule_WeeklyProjection(t *testing.T) {
	ctx := context.Background()
	intervals := newFakeIntervalRepo()
	fragments := &fakeFragmentRepo{byMembership: map[string][]calendar.ScheduleFragment{}}
	memberships := &fakeMembershipRepo{extendedTo: map[string]time.Time{}}
	deps := Deps{Intervals: intervals, Fragments: fragments, Memberships: memberships}

	membership := calendar.ResourceMembership{ID: "m1", ResourceID: "r1", OrganizationID: "o1"}
	template := []calendar.ScheduleFragment{
		{DayOfWeek: 1, StartTime: timeOnly(9, 0), EndTime: timeOnly(12, 0)}, // Monday
		{DayOfWeek: 3, StartTime: timeOnly(14, 0), EndTime: timeOnly(16, 0)}, // Wednesday
	}

	start := mustParseT(t, "2024-01-01T00:00:00Z") // Monday
	end := mustParseT(t, "2024-01-15T00:00:00Z")

	changed, err := ApplySchedule(ctx, deps, membership, start, end, template, true)
	require.NoError(t, err)
	assert.True(t, changed)

	var mondays, wednesdays int
	for _, i := range intervals.items {
		if i.Kind == calendar.KindScheduledUnavailable {
			// the hours the template leaves uncovered, stored by
			// carveScheduledUnavailable alongside the projection
			continue
		}
		require.Equal(t, calendar.KindOrgReserved, i.Kind)
		switch i.Start.Weekday() {
		case time.Monday:
			mondays++
			assert.Equal(t, 9, i.Start.Hour())
			assert.Equal(t, 12, i.End.Hour())
		case time.Wednesday:
			wednesdays++
			assert.Equal(t, 14, i.Start.Hour())
			assert.Equal(t, 16, i.End.Hour())
		default:
			t.Fatalf("unexpected interval on %s", i.Start.Weekday())
		}
	}
	assert.Equal(t, 2, mondays, "Jan 1 and Jan 8")
	assert.Equal(t, 2, wednesdays, "Jan 3 and Jan 10")
	assert.Equal(t, template, fragments.byMembership["m1"], "save_as_default persists the template")
}

// TestApplySchedule_Idempotent re-runs the same projection and expects no
// additional intervals: the clear-then-rebuild in step 4 prevents drift.
func TestApplySchedule_Idempotent(t *testing.T) {
	ctx := context.Background()
	intervals := newFakeIntervalRepo()
	fragments := &fakeFragmentRepo{byMembership: map[string][]calendar.ScheduleFragment{}}
	memberships := &fakeMembershipRepo{extendedTo: map[string]time.Time{}}
	deps := Deps{Intervals: intervals, Fragments: fragments, Memberships: memberships}

	membership := calendar.ResourceMembership{ID: "m1", ResourceID: "r1", OrganizationID: "o1"}
	template := []calendar.ScheduleFragment{
		{DayOfWeek: 1, StartTime: timeOnly(9, 0), EndTime: timeOnly(12, 0)},
	}
	start := mustParseT(t, "2024-01-01T00:00:00Z")
	end := mustParseT(t, "2024-01-08T00:00:00Z")

	_, err := ApplySchedule(ctx, deps, membership, start, end, template, false)
	require.NoError(t, err)
	firstCount := len(intervals.items)

	_, err = ApplySchedule(ctx, deps, membership, start, end, template, false)
	require.NoError(t, err)
	assert.Equal(t, firstCount, len(intervals.items))
}

func timeOnly(h, m int) time.Time {
	return time.Date(0, 1, 1, h, m, 0, 0, time.UTC)
}
