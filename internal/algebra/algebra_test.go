package algebra

import (
	"context"
	"testing"
	"time"

	"github.com/rcalendar/msa-rcalendar/internal/domain/calendar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func TestJoinInto_OverlapMerge(t *testing.T) {
	// S1 — Join overlap: A=[10:00,11:00], B=[10:55,12:00], save C=[11:30,11:45].
	ctx := context.Background()
	a := calendar.Interval{ID: "a", ResourceID: "r1", Kind: calendar.KindOrgReserved,
		Start: mustParse(t, "2024-01-01T10:00:00Z"), End: mustParse(t, "2024-01-01T11:00:00Z")}
	b := calendar.Interval{ID: "b", ResourceID: "r1", Kind: calendar.KindOrgReserved,
		Start: mustParse(t, "2024-01-01T10:55:00Z"), End: mustParse(t, "2024-01-01T12:00:00Z")}
	c := calendar.Interval{ID: "c", ResourceID: "r1", Kind: calendar.KindOrgReserved,
		Start: mustParse(t, "2024-01-01T11:30:00Z"), End: mustParse(t, "2024-01-01T11:45:00Z")}

	items := []calendar.Interval{a, b}
	bag := NewMemoryBag(&items)

	widened, changed, err := JoinInto(ctx, bag, c, calendar.JoinGap)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, widened.Start.Equal(mustParse(t, "2024-01-01T10:00:00Z")))
	assert.True(t, widened.End.Equal(mustParse(t, "2024-01-01T12:00:00Z")))
	assert.Empty(t, items, "both similar intervals should have been absorbed")
}

func TestJoinInto_Idempotent(t *testing.T) {
	ctx := context.Background()
	a := calendar.Interval{ID: "a", ResourceID: "r1", Kind: calendar.KindOrgReserved,
		Start: mustParse(t, "2024-01-01T09:00:00Z"), End: mustParse(t, "2024-01-01T17:00:00Z")}

	var items []calendar.Interval
	bag := NewMemoryBag(&items)

	overlap := calendar.Interval{ID: "o", ResourceID: "r1", Kind: calendar.KindOrgReserved,
		Start: mustParse(t, "2024-01-01T10:00:00Z"), End: mustParse(t, "2024-01-01T16:00:00Z")}
	items = append(items, a)

	widened, changed, err := JoinInto(ctx, bag, overlap, calendar.JoinGap)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, widened.Start.Equal(a.Start))
	assert.True(t, widened.End.Equal(a.End))

	// re-running join_into on the now-canonical single interval changes nothing.
	items = []calendar.Interval{widened}
	_, changedAgain, err := JoinInto(ctx, bag, widened, calendar.JoinGap)
	require.NoError(t, err)
	assert.False(t, changedAgain)
}

func TestSubtractFrom_StrictContainmentSplits(t *testing.T) {
	ctx := context.Background()
	org := "org-1"
	o := calendar.Interval{ID: "o", ResourceID: "r1", Kind: calendar.KindOrgReserved, OrganizationID: &org,
		Start: mustParse(t, "2024-01-01T09:00:00Z"), End: mustParse(t, "2024-01-01T17:00:00Z")}
	self := calendar.Interval{ResourceID: "r1", Kind: calendar.KindOrgReserved, OrganizationID: &org,
		Start: mustParse(t, "2024-01-01T12:00:00Z"), End: mustParse(t, "2024-01-01T13:00:00Z")}

	items := []calendar.Interval{o}
	bag := NewMemoryBag(&items)

	affected, err := SubtractFrom(ctx, bag, self)
	require.NoError(t, err)
	require.Len(t, affected, 2)
	require.Len(t, items, 2)

	for _, piece := range items {
		assert.Equal(t, org, *piece.OrganizationID, "split pieces must inherit organization, not manager")
	}
}

func TestSubtractFrom_FullyContainedDeletes(t *testing.T) {
	ctx := context.Background()
	o := calendar.Interval{ID: "o", ResourceID: "r1", Kind: calendar.KindUnavailable,
		Start: mustParse(t, "2024-01-01T12:00:00Z"), End: mustParse(t, "2024-01-01T13:00:00Z")}
	self := calendar.Interval{ResourceID: "r1", Kind: calendar.KindUnavailable,
		Start: mustParse(t, "2024-01-01T11:00:00Z"), End: mustParse(t, "2024-01-01T14:00:00Z")}

	items := []calendar.Interval{o}
	bag := NewMemoryBag(&items)

	_, err := SubtractFrom(ctx, bag, self)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestIsContinuous(t *testing.T) {
	ctx := context.Background()
	start := mustParse(t, "2024-01-01T09:00:00Z")
	end := mustParse(t, "2024-01-01T17:00:00Z")

	continuous := []calendar.Interval{
		{ResourceID: "r1", Kind: calendar.KindOrgReserved, Start: start, End: mustParse(t, "2024-01-01T13:00:00Z")},
		{ResourceID: "r1", Kind: calendar.KindOrgReserved, Start: mustParse(t, "2024-01-01T12:55:00Z"), End: end},
	}
	ok, err := IsContinuous(ctx, continuous, start, end)
	require.NoError(t, err)
	assert.True(t, ok)

	// S3 — gap between 12:00 and 13:00 breaks continuity over a query
	// spanning both pieces.
	gapped := []calendar.Interval{
		{ResourceID: "r1", Kind: calendar.KindOrgReserved, Start: mustParse(t, "2024-01-01T09:00:00Z"), End: mustParse(t, "2024-01-01T12:00:00Z")},
		{ResourceID: "r1", Kind: calendar.KindOrgReserved, Start: mustParse(t, "2024-01-01T13:00:00Z"), End: mustParse(t, "2024-01-01T17:00:00Z")},
	}
	ok, err = IsContinuous(ctx, gapped, mustParse(t, "2024-01-01T11:00:00Z"), mustParse(t, "2024-01-01T14:00:00Z"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAsWeekly_SingleDay(t *testing.T) {
	i := calendar.Interval{
		Start: mustParse(t, "2024-01-01T09:00:00Z"), // Monday
		End:   mustParse(t, "2024-01-01T12:00:00Z"),
	}
	fragments := AsWeekly(i)
	require.Len(t, fragments, 1)
	assert.Equal(t, calendar.InternalWeekday(i.Start), fragments[0].DayOfWeek)
	assert.Equal(t, 9, fragments[0].StartTime.Hour())
	assert.Equal(t, 12, fragments[0].EndTime.Hour())
}

func TestFragmentsIntersect(t *testing.T) {
	a := calendar.ScheduleFragment{DayOfWeek: 1, StartTime: timeOfDayOnly(mustParse(t, "2024-01-01T09:00:00Z")), EndTime: timeOfDayOnly(mustParse(t, "2024-01-01T12:00:00Z"))}
	b := calendar.ScheduleFragment{DayOfWeek: 1, StartTime: timeOfDayOnly(mustParse(t, "2024-01-01T11:00:00Z")), EndTime: timeOfDayOnly(mustParse(t, "2024-01-01T13:00:00Z"))}
	c := calendar.ScheduleFragment{DayOfWeek: 1, StartTime: timeOfDayOnly(mustParse(t, "2024-01-01T12:00:00Z")), EndTime: timeOfDayOnly(mustParse(t, "2024-01-01T13:00:00Z"))}
	d := calendar.ScheduleFragment{DayOfWeek: 2, StartTime: timeOfDayOnly(mustParse(t, "2024-01-01T09:00:00Z")), EndTime: timeOfDayOnly(mustParse(t, "2024-01-01T12:00:00Z"))}

	assert.True(t, FragmentsIntersect(a, b))
	assert.False(t, FragmentsIntersect(a, c), "touching at the boundary is not an intersection")
	assert.False(t, FragmentsIntersect(a, d), "different day_of_week never intersects")
}
