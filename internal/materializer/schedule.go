// Package materializer implements the schedule projector owned by
// ResourceMembership (spec §4E): projecting a weekly schedule template
// over a date range into concrete OrgReserved intervals, and the lazy
// roll-forward (extend_schedule) that keeps a resource's timeline
// materialized ExtendableMin ahead of "now" without over-generating.
package materializer

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rcalendar/msa-rcalendar/internal/algebra"
	"github.com/rcalendar/msa-rcalendar/internal/domain/calendar"
)

// Deps bundles the repositories the projector reads and writes.
type Deps struct {
	Intervals   calendar.IntervalRepository
	Fragments   calendar.ScheduleFragmentRepository
	Memberships calendar.MembershipRepository
}

// extendGroup collapses concurrent ExtendSchedule calls racing on the same
// membership's watermark into a single roll-forward, so two requests that
// both notice a stale schedule_extended_to don't double-materialize the
// same span (spec §5's row-lock requirement, expressed without a second
// round trip to take one).
var extendGroup singleflight.Group

// ApplySchedule projects fragments (or the membership's persisted
// fragments, when fragments is nil) onto [start,end), replacing whatever
// OrgReserved coverage the membership's (resource, organization) pair
// already had over that span. Returns false (a no-op) when there is
// nothing to project or the range is degenerate, matching spec §4E steps
// 1-2.
func ApplySchedule(ctx context.Context, deps Deps, membership calendar.ResourceMembership, start, end time.Time, fragments []calendar.ScheduleFragment, saveAsDefault bool) (bool, error) {
	if len(fragments) == 0 {
		persisted, err := deps.Fragments.ListByMembership(ctx, membership.ID)
		if err != nil {
			return false, err
		}
		if len(persisted) == 0 {
			return false, nil
		}
		fragments = persisted
	}
	if start.IsZero() || end.IsZero() || !start.Before(end) {
		return false, nil
	}

	normalized := make([]calendar.ScheduleFragment, len(fragments))
	for i, f := range fragments {
		f.StartTime = calendar.NormalizeToUTC(f.StartTime)
		f.EndTime = calendar.NormalizeToUTC(f.EndTime)
		normalized[i] = f
	}

	orgID := membership.OrganizationID
	persistentBag := algebra.NewPersistentBag(deps.Intervals)

	// Step 4: clear whatever OrgReserved coverage this (resource,
	// organization) pair already has over [start,end) before projecting.
	clearProbe := calendar.Interval{
		ResourceID:     membership.ResourceID,
		Kind:           calendar.KindOrgReserved,
		OrganizationID: &orgID,
		Start:          start,
		End:            end,
	}
	if _, err := algebra.SubtractFrom(ctx, persistentBag, clearProbe); err != nil {
		return false, err
	}

	byDay := make(map[int][]calendar.ScheduleFragment, 7)
	for _, f := range normalized {
		byDay[f.DayOfWeek] = append(byDay[f.DayOfWeek], f)
	}

	var newList []calendar.Interval
	memBag := algebra.NewMemoryBag(&newList)

	startDate := calendar.DateToInstant(start)
	endDate := calendar.DateToInstant(end)
	days := int(endDate.Sub(startDate).Hours() / 24)
	for d := 0; d <= days; d++ {
		date := startDate.AddDate(0, 0, d)
		dow := calendar.InternalWeekday(date)
		for _, f := range byDay[dow] {
			candidateStart := combineDateTime(date, f.StartTime)
			candidateEnd := combineDateTime(date, f.EndTime)
			if f.StartTime.After(f.EndTime) {
				// wrap-around fragment (e.g. a UTC-normalized overnight
				// shift): the start belongs to the previous calendar day.
				candidateStart = candidateStart.AddDate(0, 0, -1)
			}
			if !candidateStart.Before(end) || !candidateEnd.After(start) {
				// the day loop runs through end's own date; keep only
				// candidates that reach into [start,end)
				continue
			}
			candidate := calendar.Interval{
				ResourceID:     membership.ResourceID,
				Kind:           calendar.KindOrgReserved,
				OrganizationID: &orgID,
				Start:          candidateStart,
				End:            candidateEnd,
			}
			widened, _, err := algebra.JoinInto(ctx, memBag, candidate, calendar.JoinGap)
			if err != nil {
				return false, err
			}
			if _, err := memBag.Add(ctx, widened); err != nil {
				return false, err
			}
		}
	}

	kept := newList[:0]
	for _, i := range newList {
		if i.End.Sub(i.Start) >= calendar.JoinGap {
			kept = append(kept, i)
		}
	}
	newList = kept
	sort.Slice(newList, func(i, j int) bool { return newList[i].Start.Before(newList[j].Start) })

	created := make([]calendar.Interval, 0, len(newList))
	for _, i := range newList {
		c, err := deps.Intervals.Create(ctx, i)
		if err != nil {
			return false, err
		}
		created = append(created, c)
	}

	// Step 8: merge the newly-materialized run's edges with whatever
	// persisted neighbors sit just outside [start,end) (a prior
	// extend_schedule call's tail, for instance).
	if len(created) > 0 {
		if _, _, err := algebra.JoinInto(ctx, persistentBag, created[0], calendar.JoinGap); err != nil {
			return false, err
		}
		if len(created) > 1 {
			if _, _, err := algebra.JoinInto(ctx, persistentBag, created[len(created)-1], calendar.JoinGap); err != nil {
				return false, err
			}
		}
	}

	// The original's ApplySchedule builds a full-range "everything
	// unavailable" block and carves the working hours just materialized
	// out of it with subtract_from, leaving ScheduledUnavailable
	// intervals standing for whatever the template does not cover.
	if err := carveScheduledUnavailable(ctx, deps, membership.ResourceID, orgID, start, end, newList); err != nil {
		return false, err
	}

	if saveAsDefault {
		if err := deps.Fragments.ReplaceForMembership(ctx, membership.ID, normalized); err != nil {
			return false, err
		}
	}

	return true, nil
}

// carveScheduledUnavailable clears whatever ScheduledUnavailable coverage
// (resourceID, orgID) already has over [start,end), reseeds a single
// full-range block, then subtracts each working span the template just
// produced out of it, and persists whatever remains. This is the "carve
// working hours out of a full-week unavailable block" half of spec §4E's
// projection; workingSpans is the template's trimmed, canonical
// OrgReserved run for the same range.
func carveScheduledUnavailable(ctx context.Context, deps Deps, resourceID, orgID string, start, end time.Time, workingSpans []calendar.Interval) error {
	persistentBag := algebra.NewPersistentBag(deps.Intervals)

	clearProbe := calendar.Interval{
		ResourceID:     resourceID,
		Kind:           calendar.KindScheduledUnavailable,
		OrganizationID: &orgID,
		Start:          start,
		End:            end,
	}
	if _, err := algebra.SubtractFrom(ctx, persistentBag, clearProbe); err != nil {
		return err
	}

	var remaining []calendar.Interval
	memBag := algebra.NewMemoryBag(&remaining)
	if _, err := memBag.Add(ctx, clearProbe); err != nil {
		return err
	}

	for _, span := range workingSpans {
		carve := calendar.Interval{
			ResourceID:     resourceID,
			Kind:           calendar.KindScheduledUnavailable,
			OrganizationID: &orgID,
			Start:          span.Start,
			End:            span.End,
		}
		if _, err := algebra.SubtractFrom(ctx, memBag, carve); err != nil {
			return err
		}
	}

	kept := remaining[:0]
	for _, i := range remaining {
		if i.End.Sub(i.Start) >= calendar.JoinGap {
			kept = append(kept, i)
		}
	}
	remaining = kept
	sort.Slice(remaining, func(i, j int) bool { return remaining[i].Start.Before(remaining[j].Start) })

	created := make([]calendar.Interval, 0, len(remaining))
	for _, i := range remaining {
		i.ID = ""
		c, err := deps.Intervals.Create(ctx, i)
		if err != nil {
			return err
		}
		created = append(created, c)
	}

	if len(created) > 0 {
		if _, _, err := algebra.JoinInto(ctx, persistentBag, created[0], calendar.JoinGap); err != nil {
			return err
		}
		if len(created) > 1 {
			if _, _, err := algebra.JoinInto(ctx, persistentBag, created[len(created)-1], calendar.JoinGap); err != nil {
				return err
			}
		}
	}
	return nil
}

// ExtendSchedule idempotently rolls the membership's materialization
// forward to end: a no-op when schedule_extended_to already reaches end,
// else ApplySchedule(schedule_extended_to, end) followed by advancing the
// watermark.
func ExtendSchedule(ctx context.Context, deps Deps, membership calendar.ResourceMembership, end time.Time) error {
	if membership.ScheduleExtendedTo != nil && !membership.ScheduleExtendedTo.Before(end) {
		return nil
	}

	_, err, _ := extendGroup.Do(membership.ID, func() (interface{}, error) {
		start := time.Now().UTC()
		if membership.ScheduleExtendedTo != nil {
			start = *membership.ScheduleExtendedTo
		}
		if !start.Before(end) {
			return nil, nil
		}
		if _, err := ApplySchedule(ctx, deps, membership, start, end, nil, false); err != nil {
			return nil, err
		}
		return nil, deps.Memberships.UpdateScheduleExtendedTo(ctx, membership.ID, end)
	})
	return err
}

// StripOrganizationTime truncates every OrgReserved interval on
// (resource, organization) currently covering "now" down to end at now,
// and pins the watermark there, effectively undoing future materialization
// without touching the past. Used when a resource leaves an organization.
func StripOrganizationTime(ctx context.Context, deps Deps, membership calendar.ResourceMembership) error {
	now := time.Now().UTC()
	orgID := membership.OrganizationID

	covering, err := deps.Intervals.At(ctx, membership.ResourceID, now)
	if err != nil {
		return err
	}
	for _, i := range covering {
		if i.Kind != calendar.KindOrgReserved || i.OrganizationID == nil || *i.OrganizationID != orgID {
			continue
		}
		i.End = now
		if _, err := deps.Intervals.Update(ctx, i); err != nil {
			return err
		}
	}
	return deps.Memberships.UpdateScheduleExtendedTo(ctx, membership.ID, now)
}

func combineDateTime(date, clock time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), clock.Hour(), clock.Minute(), clock.Second(), 0, clock.Location())
}
