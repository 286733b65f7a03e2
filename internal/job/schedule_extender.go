// Package job adapts the background work spec §4E's lazy roll-forward
// needs onto the cron.Scheduler. Outside this job a membership's
// materialization only moves forward when a schedule is applied to it or
// when it becomes fulltime (RefreshFulltimeReservation); reading its
// intervals never triggers a roll-forward. This job sweeps stale
// memberships forward proactively so a dashboard querying "next 40 days"
// finds them already materialized.
package job

import (
	"context"
	"time"

	"github.com/rcalendar/msa-rcalendar/internal/domain/calendar"
	"github.com/rcalendar/msa-rcalendar/internal/materializer"
	"github.com/rcalendar/msa-rcalendar/internal/pkg/cron"
)

// ScheduleExtender rolls every stale membership's materialization forward
// to now+ExtendableMin on each tick.
type ScheduleExtender struct {
	memberships calendar.MembershipRepository
	deps        materializer.Deps
}

func NewScheduleExtender(memberships calendar.MembershipRepository, deps materializer.Deps) *ScheduleExtender {
	return &ScheduleExtender{memberships: memberships, deps: deps}
}

// Register wires the extender into s, running every ExtendableMin/4 so a
// membership never falls more than a quarter of the look-ahead window
// behind before being caught.
func (e *ScheduleExtender) Register(s *cron.Scheduler) {
	s.AddJob("schedule-extender", calendar.ExtendableMin/4, e.Run)
}

func (e *ScheduleExtender) Run(ctx context.Context) error {
	now := time.Now().UTC()
	horizon := now.Add(calendar.ExtendableMin)

	stale, err := e.memberships.ListStaleSchedules(ctx, horizon)
	if err != nil {
		return err
	}
	for _, m := range stale {
		if err := materializer.ExtendSchedule(ctx, e.deps, m, horizon); err != nil {
			return err
		}
	}
	return nil
}
