// Package calendar implements domain/calendar.Service: the orchestration
// layer that resolves app-scoped entities, runs the validation engine and
// interval algebra inside a per-resource transaction, drives the schedule
// materializer, and renders the wire DTOs, following the teacher's
// internal/service/<ctx> convention (a *Service struct embedding the
// repositories it needs, one exported constructor, a db field used only to
// open transactions).
package calendar

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rcalendar/msa-rcalendar/internal/algebra"
	domain "github.com/rcalendar/msa-rcalendar/internal/domain/calendar"
	"github.com/rcalendar/msa-rcalendar/internal/events"
	"github.com/rcalendar/msa-rcalendar/internal/materializer"
	"github.com/rcalendar/msa-rcalendar/internal/pkg/database"
	"github.com/rcalendar/msa-rcalendar/internal/repository/postgresql"
	"github.com/rcalendar/msa-rcalendar/internal/validation"
)

// Service implements domain.Service.
type Service struct {
	db *database.DB

	organizations domain.OrganizationRepository
	managers      domain.ManagerRepository
	resources     domain.ResourceRepository
	memberships   domain.MembershipRepository
	fragments     domain.ScheduleFragmentRepository
	intervals     domain.IntervalRepository
	apiKeys       domain.ApiKeyRepository
}

// NewService wires every repository the calendar core needs into a
// domain.Service.
func NewService(
	db *database.DB,
	organizations domain.OrganizationRepository,
	managers domain.ManagerRepository,
	resources domain.ResourceRepository,
	memberships domain.MembershipRepository,
	fragments domain.ScheduleFragmentRepository,
	intervals domain.IntervalRepository,
	apiKeys domain.ApiKeyRepository,
) domain.Service {
	return &Service{
		db:            db,
		organizations: organizations,
		managers:      managers,
		resources:     resources,
		memberships:   memberships,
		fragments:     fragments,
		intervals:     intervals,
		apiKeys:       apiKeys,
	}
}

func (s *Service) validationDeps() validation.Deps {
	return validation.Deps{
		Intervals:   s.intervals,
		Memberships: s.memberships,
		Fragments:   s.fragments,
		Managers:    s.managers,
	}
}

func (s *Service) materializerDeps() materializer.Deps {
	return materializer.Deps{
		Intervals:   s.intervals,
		Fragments:   s.fragments,
		Memberships: s.memberships,
	}
}

// withResourceLock runs fn inside a transaction with resourceID's row
// locked for its duration (spec §5): the mutual-exclusion mechanism that
// keeps the canonicalization invariant from being violated by interleaved
// requests on the same resource.
func (s *Service) withResourceLock(ctx context.Context, resourceID string, fn func(ctx context.Context) error) error {
	return postgresql.WithTransaction(ctx, s.db, func(tx pgx.Tx) error {
		txCtx := postgresql.WithTx(ctx, tx)
		if err := postgresql.LockResource(txCtx, s.db, resourceID); err != nil {
			return fmt.Errorf("lock resource: %w", err)
		}
		return fn(txCtx)
	})
}

// ---- Organizations --------------------------------------------------

func (s *Service) CreateOrganization(ctx context.Context, app string, req domain.CreateOrganizationRequest) (domain.Organization, error) {
	return s.organizations.Create(ctx, domain.Organization{App: app, ExternalID: req.ID})
}

func (s *Service) GetOrganization(ctx context.Context, app, externalIDOrID string) (domain.OrganizationResponse, error) {
	org, err := s.resolveOrganization(ctx, app, externalIDOrID)
	if err != nil {
		return domain.OrganizationResponse{}, err
	}

	managers, err := s.managers.ListByOrganization(ctx, org.ID)
	if err != nil {
		return domain.OrganizationResponse{}, err
	}
	managerIDs := make([]int64, 0, len(managers))
	for _, m := range managers {
		managerIDs = append(managerIDs, m.ExternalID)
	}

	resources, err := s.memberships.ResourcesByOrganization(ctx, org.ID, false, false)
	if err != nil {
		return domain.OrganizationResponse{}, err
	}
	members := make([]domain.ResourceMemberSummary, 0, len(resources))
	for _, r := range resources {
		membership, err := s.memberships.GetByResourceAndOrganization(ctx, r.ID, org.ID)
		if err != nil {
			return domain.OrganizationResponse{}, err
		}
		frags, err := s.fragments.ListByMembership(ctx, membership.ID)
		if err != nil {
			return domain.OrganizationResponse{}, err
		}
		members = append(members, domain.ResourceMemberSummary{Resource: r.ExternalID, HasSchedule: len(frags) > 0})
	}

	return domain.OrganizationResponse{ManagerIDs: managerIDs, ResourceMembers: members}, nil
}

func (s *Service) DeleteOrganization(ctx context.Context, app, externalIDOrID string) error {
	org, err := s.resolveOrganization(ctx, app, externalIDOrID)
	if err != nil {
		return err
	}
	return s.organizations.Delete(ctx, app, org.ID)
}

func (s *Service) resolveOrganization(ctx context.Context, app, externalIDOrID string) (domain.Organization, error) {
	externalID, err := strconv.ParseInt(externalIDOrID, 10, 64)
	if err != nil {
		return domain.Organization{}, domain.ErrOrganizationNotFound
	}
	return s.organizations.GetByExternalID(ctx, app, externalID)
}

// ---- Managers ---------------------------------------------------------

func (s *Service) AddManyManagers(ctx context.Context, app string, req domain.AddManyRequest) error {
	org, err := s.organizations.GetByExternalID(ctx, app, req.Organization)
	if err != nil {
		return err
	}
	for _, externalID := range req.IDs {
		manager, err := s.managers.GetByExternalID(ctx, app, externalID)
		if errors.Is(err, domain.ErrManagerNotFound) {
			manager, err = s.managers.Create(ctx, domain.Manager{App: app, ExternalID: externalID})
		}
		if err != nil {
			return err
		}
		if err := s.managers.AddToOrganization(ctx, manager.ID, org.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) RemoveManager(ctx context.Context, app string, managerExternalID int64, organizationExternalID *int64) error {
	manager, err := s.managers.GetByExternalID(ctx, app, managerExternalID)
	if err != nil {
		return err
	}
	if organizationExternalID == nil {
		return s.managers.Delete(ctx, app, manager.ID)
	}
	org, err := s.organizations.GetByExternalID(ctx, app, *organizationExternalID)
	if err != nil {
		return err
	}
	return s.managers.RemoveFromOrganization(ctx, manager.ID, org.ID)
}

// ---- Resources & memberships -------------------------------------------

func (s *Service) AddManyResources(ctx context.Context, app string, req domain.AddManyRequest) error {
	var org *domain.Organization
	if req.Organization != 0 {
		o, err := s.organizations.GetByExternalID(ctx, app, req.Organization)
		if err != nil {
			return err
		}
		org = &o
	}

	for _, externalID := range req.IDs {
		resource, err := s.resources.GetByExternalID(ctx, app, externalID)
		if errors.Is(err, domain.ErrResourceNotFound) {
			resource, err = s.resources.Create(ctx, domain.Resource{App: app, ExternalID: externalID})
		}
		if err != nil {
			return err
		}
		if org == nil {
			continue
		}
		if _, err := s.memberships.GetByResourceAndOrganization(ctx, resource.ID, org.ID); errors.Is(err, domain.ErrMembershipNotFound) {
			if _, err := s.memberships.Create(ctx, domain.ResourceMembership{ResourceID: resource.ID, OrganizationID: org.ID}); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) GetMembership(ctx context.Context, app string, resourceExternalID, organizationExternalID int64) (domain.ResourceMembership, error) {
	resource, org, err := s.resolveResourceAndOrg(ctx, app, resourceExternalID, organizationExternalID)
	if err != nil {
		return domain.ResourceMembership{}, err
	}
	return s.memberships.GetByResourceAndOrganization(ctx, resource.ID, org.ID)
}

// JoinOrganization creates (or fetches) the membership edge. When fulltime
// is requested, it enforces the original source's mutual-exclusion rule
// (SPEC_FULL §3: a resource holds at most one fulltime membership at a
// time) and refreshes the organization-reserved coverage the fulltime
// status implies.
func (s *Service) JoinOrganization(ctx context.Context, app string, resourceExternalID, organizationExternalID int64, fulltime bool) (domain.ResourceMembership, error) {
	resource, org, err := s.resolveResourceAndOrg(ctx, app, resourceExternalID, organizationExternalID)
	if err != nil {
		return domain.ResourceMembership{}, err
	}

	var result domain.ResourceMembership
	err = s.withResourceLock(ctx, resource.ID, func(ctx context.Context) error {
		membership, err := s.memberships.GetByResourceAndOrganization(ctx, resource.ID, org.ID)
		if errors.Is(err, domain.ErrMembershipNotFound) {
			// created part-time; the fulltime branch below flips it
			membership, err = s.memberships.Create(ctx, domain.ResourceMembership{ResourceID: resource.ID, OrganizationID: org.ID})
		}
		if err != nil {
			return err
		}

		if fulltime && !membership.Fulltime {
			if err := s.enforceFulltimeExclusivity(ctx, resource.ID, membership.ID); err != nil {
				return err
			}
			if err := s.memberships.SetFulltime(ctx, membership.ID, true); err != nil {
				return err
			}
			membership.Fulltime = true
			if err := s.RefreshFulltimeReservation(ctx, membership); err != nil {
				return err
			}
		}

		result = membership
		return nil
	})
	return result, err
}

// RefreshFulltimeReservation restores the original's
// update_organization_reserve: once a membership becomes fulltime, its
// organization-reserved coverage must extend at least ExtendableMin beyond
// now immediately, rather than waiting for the background extender's next
// sweep. Invoked from JoinOrganization and SetParticipation whenever either
// flips a membership to fulltime.
func (s *Service) RefreshFulltimeReservation(ctx context.Context, membership domain.ResourceMembership) error {
	return materializer.ExtendSchedule(ctx, s.materializerDeps(), membership, time.Now().UTC().Add(domain.ExtendableMin))
}

// enforceFulltimeExclusivity clears the fulltime flag on every other
// membership this resource holds, restoring the original's "at most one
// fulltime organization" invariant.
func (s *Service) enforceFulltimeExclusivity(ctx context.Context, resourceID, keepMembershipID string) error {
	existing, err := s.memberships.ListByResource(ctx, resourceID)
	if err != nil {
		return err
	}
	for _, m := range existing {
		if m.ID == keepMembershipID || !m.Fulltime {
			continue
		}
		if err := s.memberships.SetFulltime(ctx, m.ID, false); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) DismissFromOrganization(ctx context.Context, app string, resourceExternalID, organizationExternalID int64) error {
	resource, org, err := s.resolveResourceAndOrg(ctx, app, resourceExternalID, organizationExternalID)
	if err != nil {
		return err
	}
	return s.withResourceLock(ctx, resource.ID, func(ctx context.Context) error {
		membership, err := s.memberships.GetByResourceAndOrganization(ctx, resource.ID, org.ID)
		if err != nil {
			return err
		}
		if err := materializer.StripOrganizationTime(ctx, s.materializerDeps(), membership); err != nil {
			return err
		}
		return s.memberships.Delete(ctx, membership.ID)
	})
}

func (s *Service) SetParticipation(ctx context.Context, app string, resourceExternalID, organizationExternalID int64, fulltime bool) error {
	resource, org, err := s.resolveResourceAndOrg(ctx, app, resourceExternalID, organizationExternalID)
	if err != nil {
		return err
	}
	return s.withResourceLock(ctx, resource.ID, func(ctx context.Context) error {
		membership, err := s.memberships.GetByResourceAndOrganization(ctx, resource.ID, org.ID)
		if err != nil {
			return err
		}
		if fulltime == membership.Fulltime {
			return nil
		}
		if fulltime {
			if err := s.enforceFulltimeExclusivity(ctx, resource.ID, membership.ID); err != nil {
				return err
			}
		}
		if err := s.memberships.SetFulltime(ctx, membership.ID, fulltime); err != nil {
			return err
		}
		if fulltime {
			membership.Fulltime = true
			return s.RefreshFulltimeReservation(ctx, membership)
		}
		return nil
	})
}

func (s *Service) resolveResourceAndOrg(ctx context.Context, app string, resourceExternalID, organizationExternalID int64) (domain.Resource, domain.Organization, error) {
	resource, err := s.resources.GetByExternalID(ctx, app, resourceExternalID)
	if err != nil {
		return domain.Resource{}, domain.Organization{}, err
	}
	org, err := s.organizations.GetByExternalID(ctx, app, organizationExternalID)
	if err != nil {
		return domain.Resource{}, domain.Organization{}, err
	}
	return resource, org, nil
}

// ---- Schedule -----------------------------------------------------------

func (s *Service) ApplySchedule(ctx context.Context, app string, resourceExternalID int64, req domain.ApplyScheduleRequest) (bool, error) {
	resource, org, err := s.resolveResourceAndOrg(ctx, app, resourceExternalID, req.Organization)
	if err != nil {
		return false, err
	}

	var changed bool
	err = s.withResourceLock(ctx, resource.ID, func(ctx context.Context) error {
		membership, err := s.memberships.GetByResourceAndOrganization(ctx, resource.ID, org.ID)
		if err != nil {
			return err
		}

		var fragments []domain.ScheduleFragment
		for _, f := range req.ScheduleIntervals {
			start, err := time.Parse("15:04", f.Start)
			if err != nil {
				return err
			}
			end, err := time.Parse("15:04", f.End)
			if err != nil {
				return err
			}
			fragments = append(fragments, domain.ScheduleFragment{DayOfWeek: f.DayOfWeek, StartTime: start.UTC(), EndTime: end.UTC()})
		}
		if len(fragments) > 0 {
			if err := validation.ValidateScheduleFragments(ctx, s.validationDeps(), resource.ID, membership.ID, fragments); err != nil {
				return err
			}
		}

		start, end := resolveScheduleWindow(req.Start, req.End, membership.ScheduleExtendedTo)

		result, err := materializer.ApplySchedule(ctx, s.materializerDeps(), membership, start, end, fragments, len(fragments) > 0 && req.End == nil)
		if err != nil {
			return err
		}
		changed = result
		if err := s.memberships.UpdateScheduleExtendedTo(ctx, membership.ID, end); err != nil {
			return err
		}

		events.FromContext(ctx).Push(events.KindApplySchedule, map[string]any{
			"resource":     resourceExternalID,
			"organization": req.Organization,
			"permanent":    req.End == nil,
			"duration":     end.Sub(start).String(),
		})
		return nil
	})
	return changed, err
}

// resolveScheduleWindow implements spec §6's three apply_schedule shapes:
// both start and end given is taken literally; start only means "apply the
// template permanently from start, rolled forward by the default
// horizon"; neither given means "roll the existing watermark forward by
// the default horizon".
func resolveScheduleWindow(reqStart, reqEnd *time.Time, extendedTo *time.Time) (time.Time, time.Time) {
	switch {
	case reqStart != nil && reqEnd != nil:
		return *reqStart, *reqEnd
	case reqStart != nil:
		return *reqStart, reqStart.Add(domain.ExtendableMin)
	default:
		start := time.Now().UTC()
		if extendedTo != nil {
			start = *extendedTo
		}
		return start, start.Add(domain.ExtendableMin)
	}
}

func (s *Service) ClearUnavailableInterval(ctx context.Context, app string, resourceExternalID int64, req domain.ClearUnavailableRequest) error {
	resource, err := s.resources.GetByExternalID(ctx, app, resourceExternalID)
	if err != nil {
		return err
	}

	return s.withResourceLock(ctx, resource.ID, func(ctx context.Context) error {
		overlapping, err := s.intervals.Between(ctx, resource.ID, req.Start, req.End)
		if err != nil {
			return err
		}
		affectedManagers, err := s.intervals.ManagersOver(ctx, overlapping)
		if err != nil {
			return err
		}

		bag := algebra.NewPersistentBag(s.intervals)

		unavailableProbe := domain.Interval{ResourceID: resource.ID, Kind: domain.KindUnavailable, Start: req.Start, End: req.End}
		if _, err := algebra.SubtractFrom(ctx, bag, unavailableProbe); err != nil {
			return err
		}

		// Clears the weekly-template gaps too, matching the original's
		// clear_unvailable_interval clearing both kinds (SPEC_FULL §3):
		// ScheduledUnavailable carries an organization, so one probe per
		// organization actually present in the span is needed.
		for _, orgID := range scheduledUnavailableOrganizations(overlapping) {
			orgID := orgID
			scheduledProbe := domain.Interval{ResourceID: resource.ID, Kind: domain.KindScheduledUnavailable, OrganizationID: &orgID, Start: req.Start, End: req.End}
			if _, err := algebra.SubtractFrom(ctx, bag, scheduledProbe); err != nil {
				return err
			}
		}

		sink := events.FromContext(ctx)
		for _, m := range affectedManagers {
			sink.Push(events.KindClearUnavailableInterval, map[string]any{
				"resource": resourceExternalID,
				"manager":  m.ExternalID,
			})
		}
		return nil
	})
}

// scheduledUnavailableOrganizations returns the distinct organization ids
// carried by intervals's ScheduledUnavailable members, so a resource-scoped
// clear can still subtract per-organization coverage without an explicit
// organization parameter of its own.
func scheduledUnavailableOrganizations(intervals []domain.Interval) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, i := range intervals {
		if i.Kind != domain.KindScheduledUnavailable || i.OrganizationID == nil {
			continue
		}
		if _, ok := seen[*i.OrganizationID]; ok {
			continue
		}
		seen[*i.OrganizationID] = struct{}{}
		out = append(out, *i.OrganizationID)
	}
	return out
}

// ---- Interval listing ----------------------------------------------------

func (s *Service) ListOrganizationIntervals(ctx context.Context, app string, organizationExternalID int64, window domain.Range, resourceExternalID *int64) ([]domain.IntervalResponse, error) {
	org, err := s.organizations.GetByExternalID(ctx, app, organizationExternalID)
	if err != nil {
		return nil, err
	}

	var resources []domain.Resource
	if resourceExternalID != nil {
		r, err := s.resources.GetByExternalID(ctx, app, *resourceExternalID)
		if err != nil {
			return nil, err
		}
		resources = []domain.Resource{r}
	} else {
		resources, err = s.memberships.ResourcesByOrganization(ctx, org.ID, false, false)
		if err != nil {
			return nil, err
		}
	}

	var out []domain.IntervalResponse
	for _, resource := range resources {
		intervals, err := s.intervals.Between(ctx, resource.ID, window.Start, window.End)
		if err != nil {
			return nil, err
		}
		visible := filterVisibleForOrganization(intervals, org.ID)
		for _, i := range visible {
			resp, err := s.renderInterval(ctx, app, i)
			if err != nil {
				return nil, err
			}
			out = append(out, resp)
		}
	}
	return out, nil
}

func (s *Service) ListResourceIntervals(ctx context.Context, app string, resourceExternalID int64, window domain.Range) ([]domain.IntervalResponse, error) {
	resource, err := s.resources.GetByExternalID(ctx, app, resourceExternalID)
	if err != nil {
		return nil, err
	}
	intervals, err := s.intervals.Between(ctx, resource.ID, window.Start, window.End)
	if err != nil {
		return nil, err
	}
	out := make([]domain.IntervalResponse, 0, len(intervals))
	for _, i := range intervals {
		resp, err := s.renderInterval(ctx, app, i)
		if err != nil {
			return nil, err
		}
		out = append(out, resp)
	}
	return out, nil
}

// filterVisibleForOrganization implements spec §6's organization-scoped
// listing masking rule: intervals of other organizations lose comment and
// manager, and Unavailable intervals fully contained within another
// organization's OrgReserved span are hidden entirely.
func filterVisibleForOrganization(intervals []domain.Interval, orgID string) []domain.Interval {
	var foreignOrgReserved []domain.Interval
	for _, i := range intervals {
		if i.Kind == domain.KindOrgReserved && (i.OrganizationID == nil || *i.OrganizationID != orgID) {
			foreignOrgReserved = append(foreignOrgReserved, i)
		}
	}

	var out []domain.Interval
	for _, i := range intervals {
		if i.Kind == domain.KindUnavailable && containedInForeignOrg(i, foreignOrgReserved) {
			continue
		}
		if i.OrganizationID != nil && *i.OrganizationID != orgID {
			i.Comment = nil
			i.ManagerID = nil
		}
		out = append(out, i)
	}
	return out
}

func containedInForeignOrg(i domain.Interval, orgReserved []domain.Interval) bool {
	for _, o := range orgReserved {
		if !i.Start.Before(o.Start) && !i.End.After(o.End) {
			return true
		}
	}
	return false
}

func (s *Service) renderInterval(ctx context.Context, app string, i domain.Interval) (domain.IntervalResponse, error) {
	resource, err := s.resources.GetByID(ctx, app, i.ResourceID)
	if err != nil {
		return domain.IntervalResponse{}, err
	}

	resp := domain.IntervalResponse{
		ID:       i.ID,
		Start:    i.Start,
		End:      i.End,
		Kind:     i.Kind.String(),
		Resource: resource.ExternalID,
		Comment:  i.Comment,
	}

	if i.OrganizationID != nil {
		org, err := s.organizations.GetByID(ctx, app, *i.OrganizationID)
		if err != nil {
			return domain.IntervalResponse{}, err
		}
		resp.Organization = &org.ExternalID
		if i.Kind == domain.KindOrgReserved {
			resp.Object = &org.ExternalID
		}
	}
	if i.ManagerID != nil {
		manager, err := s.managers.GetByID(ctx, app, *i.ManagerID)
		if err != nil {
			return domain.IntervalResponse{}, err
		}
		resp.Manager = &manager.ExternalID
		if i.Kind == domain.KindManagerReserved {
			resp.Object = &manager.ExternalID
		}
	}
	return resp, nil
}

// ---- Interval mutation ----------------------------------------------------

func (s *Service) CreateInterval(ctx context.Context, app string, req domain.IntervalRequest) (domain.IntervalResponse, error) {
	resource, err := s.resources.GetByExternalID(ctx, app, req.Resource)
	if err != nil {
		return domain.IntervalResponse{}, err
	}
	kind, ok := domain.ParseIntervalKind(req.Kind)
	if !ok {
		return domain.IntervalResponse{}, fmt.Errorf("unrecognized interval kind %q", req.Kind)
	}

	orgID, err := s.resolveOptionalOrgID(ctx, app, req.Organization)
	if err != nil {
		return domain.IntervalResponse{}, err
	}
	managerID, err := s.resolveOptionalManagerID(ctx, app, req.Manager)
	if err != nil {
		return domain.IntervalResponse{}, err
	}

	candidate := domain.Interval{
		ResourceID:     resource.ID,
		Kind:           kind,
		Start:          req.Start,
		End:            req.End,
		OrganizationID: orgID,
		ManagerID:      managerID,
		Comment:        req.Comment,
	}

	var result domain.Interval
	err = s.withResourceLock(ctx, resource.ID, func(ctx context.Context) error {
		saved, err := s.saveInterval(ctx, candidate)
		if err != nil {
			return err
		}
		result = saved
		return nil
	})
	if err != nil {
		return domain.IntervalResponse{}, err
	}
	return s.renderInterval(ctx, app, result)
}

func (s *Service) UpdateInterval(ctx context.Context, app, id string, req domain.IntervalRequest) (domain.IntervalResponse, error) {
	existing, err := s.intervals.GetByID(ctx, id)
	if err != nil {
		return domain.IntervalResponse{}, err
	}

	kind, ok := domain.ParseIntervalKind(req.Kind)
	if !ok {
		return domain.IntervalResponse{}, fmt.Errorf("unrecognized interval kind %q", req.Kind)
	}
	orgID, err := s.resolveOptionalOrgID(ctx, app, req.Organization)
	if err != nil {
		return domain.IntervalResponse{}, err
	}
	managerID, err := s.resolveOptionalManagerID(ctx, app, req.Manager)
	if err != nil {
		return domain.IntervalResponse{}, err
	}

	candidate := existing
	candidate.Kind = kind
	candidate.Start = req.Start
	candidate.End = req.End
	candidate.OrganizationID = orgID
	candidate.ManagerID = managerID
	candidate.Comment = req.Comment

	var result domain.Interval
	err = s.withResourceLock(ctx, existing.ResourceID, func(ctx context.Context) error {
		if err := validation.ValidateInterval(ctx, s.validationDeps(), candidate); err != nil {
			return err
		}

		overlap, err := s.intervals.Between(ctx, candidate.ResourceID, candidate.Start, candidate.End)
		if err != nil {
			return err
		}

		updated, err := s.intervals.Update(ctx, candidate)
		if err != nil {
			return err
		}
		bag := algebra.NewPersistentBag(s.intervals)
		widened, _, err := algebra.JoinInto(ctx, bag, updated, domain.JoinGap)
		if err != nil {
			return err
		}
		result = widened

		sink := events.FromContext(ctx)
		sink.Push(events.KindCreateInterval, intervalEventPayload(widened))
		return s.pushUnavailableCascade(ctx, sink, widened, overlap)
	})
	if err != nil {
		return domain.IntervalResponse{}, err
	}
	return s.renderInterval(ctx, app, result)
}

// saveInterval implements spec §4D's save(): validate, persist, then
// join_into to canonicalize, followed by the event emission rules in step
// 9.
func (s *Service) saveInterval(ctx context.Context, candidate domain.Interval) (domain.Interval, error) {
	if err := validation.ValidateInterval(ctx, s.validationDeps(), candidate); err != nil {
		return domain.Interval{}, err
	}

	overlap, err := s.intervals.Between(ctx, candidate.ResourceID, candidate.Start, candidate.End)
	if err != nil {
		return domain.Interval{}, err
	}

	created, err := s.intervals.Create(ctx, candidate)
	if err != nil {
		return domain.Interval{}, err
	}

	bag := algebra.NewPersistentBag(s.intervals)
	widened, _, err := algebra.JoinInto(ctx, bag, created, domain.JoinGap)
	if err != nil {
		return domain.Interval{}, err
	}

	sink := events.FromContext(ctx)
	sink.Push(events.KindCreateInterval, intervalEventPayload(widened))

	if err := s.pushUnavailableCascade(ctx, sink, widened, overlap); err != nil {
		return domain.Interval{}, err
	}

	return widened, nil
}

// pushUnavailableCascade implements spec §4D step 9's manager-notification
// rule: whenever a save (insert or update, per the original's uniform
// save()) leaves an Unavailable interval in place, every manager whose
// ManagerReserved/OrgReserved coverage it now overlaps gets an
// add-unavailable-interval event, carrying whichever organization that
// manager's own reservation belongs to.
func (s *Service) pushUnavailableCascade(ctx context.Context, sink *events.Sink, widened domain.Interval, overlap []domain.Interval) error {
	if widened.Kind != domain.KindUnavailable {
		return nil
	}
	affected, err := s.intervals.ManagersOver(ctx, overlap)
	if err != nil {
		return err
	}
	for _, m := range affected {
		org := organizationForManager(overlap, m.ID)
		payload := map[string]any{"manager": m.ExternalID}
		if org != nil {
			payload["organization"] = *org
		}
		if widened.Comment != nil {
			payload["comment"] = *widened.Comment
		}
		sink.Push(events.KindAddUnavailableInterval, payload)
	}
	return nil
}

func organizationForManager(intervals []domain.Interval, managerID string) *string {
	for _, i := range intervals {
		if i.ManagerID != nil && *i.ManagerID == managerID && i.OrganizationID != nil {
			return i.OrganizationID
		}
	}
	return nil
}

func intervalEventPayload(i domain.Interval) map[string]any {
	payload := map[string]any{
		"interval_kind": i.Kind.String(),
		"resource":      i.ResourceID,
		"start":         i.Start,
		"end":           i.End,
		"duration":      i.End.Sub(i.Start).String(),
	}
	if i.OrganizationID != nil {
		payload["organization"] = *i.OrganizationID
	}
	if i.ManagerID != nil {
		payload["manager"] = *i.ManagerID
	}
	if i.Comment != nil {
		payload["comment"] = *i.Comment
	}
	return payload
}

func (s *Service) resolveOptionalOrgID(ctx context.Context, app string, externalID *int64) (*string, error) {
	if externalID == nil {
		return nil, nil
	}
	org, err := s.organizations.GetByExternalID(ctx, app, *externalID)
	if err != nil {
		return nil, err
	}
	return &org.ID, nil
}

func (s *Service) resolveOptionalManagerID(ctx context.Context, app string, externalID *int64) (*string, error) {
	if externalID == nil {
		return nil, nil
	}
	manager, err := s.managers.GetByExternalID(ctx, app, *externalID)
	if err != nil {
		return nil, err
	}
	return &manager.ID, nil
}

func (s *Service) DeleteInterval(ctx context.Context, app, id string) error {
	existing, err := s.intervals.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return s.withResourceLock(ctx, existing.ResourceID, func(ctx context.Context) error {
		return s.deleteIntervalLocked(ctx, existing)
	})
}

func (s *Service) deleteIntervalLocked(ctx context.Context, existing domain.Interval) error {
	var affected []domain.Manager
	if existing.Kind == domain.KindUnavailable {
		overlapping, err := s.intervals.Between(ctx, existing.ResourceID, existing.Start, existing.End)
		if err != nil {
			return err
		}
		affected, err = s.intervals.ManagersOver(ctx, overlapping)
		if err != nil {
			return err
		}
	}

	if err := s.intervals.Delete(ctx, existing.ID); err != nil {
		return err
	}

	sink := events.FromContext(ctx)
	sink.Push(events.KindDeleteInterval, intervalEventPayload(existing))
	for _, m := range affected {
		sink.Push(events.KindClearUnavailableInterval, map[string]any{
			"resource": existing.ResourceID,
			"manager":  m.ExternalID,
		})
	}
	return nil
}

func (s *Service) DeleteManyIntervals(ctx context.Context, app string, req domain.DeleteManyRequest) error {
	for _, id := range req.IDs {
		existing, err := s.intervals.GetByID(ctx, id)
		if errors.Is(err, domain.ErrIntervalNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if err := s.withResourceLock(ctx, existing.ResourceID, func(ctx context.Context) error {
			return s.deleteIntervalLocked(ctx, existing)
		}); err != nil {
			return err
		}
	}
	return nil
}
