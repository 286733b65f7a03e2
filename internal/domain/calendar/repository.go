package calendar

import (
	"context"
	"time"
)

// OrganizationRepository persists Organizations, scoped by app.
type OrganizationRepository interface {
	Create(ctx context.Context, org Organization) (Organization, error)
	GetByID(ctx context.Context, app, id string) (Organization, error)
	GetByExternalID(ctx context.Context, app string, externalID int64) (Organization, error)
	Delete(ctx context.Context, app, id string) error
}

// ManagerRepository persists Managers and their M:N membership in
// Organizations.
type ManagerRepository interface {
	Create(ctx context.Context, m Manager) (Manager, error)
	GetByID(ctx context.Context, app, id string) (Manager, error)
	GetByExternalID(ctx context.Context, app string, externalID int64) (Manager, error)
	Delete(ctx context.Context, app, id string) error

	AddToOrganization(ctx context.Context, managerID, organizationID string) error
	RemoveFromOrganization(ctx context.Context, managerID, organizationID string) error
	IsMemberOf(ctx context.Context, managerID, organizationID string) (bool, error)
	ListByOrganization(ctx context.Context, organizationID string) ([]Manager, error)
}

// ResourceRepository persists Resources.
type ResourceRepository interface {
	Create(ctx context.Context, r Resource) (Resource, error)
	GetByID(ctx context.Context, app, id string) (Resource, error)
	GetByExternalID(ctx context.Context, app string, externalID int64) (Resource, error)
	Delete(ctx context.Context, app, id string) error
}

// MembershipRepository persists ResourceMemberships, the (Resource,
// Organization) edge carrying the schedule watermark.
type MembershipRepository interface {
	Create(ctx context.Context, m ResourceMembership) (ResourceMembership, error)
	GetByID(ctx context.Context, id string) (ResourceMembership, error)
	GetByResourceAndOrganization(ctx context.Context, resourceID, organizationID string) (ResourceMembership, error)
	ListByResource(ctx context.Context, resourceID string) ([]ResourceMembership, error)
	Delete(ctx context.Context, id string) error

	SetFulltime(ctx context.Context, id string, fulltime bool) error
	UpdateScheduleExtendedTo(ctx context.Context, id string, extendedTo time.Time) error

	// ResourcesByOrganization restores Organization.get_resource_ids from
	// the original source: list the resources with a membership in org,
	// optionally narrowed to fulltime-only or parttime-only members.
	ResourcesByOrganization(ctx context.Context, organizationID string, fulltimeOnly, parttimeOnly bool) ([]Resource, error)

	// ListStaleSchedules returns every membership whose schedule_extended_to
	// is before the given watermark, the roster the background extender
	// job (cmd/api's cron.Scheduler) rolls forward each tick.
	ListStaleSchedules(ctx context.Context, before time.Time) ([]ResourceMembership, error)
}

// ScheduleFragmentRepository persists the weekly template rows belonging
// to a membership.
type ScheduleFragmentRepository interface {
	ListByMembership(ctx context.Context, membershipID string) ([]ScheduleFragment, error)
	ReplaceForMembership(ctx context.Context, membershipID string, fragments []ScheduleFragment) error

	// ListByResourceExcludingMembership returns every fragment belonging
	// to the resource's other memberships, used to enforce Invariant 7
	// (schedule disjointness across organizations).
	ListByResourceExcludingMembership(ctx context.Context, resourceID, excludeMembershipID string) ([]ScheduleFragment, error)
}

// IntervalRepository is the persistence surface the interval algebra (see
// internal/algebra) runs its persistent-mode Bag over.
type IntervalRepository interface {
	Create(ctx context.Context, i Interval) (Interval, error)
	Update(ctx context.Context, i Interval) (Interval, error)
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (Interval, error)

	// Between returns every interval on resourceID whose span touches,
	// contains, or is contained by [start,end), honoring half-open
	// boundary semantics (an interval starting exactly at end, or ending
	// exactly at start, is excluded). A bare-date end is not advanced here;
	// the HTTP layer's parseWindow advances it by one day before calling.
	Between(ctx context.Context, resourceID string, start, end time.Time) ([]Interval, error)

	// At returns intervals strictly covering instant (start < instant < end).
	At(ctx context.Context, resourceID string, instant time.Time) ([]Interval, error)

	// Similar returns intervals sharing (resource, kind, organization,
	// manager) with i, excluding i itself, narrowed to the span
	// [start-tol, end+tol] by the caller.
	Similar(ctx context.Context, i Interval, start, end time.Time) ([]Interval, error)

	// ManagersOver returns the distinct managers appearing in
	// ManagerReserved or OrgReserved intervals among the given set.
	ManagersOver(ctx context.Context, intervals []Interval) ([]Manager, error)
}

// ApiKeyRepository resolves the Api-Key header to an app label.
type ApiKeyRepository interface {
	Create(ctx context.Context, app string) (ApiKey, error)
	GetByKey(ctx context.Context, key string) (ApiKey, error)
	List(ctx context.Context) ([]ApiKey, error)
}
