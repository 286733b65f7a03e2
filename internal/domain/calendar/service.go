package calendar

import (
	"context"
	"time"
)

// Service is the calendar core's external surface: every operation named
// in the HTTP interfaces, scoped by the calling app and free of any
// transport concern. internal/service/calendar implements this by
// orchestrating internal/algebra, internal/validation and
// internal/materializer against the repositories above.
type Service interface {
	CreateOrganization(ctx context.Context, app string, req CreateOrganizationRequest) (Organization, error)
	GetOrganization(ctx context.Context, app, externalIDOrID string) (OrganizationResponse, error)
	DeleteOrganization(ctx context.Context, app, externalIDOrID string) error

	AddManyManagers(ctx context.Context, app string, req AddManyRequest) error
	RemoveManager(ctx context.Context, app string, managerExternalID int64, organizationExternalID *int64) error

	AddManyResources(ctx context.Context, app string, req AddManyRequest) error
	GetMembership(ctx context.Context, app string, resourceExternalID, organizationExternalID int64) (ResourceMembership, error)
	JoinOrganization(ctx context.Context, app string, resourceExternalID, organizationExternalID int64, fulltime bool) (ResourceMembership, error)
	DismissFromOrganization(ctx context.Context, app string, resourceExternalID, organizationExternalID int64) error
	SetParticipation(ctx context.Context, app string, resourceExternalID, organizationExternalID int64, fulltime bool) error

	ApplySchedule(ctx context.Context, app string, resourceExternalID int64, req ApplyScheduleRequest) (bool, error)
	ClearUnavailableInterval(ctx context.Context, app string, resourceExternalID int64, req ClearUnavailableRequest) error

	ListOrganizationIntervals(ctx context.Context, app string, organizationExternalID int64, window Range, resourceExternalID *int64) ([]IntervalResponse, error)
	ListResourceIntervals(ctx context.Context, app string, resourceExternalID int64, window Range) ([]IntervalResponse, error)

	CreateInterval(ctx context.Context, app string, req IntervalRequest) (IntervalResponse, error)
	UpdateInterval(ctx context.Context, app, id string, req IntervalRequest) (IntervalResponse, error)
	DeleteInterval(ctx context.Context, app, id string) error
	DeleteManyIntervals(ctx context.Context, app string, req DeleteManyRequest) error
}

// Range is a half-open [Start, End) query window, kept as a named type so
// "date vs instant, include_end_date" handling (§4B) has one place to live
// instead of being re-derived at every call site.
type Range struct {
	Start time.Time
	End   time.Time
}
