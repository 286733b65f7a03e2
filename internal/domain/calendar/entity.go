package calendar

import "time"

// IntervalKind distinguishes the owner and semantics of a stored Interval.
type IntervalKind int

const (
	KindOrgReserved IntervalKind = 0
	// KindManagerReserved marks time a manager has reserved for themself
	// inside an organization's reserved time.
	KindManagerReserved IntervalKind = 10
	// KindScheduledUnavailable marks the gaps a weekly schedule template
	// carves out of a resource's organization-reserved time: the hours
	// the template does not cover. Distinct from a manually-entered
	// Unavailable interval so the two do not coalesce under join_into.
	KindScheduledUnavailable IntervalKind = 90
	KindUnavailable          IntervalKind = 100
)

// String renders the wire form used by the HTTP interval representation.
func (k IntervalKind) String() string {
	switch k {
	case KindOrgReserved:
		return "organization"
	case KindManagerReserved:
		return "manager"
	case KindScheduledUnavailable:
		return "scheduled_unavailable"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// ParseIntervalKind is the inverse of IntervalKind.String, used at the HTTP
// boundary when decoding an incoming interval's "kind" field.
func ParseIntervalKind(s string) (IntervalKind, bool) {
	switch s {
	case "organization":
		return KindOrgReserved, true
	case "manager":
		return KindManagerReserved, true
	case "scheduled_unavailable":
		return KindScheduledUnavailable, true
	case "unavailable":
		return KindUnavailable, true
	default:
		return 0, false
	}
}

// Organization is a container grouping managers and resource memberships,
// scoped to the calling app.
type Organization struct {
	ID         string
	App        string
	ExternalID int64
	CreatedAt  time.Time
}

// Manager is an actor authorized to reserve time inside the organizations
// it belongs to (M:N, tracked by ManagerRepository).
type Manager struct {
	ID         string
	App        string
	ExternalID int64
	CreatedAt  time.Time
}

// Resource is the subject whose timeline is scheduled.
type Resource struct {
	ID         string
	App        string
	ExternalID int64
	CreatedAt  time.Time
}

// ResourceMembership is the edge between a Resource and an Organization: it
// carries the weekly schedule template (via ScheduleFragmentRepository) and
// the watermark through which that template has been materialized.
type ResourceMembership struct {
	ID                 string
	ResourceID         string
	OrganizationID     string
	Fulltime           bool
	ScheduleExtendedTo *time.Time
	CreatedAt          time.Time
}

// ScheduleFragment is one row of a weekly schedule template.
// DayOfWeek follows the Sunday=0..Saturday=6 convention (see temporal.go).
// StartTime/EndTime carry only a time-of-day; their Location is the
// fragment's timezone (UTC if ingested naive).
type ScheduleFragment struct {
	ID           string
	MembershipID string
	DayOfWeek    int
	StartTime    time.Time
	EndTime      time.Time
}

// Interval is a span of time on a Resource's timeline, owned by one of the
// IntervalKinds above. Organization and Manager are nil unless the kind
// requires them (see Invariants 2-3 in the domain model).
type Interval struct {
	ID             string
	ResourceID     string
	Kind           IntervalKind
	Start          time.Time
	End            time.Time
	OrganizationID *string
	ManagerID      *string
	Comment        *string
	CreatedAt      time.Time
}

// SameIdentity reports whether two intervals share the identity class
// (resource, kind, organization, manager) that join_into and subtract_from
// operate on, treating nil organization/manager as mutually equal.
func (i Interval) SameIdentity(o Interval) bool {
	if i.ResourceID != o.ResourceID || i.Kind != o.Kind {
		return false
	}
	return stringPtrEqual(i.OrganizationID, o.OrganizationID) && stringPtrEqual(i.ManagerID, o.ManagerID)
}

func stringPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// ApiKey maps an opaque key to the app label it authenticates.
type ApiKey struct {
	Key       string
	App       string
	IsActive  bool
	CreatedAt time.Time
}
