// Package validation implements the pre-save rule set for intervals and
// schedule fragments (spec §4D): organization containment, manager
// continuity, cross-organization schedule conflicts, and ownership.
package validation

import (
	"context"

	"github.com/rcalendar/msa-rcalendar/internal/algebra"
	"github.com/rcalendar/msa-rcalendar/internal/domain/calendar"
	"github.com/rcalendar/msa-rcalendar/internal/pkg/validator"
)

// Deps bundles the repositories ValidateInterval needs to check the rules
// that reach outside the candidate interval itself.
type Deps struct {
	Intervals    calendar.IntervalRepository
	Memberships  calendar.MembershipRepository
	Fragments    calendar.ScheduleFragmentRepository
	Managers     calendar.ManagerRepository
}

// ValidateInterval runs every rule of spec §4D step 1-6 against candidate,
// excluding candidate itself from the overlap set Q when candidate.ID is
// already assigned (an update). Returns a validator.ValidationErrors (never
// a bare error) when any rule fails, so the HTTP boundary can render the
// full {field: [message]} body in one response instead of failing fast on
// the first broken rule.
func ValidateInterval(ctx context.Context, deps Deps, candidate calendar.Interval) error {
	var errs validator.ValidationErrors

	if !candidate.Start.Before(candidate.End) {
		errs = append(errs, validator.ValidationError{Field: "end", Message: "End date must be greater than start date."})
	}
	if candidate.OrganizationID == nil && candidate.Kind != calendar.KindUnavailable && candidate.Kind != calendar.KindScheduledUnavailable {
		errs = append(errs, validator.ValidationError{Field: "organization", Message: "organization is required for this interval kind."})
	}
	if candidate.ManagerID != nil && candidate.OrganizationID != nil {
		isMember, err := deps.Managers.IsMemberOf(ctx, *candidate.ManagerID, *candidate.OrganizationID)
		if err != nil {
			return err
		}
		if !isMember {
			errs = append(errs, validator.ValidationError{Field: "", Message: "Only managers can reserve time for organization."})
		}
	}
	if candidate.OrganizationID != nil {
		if _, err := deps.Memberships.GetByResourceAndOrganization(ctx, candidate.ResourceID, *candidate.OrganizationID); err != nil {
			errs = append(errs, validator.ValidationError{Field: "organization", Message: "Resource is not in specified organization."})
		}
	}

	// Stop here if the structural checks already failed: the kind-specific
	// rules below assume organization/manager references are sound.
	if len(errs) > 0 {
		return errs
	}

	q, err := overlapExcludingSelf(ctx, deps.Intervals, candidate)
	if err != nil {
		return err
	}

	switch candidate.Kind {
	case calendar.KindManagerReserved:
		if err := validateManagerReserved(ctx, deps, candidate, q, &errs); err != nil {
			return err
		}
	case calendar.KindOrgReserved:
		if err := validateOrgReserved(ctx, deps, candidate, q, &errs); err != nil {
			return err
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// overlapExcludingSelf is Q = between(start,end).filter(resource=self.resource) \ self
// from spec §4D step 5.
func overlapExcludingSelf(ctx context.Context, repo calendar.IntervalRepository, self calendar.Interval) ([]calendar.Interval, error) {
	all, err := repo.Between(ctx, self.ResourceID, self.Start, self.End)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, i := range all {
		if self.ID != "" && i.ID == self.ID {
			continue
		}
		out = append(out, i)
	}
	return out, nil
}

func validateManagerReserved(ctx context.Context, deps Deps, candidate calendar.Interval, q []calendar.Interval, errs *validator.ValidationErrors) error {
	if candidate.ManagerID == nil {
		*errs = append(*errs, validator.ValidationError{Field: "manager", Message: "manager is required for a manager reservation."})
		return nil
	}

	var orgReserved, sameManager []calendar.Interval
	for _, i := range q {
		if i.Kind == calendar.KindOrgReserved && i.OrganizationID != nil && candidate.OrganizationID != nil && *i.OrganizationID == *candidate.OrganizationID {
			orgReserved = append(orgReserved, i)
		}
		if i.Kind == calendar.KindManagerReserved {
			if i.ManagerID != nil && *i.ManagerID != *candidate.ManagerID {
				*errs = append(*errs, validator.ValidationError{Field: "", Message: "This period is reserved for another manager."})
			}
			if i.ManagerID != nil && *i.ManagerID == *candidate.ManagerID {
				sameManager = append(sameManager, i)
			}
		}
	}

	continuous, err := algebra.IsContinuous(ctx, orgReserved, candidate.Start, candidate.End)
	if err != nil {
		return err
	}
	if !continuous {
		*errs = append(*errs, validator.ValidationError{Field: "", Message: "This period isn't fall within organization time."})
	}

	alreadyReserved, err := algebra.IsContinuous(ctx, sameManager, candidate.Start, candidate.End)
	if err != nil {
		return err
	}
	if alreadyReserved {
		*errs = append(*errs, validator.ValidationError{Field: "", Message: "This period is already reserved."})
	}
	return nil
}

func validateOrgReserved(ctx context.Context, deps Deps, candidate calendar.Interval, q []calendar.Interval, errs *validator.ValidationErrors) error {
	var sameOrg, otherOrg []calendar.Interval
	for _, i := range q {
		if i.Kind != calendar.KindOrgReserved {
			continue
		}
		if i.OrganizationID != nil && candidate.OrganizationID != nil && *i.OrganizationID == *candidate.OrganizationID {
			sameOrg = append(sameOrg, i)
		} else {
			otherOrg = append(otherOrg, i)
		}
	}

	alreadyCovered, err := algebra.IsContinuous(ctx, sameOrg, candidate.Start, candidate.End)
	if err != nil {
		return err
	}
	if alreadyCovered {
		*errs = append(*errs, validator.ValidationError{Field: "", Message: "This period is already reserved for organization."})
	}
	if len(otherOrg) > 0 {
		*errs = append(*errs, validator.ValidationError{Field: "", Message: "This period falls within another organization."})
	}

	memberships, err := deps.Memberships.ListByResource(ctx, candidate.ResourceID)
	if err != nil {
		return err
	}
	for _, m := range memberships {
		if candidate.OrganizationID != nil && m.OrganizationID == *candidate.OrganizationID {
			continue
		}
		fragments, err := deps.Fragments.ListByMembership(ctx, m.ID)
		if err != nil {
			return err
		}
		if algebra.FragmentSetIntersectsInterval(fragments, candidate) {
			*errs = append(*errs, validator.ValidationError{Field: "", Message: "This period falls within another organization's schedule."})
			break
		}
	}
	return nil
}

// ValidateScheduleFragments enforces Invariant 7: the fragments of two
// memberships belonging to the same resource must not intersect by
// weekday-and-time.
func ValidateScheduleFragments(ctx context.Context, deps Deps, resourceID, membershipID string, candidates []calendar.ScheduleFragment) error {
	others, err := deps.Fragments.ListByResourceExcludingMembership(ctx, resourceID, membershipID)
	if err != nil {
		return err
	}
	var errs validator.ValidationErrors
	for _, c := range candidates {
		for _, o := range others {
			if algebra.FragmentsIntersect(c, o) {
				errs = append(errs, validator.ValidationError{Field: "schedule_intervals", Message: "schedule intersects another organization's schedule for this resource."})
				break
			}
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
