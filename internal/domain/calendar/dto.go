package calendar

import (
	"time"

	"github.com/rcalendar/msa-rcalendar/internal/pkg/validator"
)

// CreateOrganizationRequest is the body of POST /organization/.
type CreateOrganizationRequest struct {
	ID int64 `json:"id"`
}

func (r CreateOrganizationRequest) Validate() error {
	var errs validator.ValidationErrors
	if r.ID <= 0 {
		errs = append(errs, validator.ValidationError{Field: "id", Message: "id is required"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ResourceMemberSummary is one row of OrganizationResponse.ResourceMembers.
type ResourceMemberSummary struct {
	Resource    int64 `json:"resource"`
	HasSchedule bool  `json:"has_schedule"`
}

// OrganizationResponse is the body of GET /organization/{id}/.
type OrganizationResponse struct {
	ManagerIDs      []int64                 `json:"manager_ids"`
	ResourceMembers []ResourceMemberSummary `json:"resource_members"`
}

// AddManyRequest is the body of POST /manager/add_many/ and
// POST /resource/add_many/.
type AddManyRequest struct {
	IDs          []int64 `json:"ids"`
	Organization int64   `json:"organization"`
}

func (r AddManyRequest) Validate() error {
	var errs validator.ValidationErrors
	if len(r.IDs) == 0 {
		errs = append(errs, validator.ValidationError{Field: "ids", Message: "ids must not be empty"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ScheduleFragmentInput is one row of ApplyScheduleRequest.ScheduleIntervals.
type ScheduleFragmentInput struct {
	DayOfWeek int    `json:"day_of_week"`
	Start     string `json:"start"`
	End       string `json:"end"`
}

func (f ScheduleFragmentInput) Validate() error {
	var errs validator.ValidationErrors
	if f.DayOfWeek < 0 || f.DayOfWeek > 6 {
		errs = append(errs, validator.ValidationError{Field: "day_of_week", Message: "day_of_week must be between 0 and 6"})
	}
	if _, ok := validator.IsValidTime(f.Start); !ok {
		errs = append(errs, validator.ValidationError{Field: "start", Message: "start must be HH:MM"})
	}
	if _, ok := validator.IsValidTime(f.End); !ok {
		errs = append(errs, validator.ValidationError{Field: "end", Message: "end must be HH:MM"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ApplyScheduleRequest is the body of POST /resource/{id}/apply_schedule/.
// A missing End means the template is applied permanently: it is saved as
// the membership's default and projected ExtendableMin past Start, with
// later roll-forwards extending it from there; missing Start and End
// together means "roll the existing template forward by ExtendableMin".
type ApplyScheduleRequest struct {
	Organization      int64                   `json:"organization"`
	Start             *time.Time              `json:"start,omitempty"`
	End               *time.Time              `json:"end,omitempty"`
	ScheduleIntervals []ScheduleFragmentInput `json:"schedule_intervals,omitempty"`
}

// ClearUnavailableRequest is the body of
// POST /resource/{id}/clear_unavailable_interval/.
type ClearUnavailableRequest struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (r ClearUnavailableRequest) Validate() error {
	var errs validator.ValidationErrors
	if !r.Start.Before(r.End) {
		errs = append(errs, validator.ValidationError{Field: "end", Message: "End date must be greater than start date."})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// IntervalRequest is the body of POST/PATCH /interval/.
type IntervalRequest struct {
	ID             *string   `json:"id,omitempty"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	Kind           string    `json:"kind"`
	Resource       int64     `json:"resource"`
	Organization   *int64    `json:"organization,omitempty"`
	Manager        *int64    `json:"manager,omitempty"`
	Comment        *string   `json:"comment,omitempty"`
}

func (r IntervalRequest) Validate() error {
	var errs validator.ValidationErrors
	if !r.Start.Before(r.End) {
		errs = append(errs, validator.ValidationError{Field: "end", Message: "End date must be greater than start date."})
	}
	if _, ok := ParseIntervalKind(r.Kind); !ok {
		errs = append(errs, validator.ValidationError{Field: "kind", Message: "unrecognized interval kind"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// IntervalResponse is the wire rendering of an Interval (spec §6): kind is
// rendered as a string and Object carries the external id of the
// organization (OrgReserved) or manager (ManagerReserved) the interval
// belongs to, for clients that only care about "whose interval is this".
type IntervalResponse struct {
	ID           string    `json:"id"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Kind         string    `json:"kind"`
	Resource     int64     `json:"resource"`
	Organization *int64    `json:"organization,omitempty"`
	Manager      *int64    `json:"manager,omitempty"`
	Comment      *string   `json:"comment,omitempty"`
	Object       *int64    `json:"object,omitempty"`
}

// DeleteManyRequest is the body of DELETE /interval/delete_many/.
type DeleteManyRequest struct {
	IDs []string `json:"ids"`
}

func (r DeleteManyRequest) Validate() error {
	var errs validator.ValidationErrors
	if len(r.IDs) == 0 {
		errs = append(errs, validator.ValidationError{Field: "ids", Message: "ids must not be empty"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
