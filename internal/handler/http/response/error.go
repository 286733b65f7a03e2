package response

import (
	"errors"
	"log"
	"net/http"

	"github.com/rcalendar/msa-rcalendar/internal/domain/calendar"
	"github.com/rcalendar/msa-rcalendar/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	case errors.Is(err, calendar.ErrOrganizationNotFound):
		NotFound(w, "Organization not found")
	case errors.Is(err, calendar.ErrManagerNotFound):
		NotFound(w, "Manager not found")
	case errors.Is(err, calendar.ErrResourceNotFound):
		NotFound(w, "Resource not found")
	case errors.Is(err, calendar.ErrMembershipNotFound):
		NotFound(w, "Resource is not a member of this organization")
	case errors.Is(err, calendar.ErrIntervalNotFound):
		NotFound(w, "Interval not found")
	case errors.Is(err, calendar.ErrApiKeyNotFound):
		Unauthorized(w, "Missing or invalid Api-Key")
	case errors.Is(err, calendar.ErrDuplicateExternalID):
		Conflict(w, "This id already exists for this app")
	case errors.Is(err, calendar.ErrUnauthorized):
		Unauthorized(w, err.Error())
	case errors.Is(err, calendar.ErrForbidden):
		Forbidden(w, err.Error())
	case errors.Is(err, calendar.ErrAlreadyFulltimeElsewhere):
		Conflict(w, "Resource is already a fulltime member of another organization")

	default:
		log.Printf("unhandled error: %v", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}
