package calendar

import "errors"

// Sentinel errors returned by the calendar domain. Handlers map these to
// HTTP status codes via errors.Is (see internal/handler/http/response).
var (
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrManagerNotFound      = errors.New("manager not found")
	ErrResourceNotFound     = errors.New("resource not found")
	ErrMembershipNotFound   = errors.New("membership not found")
	ErrIntervalNotFound     = errors.New("interval not found")
	ErrApiKeyNotFound       = errors.New("api key not found")

	ErrDuplicateExternalID = errors.New("external id already exists for this app")

	ErrUnauthorized = errors.New("missing or invalid api key")
	ErrForbidden    = errors.New("author is not authorized for this action")

	ErrAlreadyFulltimeElsewhere = errors.New("resource is already a fulltime member of another organization")
)
