package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rcalendar/msa-rcalendar/internal/domain/calendar"
	"github.com/rcalendar/msa-rcalendar/internal/events"
	"github.com/rcalendar/msa-rcalendar/internal/handler/http/middleware"
	"github.com/rcalendar/msa-rcalendar/internal/handler/http/response"
	"github.com/rcalendar/msa-rcalendar/internal/pkg/validator"
)

// CalendarHandler implements every HTTP operation named in spec §6.
type CalendarHandler interface {
	CreateOrganization(w http.ResponseWriter, r *http.Request)
	GetOrganization(w http.ResponseWriter, r *http.Request)
	DeleteOrganization(w http.ResponseWriter, r *http.Request)
	ListOrganizationIntervals(w http.ResponseWriter, r *http.Request)

	AddManyManagers(w http.ResponseWriter, r *http.Request)
	RemoveManager(w http.ResponseWriter, r *http.Request)

	AddManyResources(w http.ResponseWriter, r *http.Request)
	GetMembership(w http.ResponseWriter, r *http.Request)
	SetMembership(w http.ResponseWriter, r *http.Request)
	DeleteMembership(w http.ResponseWriter, r *http.Request)
	ApplySchedule(w http.ResponseWriter, r *http.Request)
	ListResourceIntervals(w http.ResponseWriter, r *http.Request)
	ClearUnavailableInterval(w http.ResponseWriter, r *http.Request)

	CreateInterval(w http.ResponseWriter, r *http.Request)
	UpdateInterval(w http.ResponseWriter, r *http.Request)
	DeleteInterval(w http.ResponseWriter, r *http.Request)
	DeleteManyIntervals(w http.ResponseWriter, r *http.Request)
}

type CalendarHandlerImpl struct {
	service calendar.Service
}

func NewCalendarHandler(service calendar.Service) CalendarHandler {
	return &CalendarHandlerImpl{service: service}
}

func (h *CalendarHandlerImpl) app(r *http.Request) string {
	return middleware.AppFromContext(r.Context())
}

func (h *CalendarHandlerImpl) sink(r *http.Request) *events.Sink {
	return events.FromContext(r.Context())
}

// ---- Organizations --------------------------------------------------

func (h *CalendarHandlerImpl) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req calendar.CreateOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	org, err := h.service.CreateOrganization(r.Context(), h.app(r), req)
	if err != nil {
		slog.Error("create organization", "error", err)
		response.HandleError(w, err)
		return
	}
	response.Created(w, "Organization created", org)
}

func (h *CalendarHandlerImpl) GetOrganization(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	org, err := h.service.GetOrganization(r.Context(), h.app(r), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, org)
}

func (h *CalendarHandlerImpl) DeleteOrganization(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.DeleteOrganization(r.Context(), h.app(r), id); err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, nil)
}

func (h *CalendarHandlerImpl) ListOrganizationIntervals(w http.ResponseWriter, r *http.Request) {
	organizationExternalID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "id must be numeric", nil)
		return
	}

	window, err := parseWindow(r)
	if err != nil {
		response.BadRequest(w, err.Error(), nil)
		return
	}

	var resourceExternalID *int64
	if raw := r.URL.Query().Get("resource"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.BadRequest(w, "resource must be numeric", nil)
			return
		}
		resourceExternalID = &v
	}

	intervals, err := h.service.ListOrganizationIntervals(r.Context(), h.app(r), organizationExternalID, window, resourceExternalID)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, intervals)
}

// ---- Managers ---------------------------------------------------------

func (h *CalendarHandlerImpl) AddManyManagers(w http.ResponseWriter, r *http.Request) {
	var req calendar.AddManyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}
	if err := h.service.AddManyManagers(r.Context(), h.app(r), req); err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Managers added", nil)
}

func (h *CalendarHandlerImpl) RemoveManager(w http.ResponseWriter, r *http.Request) {
	managerExternalID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "id must be numeric", nil)
		return
	}

	var organizationExternalID *int64
	if raw := r.URL.Query().Get("organization"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			response.BadRequest(w, "organization must be numeric", nil)
			return
		}
		organizationExternalID = &v
	}

	if err := h.service.RemoveManager(r.Context(), h.app(r), managerExternalID, organizationExternalID); err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, nil)
}

// ---- Resources & membership ----------------------------------------------

func (h *CalendarHandlerImpl) AddManyResources(w http.ResponseWriter, r *http.Request) {
	var req calendar.AddManyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	if len(req.IDs) == 0 {
		response.HandleError(w, validator.ValidationErrors{{Field: "ids", Message: "ids must not be empty"}})
		return
	}
	if err := h.service.AddManyResources(r.Context(), h.app(r), req); err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithMessage(w, "Resources added", nil)
}

func (h *CalendarHandlerImpl) resourceAndOrganizationParams(r *http.Request) (int64, int64, error) {
	resourceExternalID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, 0, err
	}
	organizationExternalID, err := strconv.ParseInt(r.URL.Query().Get("organization"), 10, 64)
	if err != nil {
		return 0, 0, err
	}
	return resourceExternalID, organizationExternalID, nil
}

func (h *CalendarHandlerImpl) GetMembership(w http.ResponseWriter, r *http.Request) {
	resourceExternalID, organizationExternalID, err := h.resourceAndOrganizationParams(r)
	if err != nil {
		response.BadRequest(w, "id and organization must be numeric", nil)
		return
	}
	membership, err := h.service.GetMembership(r.Context(), h.app(r), resourceExternalID, organizationExternalID)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, membership)
}

// setMembershipRequest is PUT /resource/{id}/membership/'s body: fulltime
// defaults false (part-time) when omitted, matching a plain join.
type setMembershipRequest struct {
	Fulltime bool `json:"fulltime"`
}

func (h *CalendarHandlerImpl) SetMembership(w http.ResponseWriter, r *http.Request) {
	resourceExternalID, organizationExternalID, err := h.resourceAndOrganizationParams(r)
	if err != nil {
		response.BadRequest(w, "id and organization must be numeric", nil)
		return
	}

	var req setMembershipRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	if _, err := h.service.GetMembership(r.Context(), h.app(r), resourceExternalID, organizationExternalID); err == nil {
		if setErr := h.service.SetParticipation(r.Context(), h.app(r), resourceExternalID, organizationExternalID, req.Fulltime); setErr != nil {
			response.HandleError(w, setErr)
			return
		}
		response.SuccessWithEvents(w, nil, h.sink(r))
		return
	}

	membership, err := h.service.JoinOrganization(r.Context(), h.app(r), resourceExternalID, organizationExternalID, req.Fulltime)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.CreatedWithEvents(w, "Resource joined organization", membership, h.sink(r))
}

func (h *CalendarHandlerImpl) DeleteMembership(w http.ResponseWriter, r *http.Request) {
	resourceExternalID, organizationExternalID, err := h.resourceAndOrganizationParams(r)
	if err != nil {
		response.BadRequest(w, "id and organization must be numeric", nil)
		return
	}
	if err := h.service.DismissFromOrganization(r.Context(), h.app(r), resourceExternalID, organizationExternalID); err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithEvents(w, nil, h.sink(r))
}

func (h *CalendarHandlerImpl) ApplySchedule(w http.ResponseWriter, r *http.Request) {
	resourceExternalID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "id must be numeric", nil)
		return
	}

	var req calendar.ApplyScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	for _, f := range req.ScheduleIntervals {
		if err := f.Validate(); err != nil {
			response.HandleError(w, err)
			return
		}
	}

	changed, err := h.service.ApplySchedule(r.Context(), h.app(r), resourceExternalID, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithEvents(w, map[string]bool{"changed": changed}, h.sink(r))
}

func (h *CalendarHandlerImpl) ListResourceIntervals(w http.ResponseWriter, r *http.Request) {
	resourceExternalID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "id must be numeric", nil)
		return
	}
	window, err := parseWindow(r)
	if err != nil {
		response.BadRequest(w, err.Error(), nil)
		return
	}
	intervals, err := h.service.ListResourceIntervals(r.Context(), h.app(r), resourceExternalID, window)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.Success(w, intervals)
}

func (h *CalendarHandlerImpl) ClearUnavailableInterval(w http.ResponseWriter, r *http.Request) {
	resourceExternalID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "id must be numeric", nil)
		return
	}

	var req calendar.ClearUnavailableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	if err := h.service.ClearUnavailableInterval(r.Context(), h.app(r), resourceExternalID, req); err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithEvents(w, nil, h.sink(r))
}

// ---- Intervals ----------------------------------------------------------

func (h *CalendarHandlerImpl) CreateInterval(w http.ResponseWriter, r *http.Request) {
	var req calendar.IntervalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}
	if err := authorizeIntervalMutation(r, req); err != nil {
		response.HandleError(w, err)
		return
	}

	interval, err := h.service.CreateInterval(r.Context(), h.app(r), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.CreatedWithEvents(w, "Interval created", interval, h.sink(r))
}

func (h *CalendarHandlerImpl) UpdateInterval(w http.ResponseWriter, r *http.Request) {
	var req calendar.IntervalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	if req.ID == nil || *req.ID == "" {
		response.BadRequest(w, "id is required", nil)
		return
	}
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}
	if err := authorizeIntervalMutation(r, req); err != nil {
		response.HandleError(w, err)
		return
	}

	interval, err := h.service.UpdateInterval(r.Context(), h.app(r), *req.ID, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithEvents(w, interval, h.sink(r))
}

func (h *CalendarHandlerImpl) DeleteInterval(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		response.BadRequest(w, "id is required", nil)
		return
	}
	if err := h.service.DeleteInterval(r.Context(), h.app(r), id); err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithEvents(w, nil, h.sink(r))
}

func (h *CalendarHandlerImpl) DeleteManyIntervals(w http.ResponseWriter, r *http.Request) {
	var req calendar.DeleteManyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	if err := req.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}
	if err := h.service.DeleteManyIntervals(r.Context(), h.app(r), req); err != nil {
		response.HandleError(w, err)
		return
	}
	response.SuccessWithEvents(w, nil, h.sink(r))
}

// authorizeIntervalMutation enforces spec §6's author_id check: when the
// caller names an author_id and the interval being saved is a manager
// reservation, the author must be that manager.
func authorizeIntervalMutation(r *http.Request, req calendar.IntervalRequest) error {
	raw := r.URL.Query().Get("author_id")
	if raw == "" {
		return nil
	}
	authorID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil
	}
	kind, _ := calendar.ParseIntervalKind(req.Kind)
	if kind == calendar.KindManagerReserved && req.Manager != nil && *req.Manager != authorID {
		return calendar.ErrForbidden
	}
	return nil
}

// parseWindow resolves start/end query params into a Range (spec §4B): a
// bare date's end is advanced one day so "2024-01-01".."2024-01-02" covers
// the whole of both days, end date included, matching the original's
// include_end_date behavior.
func parseWindow(r *http.Request) (calendar.Range, error) {
	start, err := parseWindowBound(r.URL.Query().Get("start"), "start")
	if err != nil {
		return calendar.Range{}, err
	}
	end, endWasDate, err := parseWindowEnd(r.URL.Query().Get("end"))
	if err != nil {
		return calendar.Range{}, err
	}
	if endWasDate {
		end = end.AddDate(0, 0, 1)
	}
	return calendar.Range{Start: start, End: end}, nil
}

func parseWindowBound(raw, field string) (time.Time, error) {
	if t, ok := validator.IsValidDateTime(raw); ok {
		return t, nil
	}
	if t, ok := validator.IsValidDate(raw); ok {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%s must be an RFC3339 datetime or YYYY-MM-DD date", field)
}

func parseWindowEnd(raw string) (time.Time, bool, error) {
	if t, ok := validator.IsValidDateTime(raw); ok {
		return t, false, nil
	}
	if t, ok := validator.IsValidDate(raw); ok {
		return t, true, nil
	}
	return time.Time{}, false, fmt.Errorf("end must be an RFC3339 datetime or YYYY-MM-DD date")
}
