// Package events implements the per-request domain event sink (spec §4F):
// an ordered list of events produced by the algebra, validation, and
// materializer packages during one request, handed back to the transport
// layer on response. Per spec §9, the sink is bound into the request's
// context.Context rather than held as a package-level variable, so
// concurrent requests never share or leak each other's events.
package events

import "context"

// Kind tags the shape of an Event's Payload; see spec §4F's table.
type Kind string

const (
	KindCreateInterval          Kind = "create-interval"
	KindDeleteInterval          Kind = "delete-interval"
	KindAddUnavailableInterval  Kind = "add-unavailable-interval"
	KindClearUnavailableInterval Kind = "clear-unavailable-interval"
	KindApplySchedule           Kind = "apply-schedule"
)

// Event is one row of the per-request ordered event list.
type Event struct {
	Kind    Kind           `json:"kind"`
	Payload map[string]any `json:"payload"`
}

// Sink accumulates events in emission order for the duration of one
// request. It is not safe for concurrent use from multiple goroutines;
// the single-threaded-per-request model of spec §5 makes that unnecessary.
type Sink struct {
	events []Event
}

// NewSink returns an empty sink. Handlers create one per incoming request.
func NewSink() *Sink {
	return &Sink{}
}

// Push appends an event, preserving the mutation order it was produced in.
func (s *Sink) Push(kind Kind, payload map[string]any) {
	if s == nil {
		return
	}
	s.events = append(s.events, Event{Kind: kind, Payload: payload})
}

// Events returns the accumulated list, nil when nothing was pushed.
func (s *Sink) Events() []Event {
	if s == nil || len(s.events) == 0 {
		return nil
	}
	return s.events
}

// Clear empties the sink. No request path calls it: ApiKeyRequired binds a
// fresh sink per request, and error responses never carry the sink's
// events, so partial events from a rolled-back transaction are not
// observed (spec §7).
func (s *Sink) Clear() {
	if s == nil {
		return
	}
	s.events = nil
}

type contextKey struct{}

// WithSink binds sink into ctx for downstream retrieval by FromContext.
func WithSink(ctx context.Context, sink *Sink) context.Context {
	return context.WithValue(ctx, contextKey{}, sink)
}

// FromContext returns the sink bound by WithSink, or a freshly allocated
// no-op sink if the request path never installed one (e.g. a unit test
// exercising the service layer directly).
func FromContext(ctx context.Context) *Sink {
	if sink, ok := ctx.Value(contextKey{}).(*Sink); ok && sink != nil {
		return sink
	}
	return NewSink()
}
