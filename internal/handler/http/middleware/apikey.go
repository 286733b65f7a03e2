package middleware

import (
	"context"
	"net/http"

	"github.com/rcalendar/msa-rcalendar/internal/domain/calendar"
	"github.com/rcalendar/msa-rcalendar/internal/events"
	"github.com/rcalendar/msa-rcalendar/internal/handler/http/response"
)

type appContextKey struct{}

// AppFromContext returns the app label resolved by ApiKeyRequired.
func AppFromContext(ctx context.Context) string {
	app, _ := ctx.Value(appContextKey{}).(string)
	return app
}

// ApiKeyRequired resolves the Api-Key header to an app label, replacing the
// teacher's JWT bearer-token flow: this system authenticates calling
// services, not end users, so a single static header is the whole scheme
// (SPEC_FULL §"AMBIENT STACK"). A fresh events.Sink is bound into the
// request context alongside the app label, so every handler downstream of
// this middleware can read events.FromContext(r.Context()) after calling
// the service layer.
func ApiKeyRequired(keys calendar.ApiKeyRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("Api-Key")
			if key == "" {
				response.HandleError(w, calendar.ErrUnauthorized)
				return
			}

			apiKey, err := keys.GetByKey(r.Context(), key)
			if err != nil {
				response.HandleError(w, calendar.ErrUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), appContextKey{}, apiKey.App)
			ctx = events.WithSink(ctx, events.NewSink())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
