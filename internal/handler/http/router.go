package http

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"

	"github.com/rcalendar/msa-rcalendar/internal/domain/calendar"
	"github.com/rcalendar/msa-rcalendar/internal/handler/http/middleware"
)

func NewRouter(apiKeys calendar.ApiKeyRepository, calendarHandler CalendarHandler) *chi.Mux {
	r := chi.NewRouter()
	logFormat := httplog.SchemaECS.Concise(false)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "rcalendar"),
		slog.String("version", "v1.0.0"),
	)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowCredentials: false,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Api-Key", "Content-Type"},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelInfo,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.AllowContentEncoding("application/json"))
	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.ApiKeyRequired(apiKeys))

		r.Route("/organization", func(r chi.Router) {
			r.Post("/", calendarHandler.CreateOrganization)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", calendarHandler.GetOrganization)
				r.Delete("/", calendarHandler.DeleteOrganization)
				r.Get("/intervals/", calendarHandler.ListOrganizationIntervals)
			})
		})

		r.Route("/manager", func(r chi.Router) {
			r.Post("/add_many/", calendarHandler.AddManyManagers)
			r.Delete("/{id}/", calendarHandler.RemoveManager)
		})

		r.Route("/resource", func(r chi.Router) {
			r.Post("/add_many/", calendarHandler.AddManyResources)
			r.Route("/{id}", func(r chi.Router) {
				r.Route("/membership", func(r chi.Router) {
					r.Get("/", calendarHandler.GetMembership)
					r.Put("/", calendarHandler.SetMembership)
					r.Delete("/", calendarHandler.DeleteMembership)
				})
				r.Post("/apply_schedule/", calendarHandler.ApplySchedule)
				r.Get("/intervals/", calendarHandler.ListResourceIntervals)
				r.Post("/clear_unavailable_interval/", calendarHandler.ClearUnavailableInterval)
			})
		})

		r.Route("/interval", func(r chi.Router) {
			r.Post("/", calendarHandler.CreateInterval)
			r.Patch("/", calendarHandler.UpdateInterval)
			r.Delete("/", calendarHandler.DeleteInterval)
			r.Delete("/delete_many/", calendarHandler.DeleteManyIntervals)
		})
	})

	return r
}
