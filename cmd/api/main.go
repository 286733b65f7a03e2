package main

import (
	"fmt"
	"net/http"

	"github.com/rcalendar/msa-rcalendar/internal/config"
	appHTTP "github.com/rcalendar/msa-rcalendar/internal/handler/http"
	"github.com/rcalendar/msa-rcalendar/internal/job"
	"github.com/rcalendar/msa-rcalendar/internal/materializer"
	"github.com/rcalendar/msa-rcalendar/internal/pkg/cron"
	"github.com/rcalendar/msa-rcalendar/internal/pkg/database"
	"github.com/rcalendar/msa-rcalendar/internal/repository/postgresql"
	calendarService "github.com/rcalendar/msa-rcalendar/internal/service/calendar"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		return
	}

	dsn := cfg.DatabaseURL()
	db, err := database.NewPostgreSQLDB(dsn)
	if err != nil {
		fmt.Println("Error connecting to database:", err)
		return
	}

	organizationRepo := postgresql.NewOrganizationRepository(db)
	managerRepo := postgresql.NewManagerRepository(db)
	resourceRepo := postgresql.NewResourceRepository(db)
	membershipRepo := postgresql.NewMembershipRepository(db)
	fragmentRepo := postgresql.NewScheduleFragmentRepository(db)
	intervalRepo := postgresql.NewIntervalRepository(db)
	apiKeyRepo := postgresql.NewApiKeyRepository(db)

	calendarSvc := calendarService.NewService(
		db,
		organizationRepo,
		managerRepo,
		resourceRepo,
		membershipRepo,
		fragmentRepo,
		intervalRepo,
		apiKeyRepo,
	)

	calendarHandler := appHTTP.NewCalendarHandler(calendarSvc)
	router := appHTTP.NewRouter(apiKeyRepo, calendarHandler)

	// Background roll-forward keeps materialization ahead of "now" for
	// every membership whose watermark has fallen behind (spec §4E).
	cronScheduler := cron.NewScheduler()
	scheduleExtender := job.NewScheduleExtender(membershipRepo, materializer.Deps{
		Intervals:   intervalRepo,
		Fragments:   fragmentRepo,
		Memberships: membershipRepo,
	})
	scheduleExtender.Register(cronScheduler)
	go cronScheduler.Start()
	defer cronScheduler.Stop()

	port := fmt.Sprintf(":%d", cfg.App.Port)
	fmt.Printf("Server running at http://localhost%s\n", port)
	if err := http.ListenAndServe(port, router); err != nil {
		fmt.Println("Server error:", err)
	}
}
