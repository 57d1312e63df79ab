package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/cors"

	"github.com/stillherehq/stillhere-backend/internal/generate"
	"github.com/stillherehq/stillhere-backend/internal/handlers"
	"github.com/stillherehq/stillhere-backend/internal/middleware"
	"github.com/stillherehq/stillhere-backend/internal/workers"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Root context for background workers and graceful shutdown
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	// Run migrations on startup
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		log.Fatalf("Failed to init migration driver: %v", err)
	}
	migrator, err := migrate.NewWithDatabaseInstance("file://db/migrations", "postgres", driver)
	if err != nil {
		log.Fatalf("Failed to create migrator: %v", err)
	}
	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		log.Fatalf("Database migration failed: %v", err)
	}
	log.Println("Database is up-to-date")

	gen := generate.NewService()
	genHandler := generate.NewHandler(gen)
	h := handlers.New(db, gen, os.Getenv("SCRAPER_URL"))

	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", h.Health).Methods("GET")

	// Auth
	r.HandleFunc("/api/auth/signup", h.Signup).Methods("POST")
	r.HandleFunc("/api/auth/login", h.Login).Methods("POST")
	r.HandleFunc("/api/auth/logout", h.Logout).Methods("POST")

	// Onboarding profile
	r.HandleFunc("/api/user/{userId}/profile", h.GetProfileForUser).Methods("GET")
	r.HandleFunc("/api/user/{userId}/profile", h.UpsertProfileForUser).Methods("PUT")

	// Campaigns
	r.HandleFunc("/api/user/{userId}/campaigns", h.CreateCampaignForUser).Methods("POST")
	r.HandleFunc("/api/user/{userId}/campaigns", h.ListCampaignsForUser).Methods("GET")

	// Posts
	r.HandleFunc("/api/user/{userId}/posts", h.ListPostsForUser).Methods("GET")
	r.HandleFunc("/api/user/{userId}/posts/{id}", h.UpdatePostForUser).Methods("PUT")
	r.HandleFunc("/api/user/{userId}/posts/{id}", h.DeletePostForUser).Methods("DELETE")
	r.HandleFunc("/api/user/{userId}/posts/{id}/schedule", h.SchedulePostForUser).Methods("POST")
	r.HandleFunc("/api/user/{userId}/posts/{id}/approve", h.ApprovePostForUser).Methods("POST")
	r.HandleFunc("/api/user/{userId}/posts/{id}/reject", h.RejectPostForUser).Methods("POST")

	// Calendar
	r.HandleFunc("/api/user/{userId}/calendar", h.GetCalendarForUser).Methods("GET")

	// Platform credentials
	r.HandleFunc("/api/user/{userId}/credentials", h.ListCredentialsForUser).Methods("GET")
	r.HandleFunc("/api/user/{userId}/credentials/{platform}", h.UpsertCredentialForUser).Methods("PUT")
	r.HandleFunc("/api/user/{userId}/credentials/{platform}", h.DeleteCredentialForUser).Methods("DELETE")

	// Notifications
	r.HandleFunc("/api/user/{userId}/notifications", h.ListNotificationsForUser).Methods("GET")
	r.HandleFunc("/api/user/{userId}/notifications/read-all", h.MarkAllNotificationsReadForUser).Methods("POST")
	r.HandleFunc("/api/user/{userId}/notifications/{id}/read", h.MarkNotificationReadForUser).Methods("POST")
	r.HandleFunc("/api/user/{userId}/notifications/{id}", h.DismissNotificationForUser).Methods("DELETE")

	// Business insights
	r.HandleFunc("/api/user/{userId}/insights", h.GetInsightsForUser).Methods("GET")
	r.HandleFunc("/api/user/{userId}/insights/regenerate", h.RegenerateInsightsForUser).Methods("POST")

	// Billing
	r.HandleFunc("/api/billing/tiers", h.GetPricingTiers).Methods("GET")
	r.HandleFunc("/api/user/{userId}/subscription", h.GetSubscriptionForUser).Methods("GET")
	r.HandleFunc("/api/user/{userId}/checkout", h.CreateCheckoutSessionForUser).Methods("POST")
	r.HandleFunc("/webhook/stripe", h.StripeWebhook).Methods("POST")

	// Stateless generation functions (used by the frontend directly)
	r.HandleFunc("/functions/generate-posts", genHandler.GeneratePosts).Methods("POST", "OPTIONS")
	r.HandleFunc("/functions/generate-insights", genHandler.GenerateInsights).Methods("POST", "OPTIONS")

	// Realtime events
	r.HandleFunc("/api/events/ws", h.EventsWebSocket)

	// Session auth and plan limits wrap all routes; both skip their public paths.
	session := middleware.NewSessionAuthenticator(db)
	plan := middleware.NewPlanEnforcer(db)
	wrapped := session.Middleware(plan.Middleware(r))

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	handler := c.Handler(wrapped)

	port := os.Getenv("PORT")
	if port == "" {
		port = "18911"
	}

	srv := &http.Server{
		Handler:      handler,
		Addr:         ":" + port,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Background: prune old read notifications
	{
		enabled := os.Getenv("NOTIFICATION_CLEANUP_ENABLED")
		if enabled == "" || enabled == "true" {
			retention := 72
			if v := os.Getenv("NOTIFICATION_RETENTION_HOURS"); v != "" {
				if n, err := strconv.Atoi(v); err == nil && n > 0 {
					retention = n
				}
			}
			worker := &workers.NotificationCleanupWorker{DB: db, RetentionHours: retention}
			go worker.Start(rootCtx)
		} else {
			log.Printf("[NotificationCleanupWorker] disabled via NOTIFICATION_CLEANUP_ENABLED=%q", enabled)
		}
	}

	go func() {
		<-stop
		log.Println("Shutting down server...")
		cancel()
		ctx, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("Server starting on port %s", port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
	log.Println("Server stopped")
}
