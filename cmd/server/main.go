package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"investing_monitor/internal/config"
	"investing_monitor/internal/coordinator"
	"investing_monitor/internal/database"
	"investing_monitor/internal/fetcher"
	"investing_monitor/internal/handlers"
	"investing_monitor/internal/investing"
	"investing_monitor/internal/middleware"
	"investing_monitor/internal/repository"
	"investing_monitor/internal/secrets"
	"investing_monitor/internal/session"
)

// App holds the application dependencies.
type App struct {
	config        *config.Config
	db            *database.DB
	router        *chi.Mux
	coord         *coordinator.Coordinator
	credsHandler  *handlers.CredentialsHandler
	portfHandler  *handlers.PortfolioHandler
	notifsHandler *handlers.NotificationHandler
}

func main() {
	// Load configuration
	cfg := config.New()

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("Invalid timezone %q: %v", cfg.Timezone, err)
	}

	// Initialize database
	db, err := database.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := db.RunMigrations(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	// Create repositories
	portfolioRepo := repository.NewPortfolioRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	historyRepo := repository.NewFetchHistoryRepository(db)
	credentialsRepo := repository.NewCredentialsRepository(db)
	tokenRepo := repository.NewProviderSessionRepository(db)

	// Password encryption at rest
	encryptor, err := secrets.NewEncryptor(cfg.EncryptionSecret)
	if err != nil {
		log.Fatalf("Failed to initialize encryption: %v", err)
	}

	// Provider API client
	client := investing.NewClient(cfg.ProviderBaseURL)

	// Credentials are decrypted on demand for login calls and never held
	// in memory between them.
	credSource := func(ctx context.Context) (session.Credentials, error) {
		stored, err := credentialsRepo.Get()
		if err != nil {
			return session.Credentials{}, err
		}
		if stored == nil {
			return session.Credentials{}, session.ErrNoCredentials
		}
		password, err := encryptor.Decrypt(stored.PasswordCiphertext, stored.PasswordNonce, secrets.ProviderPasswordPurpose)
		if err != nil {
			return session.Credentials{}, err
		}
		return session.Credentials{
			Email:    stored.Email,
			Password: password,
			UDID:     stored.UDID,
		}, nil
	}

	sessions := session.NewManager(client, credSource).WithStore(tokenRepo)

	// Fetch pipeline and per-portfolio refresh loops
	fetch := fetcher.New(client, sessions)
	coord := coordinator.New(fetch, portfolioRepo, snapshotRepo, notificationRepo, historyRepo, loc)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := coord.Start(ctx); err != nil {
		log.Fatalf("Failed to start coordinator: %v", err)
	}

	// Create application
	app := &App{
		config:        cfg,
		db:            db,
		coord:         coord,
		credsHandler:  handlers.NewCredentialsHandler(client, credentialsRepo, tokenRepo, sessions, encryptor, cfg.InstanceSeed),
		portfHandler:  handlers.NewPortfolioHandler(coord, cfg.Schedule),
		notifsHandler: handlers.NewNotificationHandler(notificationRepo),
	}

	// Setup router
	app.setupRouter()

	// Create server
	server := &http.Server{
		Addr:         cfg.Address(),
		Handler:      app.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://%s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	<-ctx.Done()
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Stop refresh loops after the HTTP surface so no request observes a
	// half-stopped coordinator.
	coord.Stop()

	log.Println("Server stopped")
}

func (app *App) setupRouter() {
	r := chi.NewRouter()

	// Chi middleware (aliased as chimw to avoid conflict with our middleware package)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(chimw.Compress(5))

	// Security headers for all responses
	r.Use(middleware.SecurityHeaders)

	// Health check
	r.Get("/health", app.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.LimitAPI)

		// Provider account
		r.With(middleware.LimitCredentials).Post("/credentials", app.credsHandler.Save)
		r.Get("/credentials", app.credsHandler.Status)
		r.Get("/provider/portfolios", app.credsHandler.ProviderPortfolios)

		// Tracked portfolios
		r.Get("/portfolios", app.portfHandler.List)
		r.Post("/portfolios", app.portfHandler.Create)
		r.Delete("/portfolios/{id}", app.portfHandler.Delete)
		r.With(middleware.LimitRefresh).Post("/portfolios/{id}/refresh", app.portfHandler.Refresh)
		r.Get("/portfolios/{id}/snapshot", app.portfHandler.Snapshot)
		r.Get("/portfolios/{id}/history", app.portfHandler.History)

		// Metric readings for home-automation consumers
		r.Get("/readings", app.portfHandler.Readings)

		// Notifications
		r.Get("/notifications", app.notifsHandler.List)
		r.Post("/notifications/{id}/dismiss", app.notifsHandler.Dismiss)
	})

	app.router = r
}

// handleHealth returns the server health status.
func (app *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
	})
}
