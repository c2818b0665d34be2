package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"google.golang.org/api/option"

	"github.com/cloudkeep/inventory-crawler/internal/api/middleware"
	"github.com/cloudkeep/inventory-crawler/internal/api/rest"
	"github.com/cloudkeep/inventory-crawler/internal/config"
	"github.com/cloudkeep/inventory-crawler/internal/gcpapi"
	"github.com/cloudkeep/inventory-crawler/internal/inventory/gcpregistry"
	"github.com/cloudkeep/inventory-crawler/internal/pkg/logger"
	"github.com/cloudkeep/inventory-crawler/internal/pkg/tracing"
	"github.com/cloudkeep/inventory-crawler/internal/repository"
	"github.com/cloudkeep/inventory-crawler/migrations"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Printf("warning: failed to load config: %v; using defaults", err)
		cfg = &config.Config{
			Port:             8090,
			DatabasePath:     "./inventory.db",
			LogLevel:         "info",
			LogFormat:        "json",
			AllowedOrigins:   []string{"*"},
			DispatchPoolSize: 16,
		}
	}

	slogger := logger.StdLogger()
	slogger.Info("inventory-crawler server starting", "port", cfg.Port, "database", cfg.DatabasePath)

	if cfg.TracingEnabled {
		cleanup, err := tracing.Init(cfg.TracingServiceName, cfg.TracingEndpoint, cfg.TracingSamplingRate)
		if err != nil {
			slogger.Error("tracing init failed, continuing without tracing", "error", err)
		} else {
			defer cleanup()
		}
	}

	var store interface {
		repository.RunRepository
		repository.ResourceRepository
		repository.WarningRepository
		Close() error
		Ping(ctx context.Context) error
		RunMigrations(migrationSQL string) error
	}
	if cfg.DatabaseURL != "" {
		store, err = repository.NewPostgresRepository(cfg.DatabaseURL)
	} else {
		store, err = repository.NewSQLiteRepository(cfg.DatabasePath)
	}
	if err != nil {
		log.Fatalf("opening repository: %v", err)
	}
	defer store.Close()

	entries, err := migrations.FS.ReadDir(".")
	if err != nil {
		log.Fatalf("reading embedded migrations: %v", err)
	}
	for _, entry := range entries {
		sql, err := migrations.FS.ReadFile(entry.Name())
		if err != nil {
			log.Fatalf("reading migration %s: %v", entry.Name(), err)
		}
		if err := store.RunMigrations(string(sql)); err != nil {
			log.Fatalf("applying migration %s: %v", entry.Name(), err)
		}
	}
	repo := &repository.Repository{Run: store, Resource: store, Warning: store}

	var clientOpts []option.ClientOption
	if cfg.GCPCredentialsPath != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.GCPCredentialsPath))
	}
	apiClient, err := gcpapi.New(ctx, clientOpts...)
	if err != nil {
		log.Fatalf("constructing gcp api client: %v", err)
	}

	registry := gcpregistry.Build()
	exclusions := make(map[string]struct{}, len(cfg.ExcludedResources))
	for _, e := range cfg.ExcludedResources {
		exclusions[e] = struct{}{}
	}
	crawlHandler := rest.NewCrawlHandler(repo, registry, apiClient, cfg.DispatchPoolSize, exclusions, slogger)
	healthzHandler := rest.NewHealthzHandler(sqliteOnly(store))

	router := mux.NewRouter()
	router.HandleFunc("/crawl", crawlHandler.PostCrawl).Methods("POST")
	router.HandleFunc("/crawl/{id}", crawlHandler.GetCrawlStatus).Methods("GET")
	router.HandleFunc("/healthz/live", healthzHandler.Live).Methods("GET")
	router.HandleFunc("/healthz/ready", healthzHandler.Ready).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	router.Use(middleware.SecureHeaders)
	router.Use(middleware.RequestID)
	router.Use(middleware.StructuredLog)
	router.Use(middleware.Tracing)
	router.Use(middleware.RateLimit())
	router.Use(middleware.MaxBodySize(middleware.DefaultStandardMaxBodyBytes, middleware.DefaultCrawlMaxBodyBytes))
	router.Use(middleware.CORSValidation(cfg, slogger))

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	})

	shutdownTimeout := 15 * time.Second
	if cfg.ShutdownTimeoutSec > 0 {
		shutdownTimeout = time.Duration(cfg.ShutdownTimeoutSec) * time.Second
	}
	readTimeout := 15 * time.Second
	if cfg.RequestTimeoutSec > 0 {
		readTimeout = time.Duration(cfg.RequestTimeoutSec) * time.Second
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      corsHandler.Handler(router),
		ReadTimeout:  readTimeout,
		WriteTimeout: readTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slogger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slogger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slogger.Error("forced shutdown", "error", err)
	}
	slogger.Info("server exited gracefully")
}

// sqliteOnly narrows store to the concrete type rest.NewHealthzHandler
// expects; nil for a Postgres-backed store, since healthz.Ready only checks
// SQLite connectivity today (a Postgres-aware variant is future work).
func sqliteOnly(store interface{}) *repository.SQLiteRepository {
	sqliteStore, _ := store.(*repository.SQLiteRepository)
	return sqliteStore
}
