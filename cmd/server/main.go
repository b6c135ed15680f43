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

	"github.com/rs/cors"

	"github.com/openhistory/journalkit/internal/config"
	"github.com/openhistory/journalkit/internal/db"
	"github.com/openhistory/journalkit/internal/domain"
	"github.com/openhistory/journalkit/internal/export"
	"github.com/openhistory/journalkit/internal/journal"
	"github.com/openhistory/journalkit/internal/middleware"
	"github.com/openhistory/journalkit/internal/repository"
)

// workItemResolver maps (type, id) pairs from requests onto live journables.
type workItemResolver struct {
	items repository.WorkItemRepository
}

func (r workItemResolver) Resolve(ctx context.Context, journableType string, journableID int64) (domain.Journable, error) {
	if journableType != domain.WorkItemType {
		return nil, fmt.Errorf("unknown journable type %s", journableType)
	}
	return r.items.GetByID(ctx, journableID)
}

func main() {
	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	dbConfig, srvConfig, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Run migrations
	if err := db.RunMigrations(dbConfig, srvConfig.MigrationsPath); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Setup database connection
	conn, err := db.NewConnection(ctx, dbConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	// Register journable types
	registry := domain.NewRegistry()
	if err := registry.Register(domain.WorkItemDescriptor()); err != nil {
		log.Fatalf("Failed to register journable types: %v", err)
	}

	// Create repositories
	journalRepo := repository.NewJournalRepository(conn.Pool)
	workItemRepo := repository.NewWorkItemRepository(conn.Pool)

	// Surface classifier misconfiguration at startup, not at write time
	if err := journalRepo.ValidateDescriptors(ctx, registry.Descriptors()); err != nil {
		log.Fatalf("Journable descriptor validation failed: %v", err)
	}

	// Create services
	journalService := journal.NewService(registry, journalRepo)
	exportService := export.NewService(journalService, export.WithExportDirectory(srvConfig.ExportDir))

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   srvConfig.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	resolver := workItemResolver{items: workItemRepo}

	mux := http.NewServeMux()
	mux.Handle("/journals", journal.NewHTTPHandler(journalService, resolver))
	mux.Handle("/journals/", journal.NewHTTPHandler(journalService, resolver))
	mux.Handle("/exports", export.NewHTTPHandler(exportService))

	// Create HTTP server
	server := &http.Server{
		Addr:         srvConfig.Addr,
		Handler:      corsHandler.Handler(middleware.LoggingMiddleware(mux)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting journal server on %s", srvConfig.Addr)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
