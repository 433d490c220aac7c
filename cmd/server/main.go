/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the CoverClarity server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and required environment
  2. Initialize SQLite store
  3. Initialize blob storage (disk or s3)
  4. Create the session provider, submission workflow, and handler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port     HTTP server port (default: 8080)
  -db       SQLite database path (default: coverclarity.db)
            Use ":memory:" for an in-memory database
  -storage  Directory for the disk storage backend
            (default: ./data/documents)
  -dev      Mount the demo scenario routes (wipes data on load)

ENVIRONMENT:
  COVER_PUBLIC_URL and COVER_JWT_SECRET are required; see config.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coverclarity/coverage-engine/api"
	"github.com/coverclarity/coverage-engine/config"
	"github.com/coverclarity/coverage-engine/recommend"
	"github.com/coverclarity/coverage-engine/session"
	"github.com/coverclarity/coverage-engine/storage"
	"github.com/coverclarity/coverage-engine/store/sqlite"
	"github.com/coverclarity/coverage-engine/submission"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "coverclarity.db", "SQLite database path")
	storageDir := flag.String("storage", "./data/documents", "Document storage directory (disk backend)")
	dev := flag.Bool("dev", false, "Mount demo scenario routes (wipes data on load)")
	flag.Parse()

	env := config.MustLoad()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Initialize blob storage
	blobs, filesDir, err := newBlobStore(env, *storageDir)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	// Services
	sessions := session.NewProvider(store, env.JWTSecret)
	defer sessions.Close()

	if env.AdminEmail != "" && env.AdminPass != "" {
		if err := sessions.SeedAdmin(context.Background(), env.AdminEmail, env.AdminPass); err != nil {
			log.Printf("Warning: Failed to seed admin account: %v", err)
		}
	}

	workflow := submission.New(blobs, store)
	recs := recommend.NewService(store.Recommendations())

	handler := api.NewHandler(sessions, store, workflow, recs, env.JWTSecret)

	// Renewal sweep: flags policies expiring within the dashboard window
	sweeper := api.NewRenewalSweeper(store, recs)
	sweeper.Start()
	defer sweeper.Stop()

	var demoScenarios *api.Scenarios
	if *dev {
		demoScenarios = &api.Scenarios{Store: store, Sessions: sessions, Recs: recs}
		log.Println("Demo scenario routes enabled (dev mode)")
	}

	// Create router
	router := api.NewRouter(handler, api.RouterConfig{
		Secret:      env.JWTSecret,
		Sessions:    sessions,
		CORSOrigins: env.CORSOrigins,
		FilesDir:    filesDir,
		Scenarios:   demoScenarios,
	})

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on http://localhost:%d", *port)
		log.Printf("📊 API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// newBlobStore selects the storage backend. The returned dir is non-empty
// only for the disk backend, which the router serves at /files/.
func newBlobStore(env config.Env, storageDir string) (storage.BlobStore, string, error) {
	switch env.StorageBackend {
	case "s3":
		s3store, err := storage.NewS3Store(context.Background(), env.S3Bucket, env.S3Region, env.S3Endpoint)
		if err != nil {
			return nil, "", err
		}
		return s3store, "", nil
	default:
		disk, err := storage.NewDiskStore(storageDir, env.PublicURL)
		if err != nil {
			return nil, "", err
		}
		return disk, disk.Dir(), nil
	}
}
