/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the commission engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Load the commission plan (file or built-in standard)
  3. Initialize SQLite store
  4. Create API handler with engine lifecycles
  5. Start the sweep scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port            HTTP server port (default: 8080)
  -db              SQLite database path (default: commissions.db)
                   Use ":memory:" for in-memory database
  -plan            Path to a commission plan JSON document
                   (default: built-in standard plan)
  -sweep-interval  How often the reconciliation sweep runs (default: 1h)
  -no-sweep        Disable the background sweep scheduler

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Stop the sweep scheduler
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database and the standard plan
  ./server -db="./data/commissions.db"

  # Run with a custom plan document
  ./server -plan="./plans/gold.json"

  # Run without the background sweep
  ./server -no-sweep

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - factory/plan.go: Plan document parsing
  - store/sqlite/sqlite.go: Database implementation
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

	"github.com/ledgerline/commission-engine/api"
	"github.com/ledgerline/commission-engine/engine"
	"github.com/ledgerline/commission-engine/factory"
	"github.com/ledgerline/commission-engine/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "commissions.db", "SQLite database path")
	planPath := flag.String("plan", "", "Commission plan JSON file (default: built-in standard plan)")
	sweepInterval := flag.Duration("sweep-interval", time.Hour, "Reconciliation sweep interval")
	noSweep := flag.Bool("no-sweep", false, "Disable the background sweep scheduler")
	flag.Parse()

	// Load the commission plan
	cfg := engine.DefaultConfig()
	if *planPath != "" {
		data, err := os.ReadFile(*planPath)
		if err != nil {
			log.Fatalf("Failed to read plan file: %v", err)
		}
		cfg, err = factory.NewPlanFactory().ParsePlan(string(data))
		if err != nil {
			log.Fatalf("Invalid plan document: %v", err)
		}
		log.Printf("Loaded commission plan from %s", *planPath)
	}

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Initialize handler and router
	handler := api.NewHandler(store, cfg)
	router := api.NewRouter(handler)

	// Background sweep scheduler
	scheduler := api.NewSweepScheduler(store, handler)
	scheduler.CheckInterval = *sweepInterval
	scheduler.Enabled = !*noSweep
	scheduler.Start()
	defer scheduler.Stop()

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
		log.Printf("Server starting on http://localhost:%d", *port)
		log.Printf("API available at http://localhost:%d/api", *port)
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
