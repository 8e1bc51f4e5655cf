/*
main.go - Application entry point

PURPOSE:

	Initializes and starts the Obra cost and settlement engine server.
	Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
 1. Load .env (if present) and parse command-line flags
 2. Initialize SQLite store
 3. Wire the settlement orchestrator and optional Kafka publisher
 4. Configure HTTP router and start the overdue monitor
 5. Start server with graceful shutdown

COMMAND-LINE FLAGS:

	-port     HTTP server port (default: 8080)
	-db       SQLite database path (default: obra.db)
	          Use ":memory:" for in-memory database
	-brokers  Comma-separated Kafka brokers; empty disables publishing
	-sweep    Overdue monitor interval (default: 1h)

GRACEFUL SHUTDOWN:

	On SIGINT/SIGTERM:
	1. Stop accepting new connections
	2. Wait for active requests to complete (30s timeout)
	3. Stop the overdue monitor, close publisher and database
	4. Exit

EXAMPLES:

	# Run with file database
	./server -db="./data/obra.db"

	# Run with Kafka publishing
	./server -brokers="localhost:9092"

ENVIRONMENT:

	PORT, DB_PATH and KAFKA_BROKERS override flag defaults, loaded via
	.env when present.

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
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
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/edifica/obra-engine/api"
	"github.com/edifica/obra-engine/events"
	"github.com/edifica/obra-engine/events/kafka"
	"github.com/edifica/obra-engine/settlement"
	"github.com/edifica/obra-engine/store/sqlite"
)

func main() {
	// .env is optional; flags fall back to its values.
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DB_PATH", "obra.db"), "SQLite database path")
	brokers := flag.String("brokers", envStr("KAFKA_BROKERS", ""), "Comma-separated Kafka brokers")
	sweep := flag.Duration("sweep", time.Hour, "Overdue monitor interval")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Event publisher: Kafka when brokers are configured, no-op otherwise
	var publisher events.Publisher = events.Noop{}
	if *brokers != "" {
		kp := kafka.NewPublisher(strings.Split(*brokers, ","))
		defer kp.Close()
		publisher = kp
		log.Printf("Publishing settlement events to %s", *brokers)
	}

	// Initialize handler
	orch := settlement.NewOrchestrator(store, publisher)
	metrics := api.NewMetrics()
	handler := api.NewHandler(store, orch, metrics)

	// Overdue monitor keeps the prometheus gauges fresh
	monitor := api.NewOverdueMonitor(store, metrics)
	monitor.CheckInterval = *sweep
	monitor.Start()
	defer monitor.Stop()

	// Create router
	router := api.NewRouter(handler)

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

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
