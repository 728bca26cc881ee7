package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/crossdev/syncmesh/internal/api"
	"github.com/crossdev/syncmesh/internal/capability"
	"github.com/crossdev/syncmesh/internal/engine"
	"github.com/crossdev/syncmesh/internal/identity"
	"github.com/crossdev/syncmesh/internal/ratelimit"
	"github.com/crossdev/syncmesh/internal/scheduler"
	"github.com/crossdev/syncmesh/internal/transport"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	log.Println("Starting syncmesh daemon...")

	stateDir := envString("SYNCMESH_STATE_DIR", "./state")
	ident, err := identity.NewFileStore(stateDir)
	if err != nil {
		log.Fatalf("Failed to open identity store: %v", err)
	}
	log.Println("✓ Identity store ready")

	// Transport: loopback simulation paced per device
	tr := transport.NewRateLimited(transport.NewLoopback(), 5, 10)

	eng := engine.New(engine.Config{
		Provider:  capability.NewHost(),
		Identity:  ident,
		Transport: tr,
		Scheduler: scheduler.Config{
			TickInterval:      envDuration("SYNCMESH_TICK_INTERVAL", scheduler.DefaultTickInterval),
			SweepInterval:     envDuration("SYNCMESH_SWEEP_INTERVAL", scheduler.DefaultSweepInterval),
			DiscoveryInterval: envDuration("SYNCMESH_DISCOVERY_INTERVAL", scheduler.DefaultDiscoveryInterval),
			SessionExpiry:     envDuration("SYNCMESH_SESSION_EXPIRY", scheduler.DefaultSessionExpiry),
			TransferTimeout:   envDuration("SYNCMESH_TRANSFER_TIMEOUT", scheduler.DefaultTransferTimeout),
			BatchSize:         envInt("SYNCMESH_BATCH_SIZE", scheduler.DefaultBatchSize),
		},
	})

	local, err := eng.Start()
	if err != nil {
		log.Fatalf("Failed to start sync engine: %v", err)
	}
	defer eng.Destroy()
	log.Printf("✓ Sync engine started (local device %s, %s/%s)", local.ID, local.Type, local.Platform)

	// Initial discovery pass
	discCtx, discCancel := context.WithTimeout(context.Background(), 10*time.Second)
	devices := eng.Discover(discCtx)
	discCancel()
	log.Printf("✓ Discovery complete (%d devices known)", len(devices))

	// Event feed
	eventServer := api.NewEventServer(eng.Events())
	go eventServer.Run()
	log.Println("✓ Event feed initialized")

	// Rate limiter, per-user budget tunable via environment
	perHour := envInt("SYNCMESH_RATE_LIMIT", 100)
	rateLimiter := ratelimit.NewLimiter(perHour, envInt("SYNCMESH_RATE_BURST", 10))
	log.Printf("✓ Rate limiter initialized (%d req/hour per user)", perHour)

	// Setup HTTP handlers
	handler := api.NewHandler(eng)
	contextHandler := api.NewContextHandler(eng)
	router := handler.SetupRoutes(contextHandler, eventServer, rateLimiter)
	log.Println("✓ HTTP routes configured")

	addr := envString("SYNCMESH_ADDR", ":8080")
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		log.Printf("🚀 Server starting on http://localhost%s", addr)
		log.Printf("📍 API endpoints available at http://localhost%s/v1", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("✅ Daemon stopped cleanly")
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		log.Printf("Invalid %s=%q, using default %d", key, value, fallback)
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Invalid %s=%q, using default %s", key, value, fallback)
	}
	return fallback
}
