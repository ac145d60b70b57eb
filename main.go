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

	"github.com/xiaot623/gogo/livecoach/internal/adapter/llm"
	"github.com/xiaot623/gogo/livecoach/internal/auth"
	"github.com/xiaot623/gogo/livecoach/internal/coach"
	"github.com/xiaot623/gogo/livecoach/internal/config"
	"github.com/xiaot623/gogo/livecoach/internal/hub"
	"github.com/xiaot623/gogo/livecoach/internal/policy"
	"github.com/xiaot623/gogo/livecoach/internal/repository"
	"github.com/xiaot623/gogo/livecoach/internal/service"
	"github.com/xiaot623/gogo/livecoach/internal/telemetry"
	httpserver "github.com/xiaot623/gogo/livecoach/internal/transport/http"
	"github.com/xiaot623/gogo/livecoach/internal/transport/rpc"
)

func main() {
	// Load configuration
	cfg := config.Load()
	config.SetupLogging(cfg.LogLevel)

	log.Printf("Starting livecoach...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("RPC Port: %d", cfg.RPCPort)
	log.Printf("Database: %s", cfg.DatabaseURL)
	log.Printf("Inference URL: %s", cfg.OpenAIBaseURL)

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("FATAL: failed to initialize store: %v", err)
	}
	defer db.Close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Metrics
	metrics, err := telemetry.NewMetrics(ctx, cfg.Telemetry())
	if err != nil {
		log.Fatalf("FATAL: failed to initialize metrics: %v", err)
	}
	metrics.SetGlobal()
	if metrics.Exporting {
		log.Printf("Exporting metrics to %s", cfg.OTLPEndpoint)
	}

	// Initialize inference backend
	backend := llm.NewBackend(cfg.LLM())

	// Initialize policy engine
	policyEngine, err := policy.LoadEngine(ctx, cfg.PolicyFile)
	if err != nil {
		log.Fatalf("FATAL: failed to initialize policy engine: %v", err)
	}

	// Live event hub
	hb := hub.NewHub()
	go hb.Run(ctx)

	// Initialize service
	svc := service.New(db, backend, service.Options{
		Coach:      cfg.Coach(),
		Policy:     policyEngine,
		Publishers: func(userID string) coach.Publisher { return hb.Publisher(userID) },
	})

	if _, err := svc.RecoverOrphanedSessions(ctx); err != nil {
		log.Printf("WARN: failed to recover orphaned sessions: %v", err)
	}

	// Identity
	var provider auth.Provider
	if cfg.StaticUserID != "" {
		static := auth.NewStatic(cfg.StaticUserID)
		changes, unsubscribe := static.Subscribe()
		defer unsubscribe()
		go svc.FollowIdentity(ctx, changes)
		provider = static
		log.Printf("Using static identity: %s", cfg.StaticUserID)
	} else {
		provider = auth.NewHeaderProvider(cfg.APIKey)
	}

	// HTTP server
	httpServer := httpserver.NewServer(svc, hb, provider, cfg.WS())
	httpServer.Logger.SetLevel(cfg.LogLevel.Echo())

	// RPC server
	rpcServer, err := rpc.NewServer(svc)
	if err != nil {
		log.Fatalf("FATAL: failed to initialize RPC server: %v", err)
	}

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := httpServer.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("FATAL: failed to start HTTP server: %v", err)
		}
	}()

	go func() {
		addr := fmt.Sprintf(":%d", cfg.RPCPort)
		if err := rpcServer.Start(addr); err != nil {
			log.Fatalf("FATAL: failed to start RPC server: %v", err)
		}
	}()

	log.Printf("HTTP API started on port %d", cfg.HTTPPort)
	log.Printf("RPC API started on port %d", cfg.RPCPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down livecoach...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("WARN: failed to shutdown HTTP server gracefully: %v", err)
	}
	if err := rpcServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("WARN: failed to shutdown RPC server gracefully: %v", err)
	}
	if err := svc.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: failed to flush live sessions: %v", err)
	}
	if err := metrics.Shutdown(shutdownCtx); err != nil {
		log.Printf("WARN: failed to flush metrics: %v", err)
	}
	stop()

	log.Println("Livecoach stopped")
}
