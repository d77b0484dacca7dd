/*
Package main is the entry point for the Mafia game server.

It is responsible for loading configuration, initializing the global logging
system, connecting the persistence backend, starting the game Hub, setting up
the HTTP server, and gracefully handling operating system interrupt signals
(SIGINT, SIGTERM) to ensure a smooth server shutdown.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mafiagame/internal/app/game"
	"mafiagame/internal/app/store"
	"mafiagame/internal/app/store/memory"
	"mafiagame/internal/app/store/postgres"
	"mafiagame/internal/configs"
	"mafiagame/internal/handler"
	"mafiagame/internal/pkg/clockx"
	"mafiagame/internal/pkg/logx"
	"mafiagame/internal/pkg/randx"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.Environment == "development")
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect the persistence backend: PostgreSQL when a DSN is configured,
	// otherwise the in-memory store for local development.
	var st store.Store
	if cfg.DatabaseDSN != "" {
		pgStore, err := postgres.New(cfg.DatabaseDSN)
		if err != nil {
			logx.Fatal(err, "Failed to connect to PostgreSQL")
		}
		st = pgStore
		logx.Info("Connected to PostgreSQL")
	} else {
		st = memory.New()
		logx.Warn("DATABASE_URL not set, using in-memory store. All data is lost on restart.")
	}
	defer st.Close()

	// Start the game hub
	hub := game.NewHub(cfg, st, randx.New(), clockx.New())
	go hub.Run()

	// Setup HTTP server and routes
	router := handler.Router(&handler.AppDeps{
		Hub:    hub,
		Config: cfg,
		Store:  st,
	})

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("Mafia Game Server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Fatal(err, "Server forced to shutdown")
	}

	hub.Shutdown()

	logx.Info("Server gracefully stopped.")
}
