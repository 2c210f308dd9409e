package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/danielhkuo/council/cliparse"
	"github.com/danielhkuo/council/db"
	"github.com/danielhkuo/council/engine"
	"github.com/danielhkuo/council/middleware"
	"github.com/danielhkuo/council/router"
	"github.com/danielhkuo/council/transport"
)

func main() {
	var err error

	// .env is optional; the real environment wins
	if err := cliparse.LoadDotEnv(); err != nil {
		slog.Error("Error loading .env", "error", err)
		os.Exit(1)
	}

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Open the state store
	store, err := db.Open(ctx, cfg.DatabaseType, cfg.DatabaseURL, cfg.Settings)
	if err != nil {
		slog.Error("database open failed", "type", cfg.DatabaseType, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("State store ready", "type", cfg.DatabaseType)

	// Wire the engine to the WebSocket hub
	hub := transport.NewHub(logger.With("component", "transport"))
	eng, err := engine.New(ctx, engine.Dependencies{
		Store:       store,
		Broadcaster: hub,
		AdminName:   cfg.AdminName,
		Logger:      logger.With("component", "engine"),
	})
	if err != nil {
		slog.Error("engine setup failed", "error", err)
		os.Exit(1)
	}

	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		eng.Run(ctx)
	}()

	// Create router
	mux := router.NewRouter(eng, hub, eng, cfg)

	// Create server
	server := http.Server{
		Handler:           middleware.CORS(mux, cfg.AllowedOrigins),
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		// Wait for Ctrl-C signal
		<-ctrlc
		hub.Close()
		server.Close()
	}()

	// Start server
	slog.Info("Listening", "port", cfg.Port)
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed", "error", err)
	}

	cancel()
	<-engineDone
}
