package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"trade-bot-console-go/internal/config"
	"trade-bot-console-go/internal/gateway"
	"trade-bot-console-go/internal/identity"
	"trade-bot-console-go/internal/journal"
	"trade-bot-console-go/internal/logger"
	"trade-bot-console-go/internal/session"
)

func main() {
	configDir := flag.String("config", "./configs", "directory containing config.yml")
	flag.Parse()

	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	actions, err := journal.Open(cfg.Journal.DSN)
	if err != nil {
		log.Fatal("Failed to open session journal", zap.Error(err))
	}
	defer actions.Close()

	restClient := gateway.NewRestClient(&cfg.Remote, log)
	idSession := identity.NewSession(cfg.Auth, log)
	idSession.SetPrompt(func(loginURL string) {
		log.Info("Log in to continue", zap.String("url", loginURL))
	})
	restClient.SetTokenSource(idSession.Token)

	controller := session.NewController(restClient, idSession, actions, session.Options{
		Delimiter:    cfg.Market.Delimiter,
		IdentityWait: cfg.Auth.StartupWait,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := controller.Start(ctx); err != nil {
			log.Warn("Session started with stale views", zap.Error(err))
		}
	}()

	apiHandler := NewAPIHandler(log, controller, actions)
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           apiHandler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info("Shutdown signal received, shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Web server shutdown failed", zap.Error(err))
		}
	}()

	log.Info("Starting web server", zap.String("address", addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("Web server failed", zap.Error(err))
	}
	log.Info("Web server has been shut down.")
}
