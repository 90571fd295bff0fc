package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
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
	"trade-bot-console-go/internal/render"
	"trade-bot-console-go/internal/session"
)

func main() {
	configDir := flag.String("config", "./configs", "directory containing config.yml")
	flag.Parse()

	// A missing .env is fine; the environment is used as is.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		fmt.Fprintf(os.Stderr, "could not load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	actions, err := journal.Open(cfg.Journal.DSN)
	if err != nil {
		log.Fatal("Failed to open session journal", zap.Error(err))
	}
	defer actions.Close()

	restClient := gateway.NewRestClient(&cfg.Remote, log)
	idSession := identity.NewSession(cfg.Auth, log)
	idSession.SetPrompt(func(loginURL string) {
		fmt.Printf("Open this URL in a browser to log in:\n  %s\n", loginURL)
	})
	restClient.SetTokenSource(idSession.Token)

	controller := session.NewController(restClient, idSession, actions, session.Options{
		Delimiter:    cfg.Market.Delimiter,
		IdentityWait: cfg.Auth.StartupWait,
	}, log)

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, shutting down...")
		cancel()
		os.Stdin.Close()
	}()

	// The prompt is usable while the session loads.
	go func() {
		if err := controller.Start(ctx); err != nil {
			log.Warn("Session started with stale views", zap.Error(err))
		}
	}()

	console := &Console{
		controller: controller,
		journal:    actions,
		renderer:   render.NewRenderer(os.Stdout, time.Local),
		out:        os.Stdout,
	}
	console.Help()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		if quit := console.Execute(ctx, scanner.Text()); quit {
			break
		}
	}

	log.Info("Console has been shut down.")
}
