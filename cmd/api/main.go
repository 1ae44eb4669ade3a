package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"currency-lens/internal/api"
	"currency-lens/internal/auth"
	"currency-lens/internal/config"
	"currency-lens/internal/service"
	"currency-lens/internal/storage"
	"currency-lens/internal/vision"
	"currency-lens/internal/webhook"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	config.LoadEnvFile()

	if missing := config.CheckRequired(); len(missing) > 0 {
		if isInteractiveTerminal() {
			if !runSetupWizard() {
				os.Exit(1)
			}
		} else {
			// Non-interactive (systemd, k8s, etc.) - fail with clear error
			log.Fatal().Strs("missing", missing).Msg("missing required config")
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("dbPath", cfg.DBPath).Msg("failed to open store")
	}
	defer store.Close()

	ctx := context.Background()
	geminiAnalyzer, err := vision.NewGeminiAnalyzer(ctx, cfg.GeminiAPIKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create gemini analyzer")
	}
	openaiAnalyzer := vision.NewOpenAIAnalyzer(cfg.OpenAIAPIKey)
	orchestrator := vision.NewOrchestrator(openaiAnalyzer, geminiAnalyzer)

	var notifier service.Notifier
	if cfg.WebhookURL != "" {
		notifier = webhook.NewNotifier(cfg.WebhookURL)
		log.Info().Str("url", cfg.WebhookURL).Msg("webhook delivery enabled")
	}

	svc := service.NewAnalysisService(orchestrator, store, notifier)
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	handler := api.NewHandler(svc, store, tokens, notifier)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler.Router(),
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown error")
		}
	}()

	log.Info().Str("port", cfg.Port).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server error")
	}
}
