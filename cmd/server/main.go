package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bettycrystal/betty-backend/internal/api/coingecko"
	"github.com/bettycrystal/betty-backend/internal/api/openai"
	"github.com/bettycrystal/betty-backend/internal/api/yahoo"
	"github.com/bettycrystal/betty-backend/internal/betty"
	"github.com/bettycrystal/betty-backend/internal/config"
	"github.com/bettycrystal/betty-backend/internal/market"
	"github.com/bettycrystal/betty-backend/internal/notify"
	"github.com/bettycrystal/betty-backend/internal/server"
	"github.com/bettycrystal/betty-backend/internal/storage/badgerstore"
	"github.com/bettycrystal/betty-backend/internal/storage/postgres"
	"github.com/bettycrystal/betty-backend/models"
)

// predictionStore is what main needs from either storage backend
type predictionStore interface {
	models.PredictionStore
	Close() error
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	store, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("Failed to open store")
	}
	defer store.Close()

	requestTimeout := time.Duration(cfg.RequestTimeout) * time.Second
	cache := market.NewCache(
		market.NewFetcher(
			coingecko.NewClient(coingecko.ClientOptions{
				RequestTimeout: requestTimeout,
				RequestsPerSec: cfg.RequestsPerSec,
			}),
			yahoo.NewClient(yahoo.ClientOptions{
				RequestTimeout: requestTimeout,
				RequestsPerSec: cfg.RequestsPerSec,
			}),
		),
		market.CacheOptions{TTL: time.Duration(cfg.CacheTTLMinutes) * time.Minute},
	)

	generator := betty.NewGenerator(cache, openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel), store)
	evaluator := betty.NewEvaluator(cache, store)
	aggregator := betty.NewAggregator(store)

	notifier, err := notify.NewTelegram(cfg.TelegramBotToken, cfg.TelegramChatID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Telegram notifier")
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.EvaluateCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := evaluator.EvaluatePending(ctx); err != nil {
			log.Error().Err(err).Msg("Scheduled evaluation failed")
		}
	}); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.EvaluateCron).Msg("Invalid evaluation schedule")
	}
	if _, err := scheduler.AddFunc(cfg.GenerateCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		week := models.WeekStart(time.Now())
		preds, err := generator.Generate(ctx, week)
		if err != nil {
			log.Error().Err(err).Msg("Scheduled generation failed")
			return
		}
		if err := notifier.AnnouncePicks(models.WeekKey(week), preds); err != nil {
			log.Error().Err(err).Msg("Telegram announcement failed")
		}
	}); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.GenerateCron).Msg("Invalid generation schedule")
	}
	scheduler.Start()
	defer scheduler.Stop()

	srv := server.New(server.Options{
		Addr:       cfg.HTTPAddr,
		Cache:      cache,
		Generator:  generator,
		Evaluator:  evaluator,
		Aggregator: aggregator,
		Store:      store,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatal().Err(err).Msg("HTTP server failed")
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}

func openStore(cfg *config.Config) (predictionStore, error) {
	switch cfg.DBDriver {
	case "postgres":
		return postgres.New(postgres.ConnectionParams{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			DBName:   cfg.DBName,
			SSLMode:  cfg.DBSSLMode,
		})
	default:
		return badgerstore.Open(cfg.DBPath)
	}
}
