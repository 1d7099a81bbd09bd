package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"schedulink/internal/access"
	"schedulink/internal/apiclient"
	"schedulink/internal/booking"
	"schedulink/internal/bot"
	"schedulink/internal/config"
	"schedulink/internal/database"
	"schedulink/internal/events"
	"schedulink/internal/metrics"
	"schedulink/internal/models"
	"schedulink/internal/reminders"
	"schedulink/internal/session"
)

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("SCHEDULINK_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger = logger.Level(cfg.LogLevel())

	if cfg.Telegram.BotToken == "" || cfg.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		logger.Fatal().Msg("set telegram.bot_token in config")
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	opts := apiclient.Options{
		BaseURL:   cfg.API.BaseURL,
		APIKey:    cfg.API.APIKey,
		UserAgent: "schedulink-bot",
		Timeout:   cfg.APITimeout(),
		Logger:    &logger,
	}
	if cfg.API.RateLimitRPS > 0 {
		opts.Limiter = rate.NewLimiter(rate.Limit(cfg.API.RateLimitRPS), cfg.API.RateLimitBurst)
	}
	client := apiclient.New(opts)

	var rdb *redis.Client
	if cfg.Redis.Address != "" && cfg.API.CacheTTLSeconds > 0 {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		client.UseRedisCache(rdb, cfg.CacheTTL())
	}

	bus := events.NewEventBus()
	var journal booking.Journal
	if cfg.Journal.Enabled {
		journal = db
	}
	controller := booking.NewController(client, booking.Options{Events: bus, Journal: journal, Logger: &logger})
	prefs := session.NewManager(db, &logger)
	remind := reminders.NewService(reminders.Config{
		Enabled:       cfg.Reminders.Enabled,
		LeadTime:      cfg.ReminderLead(),
		CheckInterval: cfg.ReminderInterval(),
		MaxAttempts:   cfg.Reminders.MaxAttempts,
		BatchSize:     cfg.Reminders.BatchSize,
		SendRate:      cfg.Reminders.SendRate,
		Location:      cfg.ReminderLocation(),
	}, db, client, &logger)

	b, err := bot.New(cfg.Telegram.BotToken, bot.Options{
		API:           client,
		Slots:         controller,
		Prefs:         prefs,
		Access:        access.NewService(prefs, cfg.Masters, logger),
		Journal:       db,
		Events:        bus,
		Reminders:     remind,
		DialogTimeout: cfg.DialogTimeout(),
		UpdateTimeout: cfg.Telegram.UpdateTimeout,
		Logger:        &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("create bot error")
	}
	b.Subscribe(bus)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	janitor := database.NewJanitor(db, database.JanitorConfig{
		Enabled:       cfg.Journal.Enabled || cfg.Reminders.Enabled,
		Interval:      cfg.JournalPruneInterval(),
		RetentionDays: cfg.Journal.RetentionDays,
	}, &logger)
	go janitor.Start(ctx)
	go remind.Start(ctx, b)

	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, db, rdb, client, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	if _, err := controller.Refresh(ctx, models.SlotFilter{}); err != nil {
		logger.Warn().Err(err).Str("api", client.BaseURL()).Msg("initial slot load failed")
	}

	logger.Info().Str("api", client.BaseURL()).Msg("bot started")
	b.Start(ctx)
}

func startHealthServer(ctx context.Context, port int, db *database.DB, rdb *redis.Client, api *apiclient.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		if _, err := api.Health(ctxPing); err != nil {
			http.Error(w, "api not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
