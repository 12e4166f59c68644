package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"LeadDesk/internal/api"
	"LeadDesk/internal/config"
	"LeadDesk/internal/db"
	"LeadDesk/internal/logging"
	"LeadDesk/internal/service"
	"LeadDesk/internal/session"
	"LeadDesk/internal/supabase"
	"LeadDesk/internal/telegram_api"
)

const shutdownTimeout = 15 * time.Second

func main() {
	bootLog := logrus.StandardLogger()
	if err := godotenv.Load(); err != nil {
		bootLog.Warn("no .env file loaded, relying on the process environment")
	}

	cfg, err := config.LoadConfig(bootLog)
	if err != nil {
		bootLog.WithError(err).Fatal("load configuration")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("open record store")
	}
	defer closeStore()

	var notifier service.Notifier
	if cfg.TelegramToken != "" && cfg.AdminChatID != 0 {
		bot, errBot := telegram_api.NewBotClient(cfg.TelegramToken, cfg.AdminChatID, cfg.IsDev(), log)
		if errBot != nil {
			log.WithError(errBot).Warn("telegram notifier unavailable, continuing without it")
		} else {
			notifier = bot
		}
	}

	svc := service.New(service.Options{
		Store:    store,
		Notifier: notifier,
		Logger:   log,
		Programs: cfg.Programs,
		Timeout:  cfg.StoreTimeout,
	})

	router := api.NewRouter(api.Dependencies{
		Service:            svc,
		Verifier:           session.NewManager(cfg.SupabaseJWTSecret),
		Logger:             log,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Port).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			log.WithError(err).Error("http server stopped")
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	log.Info("server stopped")
}

// openStore builds the record store selected by STORE_DRIVER. The returned
// func releases its resources.
func openStore(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (db.Store, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverSupabase:
		client, err := supabase.New(supabase.Config{
			URL:     cfg.SupabaseURL,
			APIKey:  cfg.SupabaseServiceKey,
			Timeout: cfg.StoreTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		log.Info("using supabase record store")
		return supabase.NewStore(client, log), func() {}, nil
	default:
		conn, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		closeConn := func() {
			if err := conn.Close(); err != nil {
				log.WithError(err).Warn("close database")
			}
		}
		if cfg.AutoMigrate {
			if err := db.Migrate(ctx, conn, log); err != nil {
				closeConn()
				return nil, nil, err
			}
		}
		log.WithFields(logrus.Fields{"db_host": cfg.DBHost, "db_name": cfg.DBName}).Info("using postgres record store")
		return db.NewPostgresStore(conn, log), closeConn, nil
	}
}

