package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/suar-net/apios/internal/config"
	"github.com/suar-net/apios/internal/database"
	"github.com/suar-net/apios/internal/executor"
	"github.com/suar-net/apios/internal/handler"
	"github.com/suar-net/apios/internal/logger"
	"github.com/suar-net/apios/internal/repository"
	"github.com/suar-net/apios/internal/service"
)

func main() {
	cfg, dotenv, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	l, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create logger")
	}
	log.Logger = l
	if !dotenv {
		l.Info().Msg("no .env file found, using environment variables from OS")
	}

	db, err := database.ConnectDB(cfg.DB)
	if err != nil {
		l.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	l.Info().Msg("successfully connected to database")

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	err = database.Migrate(migrateCtx, db)
	cancelMigrate()
	if err != nil {
		l.Fatal().Err(err).Msg("failed to apply database schema")
	}

	presets, err := config.LoadPresets(cfg.Gateway.PresetsFile)
	if err != nil {
		l.Fatal().Err(err).Msg("failed to load provider presets")
	}
	l.Info().Int("count", len(presets)).Msg("loaded provider presets")

	exec := executor.New(
		executor.WithLogger(l.With().Str("component", "executor").Logger()),
		executor.WithBlockPrivateTargets(!cfg.Gateway.AllowPrivateTargets),
	)
	repo := repository.NewRepository(db)

	authService := service.NewAuthService(repo.User(), cfg.Auth)
	providerService := service.NewProviderService(repo.Provider(), presets, exec, l, cfg.Gateway.AllowPrivateTargets)
	invokeService := service.NewInvokeService(providerService, repo.Call(), l, service.InvokeConfig{
		HistoryLimit: cfg.Gateway.HistoryLimit,
		CacheTTL:     cfg.Gateway.CacheTTL,
		RateLimit:    cfg.Gateway.RateLimit,
		RateBurst:    cfg.Gateway.RateBurst,
	})

	router := handler.SetupRouter(handler.Services{
		Auth:     authService,
		Provider: providerService,
		Invoke:   invokeService,
	}, db, cfg.Server.CORSOrigins, l)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		l.Info().Str("port", cfg.Server.Port).Msg("server starting")
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			l.Fatal().Err(err).Str("port", cfg.Server.Port).Msg("cannot run server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	l.Info().Msg("shutting down the server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		l.Error().Err(err).Msg("server shutdown failed")
		return
	}
	l.Info().Msg("server successfully shut down")
}
