// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/fusion/internal/auth"
	"github.com/jason-s-yu/fusion/internal/broadcast"
	"github.com/jason-s-yu/fusion/internal/cache"
	"github.com/jason-s-yu/fusion/internal/config"
	"github.com/jason-s-yu/fusion/internal/database"
	"github.com/jason-s-yu/fusion/internal/game"
	"github.com/jason-s-yu/fusion/internal/handlers"
	"github.com/jason-s-yu/fusion/internal/lobby"
	"github.com/jason-s-yu/fusion/internal/session"
	"github.com/jason-s-yu/fusion/internal/store"
	"github.com/jason-s-yu/fusion/internal/timer"
	"github.com/jason-s-yu/fusion/internal/words"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (default $FUSION_CONFIG)")
	flag.Parse()

	logger := logrus.New()
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("failed to load config")
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.WithError(err).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("server exited")
	}
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	clock := clockwork.NewRealClock()

	// persistence: Postgres when configured, process memory otherwise
	var (
		lobbies  store.Lobbies
		stats    store.UserStats
		wordRepo words.Repository
	)
	if cfg.DatabaseURL != "" {
		pool, err := database.Connect(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			return err
		}
		lobbies = database.NewLobbies(pool)
		stats = database.NewUserStats(pool)
		wordRepo = database.NewWords(pool)
	} else {
		logger.Warn("DATABASE_URL not set, keeping all state in memory")
		lobbies = store.NewMemoryLobbies()
		stats = store.NewMemoryUserStats()
		wordRepo = words.NewMemoryRepository()
	}

	var combinationCache words.Cache
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		combinationCache = cache.NewCombinationCache(rdb, 0)
		logger.WithField("addr", cfg.RedisAddr).Info("combination cache enabled")
	}

	// broadcasts: local WebSocket subscribers, plus NATS when configured
	hub := broadcast.NewHub(logger)
	gateway := broadcast.Multi{hub}
	if cfg.NATSURL != "" {
		nc, err := broadcast.ConnectNATS(cfg.NATSURL, cfg.NATSPrefix, logger)
		if err != nil {
			return err
		}
		defer nc.Close()
		gateway = append(gateway, nc)
	}

	var next words.Generator
	if cfg.Generator.URL != "" {
		next = words.NewHTTPGenerator(cfg.Generator.URL, cfg.Generator.Timeout)
	} else {
		logger.Warn("GENERATOR_URL not set, every combination yields its first word")
	}
	wordSvc := words.NewService(wordRepo, combinationCache, &words.Fallback{
		Next:    next,
		Timeout: cfg.Generator.Timeout,
		Logger:  logger,
	}, logger)
	if err := wordSvc.SeedStartingWords(ctx); err != nil {
		return err
	}
	if cfg.PregenerateWords > 0 {
		if err := wordSvc.MakeCombinations(ctx, cfg.PregenerateWords); err != nil {
			logger.WithError(err).Warn("pregenerating combinations stopped early")
		}
	}

	var issuer *auth.Issuer
	var err error
	if cfg.TokenPrivateKey != "" {
		issuer, err = auth.NewIssuerFromPath(cfg.TokenPrivateKey, cfg.TokenPublicKey, cfg.TokenExpiry, clock)
	} else {
		issuer, err = auth.NewIssuer(cfg.TokenExpiry, clock)
	}
	if err != nil {
		return err
	}

	arena := timer.NewArena(clock, cfg.Timer.InitialDelay, cfg.Timer.Period, logger)
	sessions := session.NewManager(lobbies, stats, arena, gateway, game.Deps{Words: wordSvc, Logger: logger}, clock, logger)
	lobbySvc := lobby.NewService(lobbies, arena, gateway, clock, logger)

	sweeper := lobby.NewSweeper(lobbySvc, cfg.Sweeper.Period, cfg.Sweeper.Threshold)
	go sweeper.Run(ctx)

	api := &handlers.APIServer{
		Lobbies:        lobbySvc,
		Sessions:       sessions,
		Stats:          stats,
		Issuer:         issuer,
		Hub:            hub,
		Logger:         logger,
		OriginPatterns: cfg.AllowedOrigins,
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Running on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http shutdown incomplete")
	}
	if err := arena.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Warn("countdowns did not stop in time")
	}
	return nil
}
