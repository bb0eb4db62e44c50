package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/homehub/cast-server-go/internal/audio"
	"github.com/homehub/cast-server-go/internal/audit"
	"github.com/homehub/cast-server-go/internal/channel"
	"github.com/homehub/cast-server-go/internal/config"
	"github.com/homehub/cast-server-go/internal/database"
	"github.com/homehub/cast-server-go/internal/discovery"
	"github.com/homehub/cast-server-go/internal/ice"
	"github.com/homehub/cast-server-go/internal/jobs"
	"github.com/homehub/cast-server-go/internal/redis"
	"github.com/homehub/cast-server-go/internal/repository"
	"github.com/homehub/cast-server-go/internal/server"
	"github.com/homehub/cast-server-go/internal/service"
	"github.com/homehub/cast-server-go/internal/sse"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("server exited with error")
		stop()
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	iceConfig, err := ice.Build(ice.Options{
		STUNURLs:       cfg.STUNURLs,
		TURNURLs:       cfg.TURNURLs,
		TURNUsername:   cfg.TURNUsername,
		TURNCredential: cfg.TURNCredential,
	})
	if err != nil {
		return fmt.Errorf("ice config: %w", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		pingCtx, cancel := context.WithTimeout(ctx, config.DBPingTimeout)
		redisClient, err = redis.NewClient(pingCtx, cfg.RedisURL)
		cancel()
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisClient.Close()
		log.Info().Msg("redis connected")
	}

	var recorder *audit.Recorder
	if cfg.DatabaseURL != "" {
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer db.Close()

		pingCtx, cancel := context.WithTimeout(ctx, config.DBPingTimeout)
		err = db.Ping(pingCtx)
		if err == nil {
			err = db.EnsureSchema(pingCtx)
		}
		cancel()
		if err != nil {
			return fmt.Errorf("prepare database: %w", err)
		}
		log.Info().Msg("database connected")

		recorder = audit.NewRecorder(repository.NewPairingEventRepository(db.DB))
	}

	broker := sse.NewBroker(redisClient)
	defer broker.Close()

	sessionService := service.NewSessionService(
		repository.NewMemorySessionRepository(nil),
		broker,
		recorder,
		cfg.SessionTTL(),
		nil,
	)

	var pairLimiter service.Limiter = service.NewMemoryRateLimiter(nil)
	if redisClient != nil {
		pairLimiter = service.NewRateLimiter(redisClient.Client, pairLimiter)
	}

	relay := audio.NewRelay(cfg.AudioMaxDuration())
	channelHandler := channel.NewHandler(sessionService, relay, channel.Options{
		ReadLimit:  cfg.ChannelReadLimitBytes,
		SendBuffer: cfg.ChannelSendBuffer,
		WriteWait:  config.ChannelWriteWait,
		PongWait:   config.ChannelPongWait,
		PingPeriod: config.ChannelPingPeriod,
	})

	var pruner jobs.HistoryPruner
	if recorder.Enabled() {
		pruner = recorder
	}
	cleanupJob := jobs.NewCleanupJob(sessionService, pruner, cfg.HistoryRetention(), cfg.ReaperInterval())
	cleanupJob.Start()
	defer cleanupJob.Stop()

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: server.NewRouter(server.Deps{
			Version:        cfg.ServiceVersion,
			SessionService: sessionService,
			Relay:          relay,
			Broker:         broker,
			Recorder:       recorder,
			Channel:        channelHandler,
			ICE:            iceConfig,
			PairLimiter:    pairLimiter,
			PairLimit:      cfg.PairRateLimitPerMin,
		}),
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	if cfg.DiscoveryEnabled {
		advertiser := discovery.NewAdvertiser(discovery.Service{
			Instance: cfg.DiscoveryInstance,
			Type:     cfg.DiscoveryService,
			Domain:   cfg.DiscoveryDomain,
		})
		err := advertiser.Start(cfg.Port, map[string]string{
			"version": cfg.ServiceVersion,
			"api":     "/v1/cast",
			"ws":      "/v1/cast/ws",
		})
		if err != nil {
			log.Warn().Err(err).Msg("discovery advertiser unavailable, continuing without it")
		} else {
			defer advertiser.Stop()
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
		defer cancel()

		// SSE streams and upgraded channels are not drained by Shutdown.
		broker.Close()
		channelHandler.Shutdown()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
