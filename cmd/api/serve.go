package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"audio-job-service/internal/auth"
	"audio-job-service/internal/config"
	"audio-job-service/internal/logger"
	"audio-job-service/internal/repository/memory"
	"audio-job-service/internal/repository/postgresql"
	"audio-job-service/internal/service"
	"audio-job-service/internal/status"
	"audio-job-service/internal/storage"
	"audio-job-service/internal/telemetry"
	httptransport "audio-job-service/internal/transport/http"
)

type ServeCmd struct {
	Telemetry bool `help:"Export OpenTelemetry metrics over OTLP." env:"TELEMETRY_ENABLED"`
	Migrate   bool `help:"Apply database migrations before serving." env:"POSTGRES_AUTO_MIGRATE"`
}

// clipStore is what the api needs from the job record store.
type clipStore interface {
	service.ClipRepository
	status.ClipFinder
}

func (c *ServeCmd) Run(ctx context.Context, g *Globals) error {
	cfg, err := config.Load(g.EnvFile)
	if err != nil {
		return err
	}
	log := logger.Setup(g.Debug, cfg.LogLevel)
	if err := cfg.ValidateAPI(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if c.Telemetry {
		shutdown, err := telemetry.Init(ctx, "audio-job-api", g.Version)
		if err != nil {
			log.Warn().Err(err).Msg("telemetry init failed, continuing without metrics")
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					log.Error().Err(err).Msg("telemetry shutdown failed")
				}
			}()
		}
	}

	store, closeStore, err := c.openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	low, normal, high := service.Lanes(cfg.Redis.QueueKey, cfg.Redis.ProcessingKey)
	queue := service.NewRedisPriorityQueue(rdb, service.DefaultQueueKeys(cfg.Redis.QueueKey, cfg.Redis.ProcessingKey), low, normal, high)

	objects, err := storage.NewS3Store(ctx, storage.Config{
		Bucket:          cfg.S3.Bucket,
		Region:          cfg.S3.Region,
		Endpoint:        cfg.S3.Endpoint,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
		URLTTL:          cfg.S3.URLTTL,
	})
	if err != nil {
		return err
	}

	// DI
	jobSvc := service.NewJobService(store, queue, objects)
	streamer := httptransport.NewStatusStreamer(
		status.NewPoller(store, objects),
		status.Config{
			PollInterval: cfg.Status.PollInterval,
			Timeout:      cfg.Status.SessionTimeout,
			PollOnOpen:   cfg.Status.PollOnOpen,
		},
		cfg.HTTP.CORSOrigins,
	)
	handler := httptransport.Routes(httptransport.NewHandler(jobSvc, streamer), httptransport.RouterConfig{
		Logger:      log,
		Tokens:      auth.NewTokenService(cfg.JWT.Secret, cfg.JWT.TTL),
		CORSOrigins: cfg.HTTP.CORSOrigins,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
		MaxHeaderBytes:    8 * 1024,
		BaseContext:       func(_ net.Listener) context.Context { return log.WithContext(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", cfg.HTTP.Addr).
			Str("store", cfg.Store.Type).
			Dur("poll_interval", cfg.Status.PollInterval).
			Dur("session_timeout", cfg.Status.SessionTimeout).
			Str("version", g.Version).
			Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownWait)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (c *ServeCmd) openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (clipStore, func(), error) {
	if cfg.Store.Type == "memory" {
		log.Warn().Msg("using in-memory store; clips are lost on restart and invisible to workers")
		return memory.NewJobStore(), func() {}, nil
	}

	// Postgres
	pool, err := postgresql.NewPool(ctx, &postgresql.PoolConfig{
		ConnString: cfg.Store.PostgresDSN,
		MaxConns:   cfg.Store.MaxConns,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("pg: %w", err)
	}
	if c.Migrate {
		if err := postgresql.RunMigrations(ctx, pool, log); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}
	return postgresql.NewJobRepository(pool), pool.Close, nil
}

var _ clipStore = (*memory.JobStore)(nil)
var _ clipStore = (*postgresql.JobRepository)(nil)
