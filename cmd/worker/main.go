package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/redis/go-redis/v9"

	"audio-job-service/internal/config"
	"audio-job-service/internal/generation"
	"audio-job-service/internal/logger"
	"audio-job-service/internal/repository/postgresql"
	"audio-job-service/internal/service"
	"audio-job-service/internal/telemetry"
	"audio-job-service/internal/worker"
)

var (
	version = "dev"
	cli     struct {
		Debug     bool   `help:"Enable debug logging with console output."`
		EnvFile   string `help:"Load environment variables from this file first." type:"path"`
		Telemetry bool   `help:"Export OpenTelemetry metrics over OTLP." env:"TELEMETRY_ENABLED"`
		Migrate   bool   `help:"Apply database migrations before starting." env:"POSTGRES_AUTO_MIGRATE"`
		Version   kong.VersionFlag
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kctx := kong.Parse(&cli,
		kong.Description("Consumes audio jobs from redis and runs them against the generation backends."),
		kong.Vars{
			"version": version,
		})
	kctx.FatalIfErrorf(run(ctx))
}

func run(ctx context.Context) error {
	cfg, err := config.Load(cli.EnvFile)
	if err != nil {
		return err
	}
	log := logger.Setup(cli.Debug, cfg.LogLevel)
	if err := cfg.ValidateWorker(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	ctx = log.WithContext(ctx)

	if cli.Telemetry {
		shutdown, err := telemetry.Init(ctx, "audio-job-worker", version)
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

	// Postgres
	pool, err := postgresql.NewPool(ctx, &postgresql.PoolConfig{
		ConnString: cfg.Store.PostgresDSN,
		MaxConns:   cfg.Store.MaxConns,
	})
	if err != nil {
		return fmt.Errorf("pg: %w", err)
	}
	defer pool.Close()
	if cli.Migrate {
		if err := postgresql.RunMigrations(ctx, pool, log); err != nil {
			return err
		}
	}

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

	// DI
	repo := postgresql.NewJobRepository(pool)
	low, normal, high := service.Lanes(cfg.Redis.QueueKey, cfg.Redis.ProcessingKey)
	queue := service.NewRedisPriorityQueue(rdb, service.DefaultQueueKeys(cfg.Redis.QueueKey, cfg.Redis.ProcessingKey), low, normal, high)

	gen := generation.NewClient(generation.Config{
		TextToSpeechURL:   cfg.Backends.TextToSpeechURL,
		SpeechToSpeechURL: cfg.Backends.SpeechToSpeechURL,
		SoundEffectURL:    cfg.Backends.SoundEffectURL,
		ModalKey:          cfg.Backends.ModalKey,
		ModalSecret:       cfg.Backends.ModalSecret,
		Timeout:           cfg.Backends.Timeout,
		MaxTries:          cfg.Backends.MaxTries,
	})

	processor := worker.NewProcessor(repo, gen)
	if n := cfg.Worker.UserConcurrency; n > 0 {
		processor.WithUserGate(service.NewRedisUserGate(rdb, cfg.Redis.QueueKey+":user_active:", n, cfg.Worker.StaleAfter))
	}

	// Reaper: возвращает зависшие jobs из processing обратно в очередь
	// (если воркер упал или перезапустился посреди генерации)
	reaper := worker.NewReaper(queue, cfg.Worker.ReapInterval, cfg.Worker.StaleAfter, log)
	go reaper.Run(ctx)

	log.Info().
		Int("workers", cfg.Worker.Workers).
		Int("max_retries", cfg.Worker.MaxRetries).
		Uint("backend_max_tries", cfg.Backends.MaxTries).
		Int("user_concurrency", cfg.Worker.UserConcurrency).
		Str("redis_addr", cfg.Redis.Addr).
		Str("queue_key", cfg.Redis.QueueKey).
		Str("processing_key", cfg.Redis.ProcessingKey).
		Str("postgres_dsn", redactDSN(cfg.Store.PostgresDSN)).
		Str("version", version).
		Msg("worker started")

	worker.NewPool(queue, processor, cfg.Worker.Workers, cfg.Worker.MaxRetries, log).Run(ctx)

	log.Info().Msg("worker stopped")
	return nil
}
