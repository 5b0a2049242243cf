// Package config reads the service configuration from the environment, with
// an optional .env file loaded first.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	HTTP     HTTPConfig
	Store    StoreConfig
	Redis    RedisConfig
	JWT      JWTConfig
	S3       S3Config
	Status   StatusConfig
	Worker   WorkerConfig
	Backends BackendConfig

	LogLevel string
}

type HTTPConfig struct {
	Addr         string
	CORSOrigins  []string
	ReadTimeout  time.Duration
	IdleTimeout  time.Duration
	ShutdownWait time.Duration
}

type StoreConfig struct {
	// Type is "postgres" or "memory".
	Type        string
	PostgresDSN string
	MaxConns    int32
}

type RedisConfig struct {
	Addr          string
	Username      string
	Password      string
	QueueKey      string
	ProcessingKey string
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	URLTTL          time.Duration
}

type StatusConfig struct {
	PollInterval   time.Duration
	SessionTimeout time.Duration
	PollOnOpen     bool
}

type WorkerConfig struct {
	Workers         int
	MaxRetries      int
	ReapInterval    time.Duration
	StaleAfter      time.Duration
	// UserConcurrency caps parallel generations per user; 0 disables it.
	UserConcurrency int
}

type BackendConfig struct {
	TextToSpeechURL   string
	SpeechToSpeechURL string
	SoundEffectURL    string
	ModalKey          string
	ModalSecret       string
	Timeout           time.Duration
	// MaxTries is the number of backend calls per job attempt. The worker
	// pool retries on top of it, so the default stays at 1.
	MaxTries          uint
}

// Load reads envFile when it is set (a missing default .env is fine) and then
// the process environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	return &Config{
		HTTP: HTTPConfig{
			Addr:         v.GetString("HTTP_ADDR"),
			CORSOrigins:  splitList(v.GetString("CORS_ORIGINS")),
			ReadTimeout:  v.GetDuration("HTTP_READ_TIMEOUT"),
			IdleTimeout:  v.GetDuration("HTTP_IDLE_TIMEOUT"),
			ShutdownWait: v.GetDuration("HTTP_SHUTDOWN_WAIT"),
		},
		Store: StoreConfig{
			Type:        strings.ToLower(v.GetString("STORE_TYPE")),
			PostgresDSN: v.GetString("POSTGRES_DSN"),
			MaxConns:    v.GetInt32("POSTGRES_MAX_CONNS"),
		},
		Redis: RedisConfig{
			Addr:          v.GetString("REDIS_ADDR"),
			Username:      v.GetString("REDIS_USERNAME"),
			Password:      v.GetString("REDIS_PASSWORD"),
			QueueKey:      v.GetString("REDIS_QUEUE_KEY"),
			ProcessingKey: v.GetString("REDIS_PROCESSING_KEY"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
			TTL:    v.GetDuration("JWT_TTL"),
		},
		S3: S3Config{
			Bucket:          v.GetString("S3_BUCKET"),
			Region:          v.GetString("S3_REGION"),
			Endpoint:        v.GetString("S3_ENDPOINT"),
			AccessKeyID:     v.GetString("S3_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("S3_SECRET_ACCESS_KEY"),
			URLTTL:          v.GetDuration("S3_URL_TTL"),
		},
		Status: StatusConfig{
			PollInterval:   v.GetDuration("STATUS_POLL_INTERVAL"),
			SessionTimeout: v.GetDuration("STATUS_SESSION_TIMEOUT"),
			PollOnOpen:     v.GetBool("STATUS_POLL_ON_OPEN"),
		},
		Worker: WorkerConfig{
			Workers:         v.GetInt("WORKERS"),
			MaxRetries:      v.GetInt("WORKER_MAX_RETRIES"),
			ReapInterval:    v.GetDuration("WORKER_REAP_INTERVAL"),
			StaleAfter:      v.GetDuration("WORKER_STALE_AFTER"),
			UserConcurrency: v.GetInt("WORKER_USER_CONCURRENCY"),
		},
		Backends: BackendConfig{
			TextToSpeechURL:   v.GetString("TEXT_TO_SPEECH_ENDPOINT"),
			SpeechToSpeechURL: v.GetString("SPEECH_TO_SPEECH_ENDPOINT"),
			SoundEffectURL:    v.GetString("SOUND_EFFECT_ENDPOINT"),
			ModalKey:          v.GetString("MODAL_KEY"),
			ModalSecret:       v.GetString("MODAL_SECRET"),
			Timeout:           v.GetDuration("BACKEND_TIMEOUT"),
			MaxTries:          v.GetUint("BACKEND_MAX_TRIES"),
		},
		LogLevel: v.GetString("LOG_LEVEL"),
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("HTTP_READ_TIMEOUT", "15s")
	v.SetDefault("HTTP_IDLE_TIMEOUT", "60s")
	v.SetDefault("HTTP_SHUTDOWN_WAIT", "10s")
	v.SetDefault("STORE_TYPE", "postgres")
	v.SetDefault("POSTGRES_MAX_CONNS", 20)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_QUEUE_KEY", "audio:queue")
	v.SetDefault("REDIS_PROCESSING_KEY", "audio:processing")
	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_URL_TTL", "1h")
	v.SetDefault("STATUS_POLL_INTERVAL", "500ms")
	v.SetDefault("STATUS_SESSION_TIMEOUT", "5m")
	v.SetDefault("STATUS_POLL_ON_OPEN", false)
	v.SetDefault("WORKERS", 4)
	v.SetDefault("WORKER_MAX_RETRIES", 2)
	v.SetDefault("WORKER_REAP_INTERVAL", "30s")
	v.SetDefault("WORKER_STALE_AFTER", "15m")
	v.SetDefault("WORKER_USER_CONCURRENCY", 5)
	v.SetDefault("BACKEND_TIMEOUT", "5m")
	v.SetDefault("BACKEND_MAX_TRIES", 1)
	v.SetDefault("LOG_LEVEL", "info")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ValidateAPI checks what cmd/api needs to start.
func (c *Config) ValidateAPI() error {
	var errs []error
	errs = append(errs, c.validateStore())
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.S3.Bucket == "" {
		errs = append(errs, errors.New("S3_BUCKET is required"))
	}
	if c.Status.PollInterval <= 0 || c.Status.SessionTimeout <= 0 {
		errs = append(errs, errors.New("STATUS_POLL_INTERVAL and STATUS_SESSION_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

// ValidateWorker checks what cmd/worker needs to start. The worker always
// runs against postgres: the memory store is per process.
func (c *Config) ValidateWorker() error {
	var errs []error
	if c.Store.PostgresDSN == "" {
		errs = append(errs, errors.New("POSTGRES_DSN is required"))
	}
	if c.Backends.TextToSpeechURL == "" || c.Backends.SpeechToSpeechURL == "" || c.Backends.SoundEffectURL == "" {
		errs = append(errs, errors.New("all generation endpoints are required"))
	}
	if c.Backends.MaxTries == 0 {
		errs = append(errs, errors.New("BACKEND_MAX_TRIES must be at least 1"))
	}
	if c.Worker.StaleAfter <= c.Backends.Timeout*time.Duration(max(c.Backends.MaxTries, 1)) {
		errs = append(errs, errors.New("WORKER_STALE_AFTER must exceed BACKEND_TIMEOUT times BACKEND_MAX_TRIES"))
	}
	return errors.Join(errs...)
}

func (c *Config) validateStore() error {
	switch c.Store.Type {
	case "memory":
		return nil
	case "postgres":
		if c.Store.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN is required when STORE_TYPE=postgres")
		}
		return nil
	default:
		return fmt.Errorf("unknown STORE_TYPE %q", c.Store.Type)
	}
}
