package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ahwlsqja/chainauth/pkg/db"
	"github.com/ahwlsqja/chainauth/pkg/redis"
	"github.com/ethereum/go-ethereum/common"
	"github.com/kelseyhightower/envconfig"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Challenge     ChallengeConfig
	RateLimit     RateLimitConfig
	Auth          AuthConfig
	Chain         ChainConfig
	Worker        WorkerConfig
	Observability ObservabilityConfig
}

type ServerConfig struct {
	Host         string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port         int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout  time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	Environment  string        `envconfig:"ENVIRONMENT" default:"development"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig is only used by the proof archive
type DatabaseConfig struct {
	ArchiveEnabled  bool          `envconfig:"PROOF_ARCHIVE_ENABLED" default:"false"`
	Host            string        `envconfig:"DB_HOST" default:"localhost"`
	Port            int           `envconfig:"DB_PORT" default:"3306"`
	User            string        `envconfig:"DB_USER" default:"app"`
	Password        string        `envconfig:"DB_PASSWORD" default:"apppassword"`
	Name            string        `envconfig:"DB_NAME" default:"chainauth"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
}

func (d DatabaseConfig) DB() db.Config {
	return db.Config{
		Host:            d.Host,
		Port:            d.Port,
		User:            d.User,
		Password:        d.Password,
		Name:            d.Name,
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
	}
}

type RedisConfig struct {
	Host         string        `envconfig:"REDIS_HOST" default:"localhost"`
	Port         int           `envconfig:"REDIS_PORT" default:"6379"`
	Password     string        `envconfig:"REDIS_PASSWORD" default:""`
	DB           int           `envconfig:"REDIS_DB" default:"0"`
	DialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"2s"`
	ReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"1s"`
	WriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"1s"`
	PoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
}

func (r RedisConfig) Redis() redis.Config {
	return redis.Config{
		Host:         r.Host,
		Port:         r.Port,
		Password:     r.Password,
		DB:           r.DB,
		DialTimeout:  r.DialTimeout,
		ReadTimeout:  r.ReadTimeout,
		WriteTimeout: r.WriteTimeout,
		PoolSize:     r.PoolSize,
	}
}

type ChallengeConfig struct {
	Backend        string        `envconfig:"CHALLENGE_BACKEND" default:"memory"`
	TTL            time.Duration `envconfig:"CHALLENGE_TTL" default:"5m"`
	SweepInterval  time.Duration `envconfig:"CHALLENGE_SWEEP_INTERVAL" default:"5m"`
	RedisRetention time.Duration `envconfig:"CHALLENGE_REDIS_RETENTION" default:"1m"`
}

type RateLimitConfig struct {
	Backend     string        `envconfig:"RATE_LIMIT_BACKEND" default:"memory"`
	MaxAttempts int           `envconfig:"RATE_LIMIT_MAX_ATTEMPTS" default:"5"`
	Window      time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"60s"`
}

// AuthConfig enables the primary session guard when Secret is set
type AuthConfig struct {
	JWTSecret string `envconfig:"AUTH_JWT_SECRET" default:""`
	JWTIssuer string `envconfig:"AUTH_JWT_ISSUER" default:""`
}

type ChainConfig struct {
	Enabled          bool          `envconfig:"CHAIN_ENABLED" default:"false"`
	RPCURL           string        `envconfig:"CHAIN_RPC_URL" default:"http://localhost:8545"`
	ChainID          int64         `envconfig:"CHAIN_ID" default:"31337"`
	ContractAddress  string        `envconfig:"PROOF_CONTRACT_ADDRESS" default:""`
	SignerPrivateKey string        `envconfig:"PROOF_SIGNER_PRIVATE_KEY" default:""`
	TxTimeout        time.Duration `envconfig:"CHAIN_TX_TIMEOUT" default:"2m"`
	PollingInterval  time.Duration `envconfig:"CHAIN_POLLING_INTERVAL" default:"1s"`
}

type WorkerConfig struct {
	Count          int           `envconfig:"WORKER_COUNT" default:"2"`
	QueueSize      int           `envconfig:"WORKER_QUEUE_SIZE" default:"256"`
	MaxRetries     int           `envconfig:"WORKER_MAX_RETRIES" default:"5"`
	RetryBaseDelay time.Duration `envconfig:"WORKER_RETRY_BASE_DELAY" default:"1s"`
	AttemptTimeout time.Duration `envconfig:"WORKER_ATTEMPT_TIMEOUT" default:"3m"`
}

type ObservabilityConfig struct {
	SentryDSN     string `envconfig:"SENTRY_DSN" default:""`
	EventsEnabled bool   `envconfig:"PROOF_EVENTS_ENABLED" default:"false"`
	EventsTopic   string `envconfig:"PROOF_EVENTS_TOPIC" default:"chainauth.proof.recorded"`
}

// UsesRedis reports whether any component needs a Redis connection
func (c *Config) UsesRedis() bool {
	return c.Challenge.Backend == BackendRedis ||
		c.RateLimit.Backend == BackendRedis ||
		(c.Chain.Enabled && c.Observability.EventsEnabled)
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if !validBackend(c.Challenge.Backend) {
		errs = append(errs, fmt.Errorf("CHALLENGE_BACKEND must be memory or redis, got %q", c.Challenge.Backend))
	}
	if !validBackend(c.RateLimit.Backend) {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_BACKEND must be memory or redis, got %q", c.RateLimit.Backend))
	}
	if c.Challenge.TTL <= 0 {
		errs = append(errs, errors.New("CHALLENGE_TTL must be positive"))
	}
	if c.Challenge.SweepInterval <= 0 {
		errs = append(errs, errors.New("CHALLENGE_SWEEP_INTERVAL must be positive"))
	}
	if c.RateLimit.MaxAttempts <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_MAX_ATTEMPTS must be positive"))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be positive"))
	}

	if c.Chain.Enabled {
		if !common.IsHexAddress(c.Chain.ContractAddress) {
			errs = append(errs, errors.New("PROOF_CONTRACT_ADDRESS must be a hex address when CHAIN_ENABLED"))
		}
		if c.Chain.SignerPrivateKey == "" {
			errs = append(errs, errors.New("PROOF_SIGNER_PRIVATE_KEY is required when CHAIN_ENABLED"))
		}
		if c.Chain.ChainID <= 0 {
			errs = append(errs, errors.New("CHAIN_ID must be positive"))
		}
		if c.Worker.Count <= 0 || c.Worker.QueueSize <= 0 {
			errs = append(errs, errors.New("WORKER_COUNT and WORKER_QUEUE_SIZE must be positive"))
		}
	}

	return errors.Join(errs...)
}

func validBackend(b string) bool {
	return b == BackendMemory || b == BackendRedis
}
