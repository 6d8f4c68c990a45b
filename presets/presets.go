// Package presets wires the full seatlock stack from a small configuration
// surface, for callers that do not need to assemble the pieces themselves.
package presets

import (
	"os"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	seatlock "github.com/openvenue/seatlock"
	"github.com/openvenue/seatlock/compensator"
	"github.com/openvenue/seatlock/lease"
	"github.com/openvenue/seatlock/notify"
	"github.com/openvenue/seatlock/version"
)

// RedisOptions configures the connection to the lease store.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// PostgresOptions configures the connection to the version store.
type PostgresOptions struct {
	DSN string
}

// Config is the configuration surface consumed by the core.
type Config struct {
	Redis     RedisOptions
	Postgres  PostgresOptions
	Namespace string
	// LeaseTTL is the selection-phase lease duration.
	LeaseTTL time.Duration
	// ScanBatchSize bounds the compensator's scan pages.
	ScanBatchSize int64
	// DeleteRatePerSecond caps compensator deletion throughput.
	DeleteRatePerSecond int
	// SweepInterval is the pause between compensator passes.
	SweepInterval time.Duration
}

// ConfigFromEnv reads the SEATLOCK_* environment variables, falling back to
// defaults for anything unset.
func ConfigFromEnv() Config {
	return Config{
		Redis: RedisOptions{
			Addr:     envString("SEATLOCK_REDIS_ADDR", "localhost:6379"),
			Password: envString("SEATLOCK_REDIS_PASSWORD", ""),
			DB:       envInt("SEATLOCK_REDIS_DB", 0),
		},
		Postgres: PostgresOptions{
			DSN: envString("SEATLOCK_POSTGRES_DSN", ""),
		},
		Namespace:           envString("SEATLOCK_NAMESPACE", lease.DefaultNamespace),
		LeaseTTL:            envDuration("SEATLOCK_LEASE_TTL", seatlock.DefaultTTL),
		ScanBatchSize:       int64(envInt("SEATLOCK_SCAN_BATCH", compensator.DefaultBatchSize)),
		DeleteRatePerSecond: envInt("SEATLOCK_DELETE_RATE", compensator.DefaultRatePerSecond),
		SweepInterval:       envDuration("SEATLOCK_SWEEP_INTERVAL", compensator.DefaultInterval),
	}
}

// NewRedisPostgres builds a Manager backed by Postgres versions and Redis
// leases, plus the compensator for the same namespace. Release events travel
// over Redis pub/sub so waiters on other nodes wake up too.
func NewRedisPostgres(cfg Config) (*seatlock.Manager, *compensator.Compensator, error) {
	db, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{})
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	versions, err := version.NewGormStore(db)
	if err != nil {
		return nil, nil, err
	}

	keys := lease.Keys{Namespace: cfg.Namespace}
	store := lease.NewRedis(client, lease.WithKeys(keys))
	bus := notify.NewRedisBus(notify.RedisBusOptions{Client: client})

	m := seatlock.New(versions, store,
		seatlock.WithTTL(cfg.LeaseTTL),
		seatlock.WithBus(bus),
	)
	comp := compensator.New(client, keys,
		compensator.WithBatchSize(cfg.ScanBatchSize),
		compensator.WithRate(cfg.DeleteRatePerSecond),
		compensator.WithInterval(cfg.SweepInterval),
	)
	return m, comp, nil
}

// NewInMemoryStandalone builds a Manager that runs entirely in-memory with
// no external dependencies. Useful for local development and tests.
func NewInMemoryStandalone(opts ...seatlock.Option) *seatlock.Manager {
	base := []seatlock.Option{seatlock.WithBus(notify.NewInMemoryBus())}
	return seatlock.New(version.NewInMemory(), lease.NewInMemory(), append(base, opts...)...)
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
