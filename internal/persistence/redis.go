package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"papertrade/internal/account"
)

// RedisConfig configures the ephemeral snapshot backend.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Key      string        `mapstructure:"key"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// DefaultRedisConfig returns localhost defaults with a 24h snapshot TTL.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr: "localhost:6379",
		Key:  "papertrade:snapshot",
		TTL:  24 * time.Hour,
	}
}

// RedisStore keeps the latest snapshot under a single key with a TTL. It is
// the fast-restore path; the file store remains the durable one.
type RedisStore struct {
	client      *redis.Client
	key         string
	ttl         time.Duration
	minInterval time.Duration
	lastSave    time.Time
	log         zerolog.Logger
}

func NewRedisStore(cfg RedisConfig, minInterval time.Duration, log zerolog.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewRedisStoreWithClient(client, cfg, minInterval, log), nil
}

// NewRedisStoreWithClient wraps an existing client, used by tests.
func NewRedisStoreWithClient(client *redis.Client, cfg RedisConfig, minInterval time.Duration, log zerolog.Logger) *RedisStore {
	key := cfg.Key
	if key == "" {
		key = "papertrade:snapshot"
	}
	return &RedisStore{
		client:      client,
		key:         key,
		ttl:         cfg.TTL,
		minInterval: minInterval,
		log:         log,
	}
}

func (s *RedisStore) Save(ctx context.Context, snap *account.Snapshot, now time.Time, force bool) error {
	if !force && !s.lastSave.IsZero() && now.Sub(s.lastSave) < s.minInterval {
		return nil
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	s.lastSave = now
	s.log.Debug().Str("key", s.key).Int("bytes", len(data)).Msg("snapshot saved")
	return nil
}

func (s *RedisStore) Load(ctx context.Context) (*account.Snapshot, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var snap account.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

func (s *RedisStore) Close() error { return s.client.Close() }
