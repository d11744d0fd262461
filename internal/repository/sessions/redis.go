package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mamadbah2/warehouse/internal/domain/models"
)

const defaultKeyPrefix = "warehouse:session:"

// RedisStore shares sessions between server instances.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(ctx context.Context, redisURL string, ttl time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStoreWithClient(client, "", ttl), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

func (s *RedisStore) key(key models.SessionKey) string {
	return s.keyPrefix + key.String()
}

// Load returns the stored session or a fresh one when the key is absent.
func (s *RedisStore) Load(ctx context.Context, key models.SessionKey) (models.ShipmentSession, error) {
	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.ShipmentSession{}, nil
	}
	if err != nil {
		return models.ShipmentSession{}, fmt.Errorf("load session %s: %w", key, err)
	}

	var session models.ShipmentSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return models.ShipmentSession{}, fmt.Errorf("decode session %s: %w", key, err)
	}
	return session, nil
}

// Save stores the session and refreshes its expiry.
func (s *RedisStore) Save(ctx context.Context, key models.SessionKey, session models.ShipmentSession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", key, err)
	}
	if err := s.client.Set(ctx, s.key(key), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key models.SessionKey) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("delete session %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
