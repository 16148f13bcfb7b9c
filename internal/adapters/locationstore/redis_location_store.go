package locationstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"school-transport-service/internal/domain"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "driver:location:"

// RedisLocationStore keeps each driver's latest position as a JSON value
// that expires after TTL, so a driver that goes quiet drops out on its own.
type RedisLocationStore struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisLocationStore(client *redis.Client, ttl time.Duration) *RedisLocationStore {
	return &RedisLocationStore{Client: client, TTL: ttl}
}

// NewRedisLocationStoreFromURL parses a redis:// URL and verifies the
// server is reachable.
func NewRedisLocationStoreFromURL(ctx context.Context, url string, ttl time.Duration) (*RedisLocationStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis location store: parse url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis location store: ping: %w", err)
	}
	return NewRedisLocationStore(client, ttl), nil
}

func key(driverID string) string { return keyPrefix + driverID }

func (s *RedisLocationStore) SetLatest(ctx context.Context, loc domain.LiveLocation) error {
	if s.Client == nil {
		return errors.New("redis location store: client is nil")
	}

	b, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("set latest location driver=%s: marshal: %w", loc.DriverID, err)
	}
	if err := s.Client.Set(ctx, key(loc.DriverID), b, s.TTL).Err(); err != nil {
		return fmt.Errorf("set latest location driver=%s: %w", loc.DriverID, err)
	}
	return nil
}

func (s *RedisLocationStore) Latest(ctx context.Context, driverID string) (*domain.LiveLocation, error) {
	if s.Client == nil {
		return nil, errors.New("redis location store: client is nil")
	}

	b, err := s.Client.Get(ctx, key(driverID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("latest location driver=%s: %w", driverID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("latest location driver=%s: %w", driverID, err)
	}

	var loc domain.LiveLocation
	if err := json.Unmarshal(b, &loc); err != nil {
		return nil, fmt.Errorf("latest location driver=%s: decode: %w", driverID, err)
	}
	return &loc, nil
}

func (s *RedisLocationStore) Close() error {
	if s.Client == nil {
		return nil
	}
	return s.Client.Close()
}
