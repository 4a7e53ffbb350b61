package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"diagram_engine/internal/assembler"
	"diagram_engine/internal/region"
)

// Key prefixes, one namespace per store
const (
	assemblyPrefix = "assembly:"
	regionPrefix   = "region:"
	documentPrefix = "document:"
)

// RedisStorage owns the shared client the Redis-backed stores run on
type RedisStorage struct {
	client *redis.Client
}

// Connect parses a redis:// URL and checks the connection
func Connect(ctx context.Context, redisURL string) (*RedisStorage, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis URL is required")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return NewRedisStorage(ctx, redis.NewClient(opts))
}

// NewRedisStorage wraps an existing client after a ping
func NewRedisStorage(ctx context.Context, client *redis.Client) (*RedisStorage, error) {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisStorage{client: client}, nil
}

func (r *RedisStorage) Assemblies(ttl time.Duration) *RedisAssemblyStore {
	return &RedisAssemblyStore{client: r.client, ttl: ttl}
}

func (r *RedisStorage) Regions(ttl time.Duration) *RedisRegionStore {
	return &RedisRegionStore{client: r.client, ttl: ttl}
}

func (r *RedisStorage) Documents(ttl time.Duration) *RedisDocumentStore {
	return &RedisDocumentStore{client: r.client, ttl: ttl}
}

// Close closes the Redis connection
func (r *RedisStorage) Close() error {
	return r.client.Close()
}

// Ping tests Redis connection
func (r *RedisStorage) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// RedisAssemblyStore keeps pending assemblies as JSON values whose TTL is
// refreshed on every save.
type RedisAssemblyStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ assembler.Store = (*RedisAssemblyStore)(nil)

func (s *RedisAssemblyStore) Load(ctx context.Context, token string) (*assembler.PendingAssembly, bool, error) {
	data, err := s.client.Get(ctx, assemblyPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get pending assembly: %w", err)
	}
	var p assembler.PendingAssembly
	if err := sonic.UnmarshalString(data, &p); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal pending assembly: %w", err)
	}
	return &p, true, nil
}

func (s *RedisAssemblyStore) Save(ctx context.Context, p *assembler.PendingAssembly) error {
	data, err := sonic.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal pending assembly: %w", err)
	}
	if err := s.client.Set(ctx, assemblyPrefix+p.Token, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set pending assembly: %w", err)
	}
	return nil
}

func (s *RedisAssemblyStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, assemblyPrefix+token).Err(); err != nil {
		return fmt.Errorf("failed to delete pending assembly: %w", err)
	}
	return nil
}

// RedisRegionStore stores each cache key once with SETNX. The TTL is fixed at
// creation and reads never touch it.
type RedisRegionStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ region.Store = (*RedisRegionStore)(nil)

func (s *RedisRegionStore) Put(ctx context.Context, key string, regions map[string]string) (string, error) {
	if key == "" {
		key = uuid.NewString()
	}
	data, err := sonic.Marshal(regions)
	if err != nil {
		return "", fmt.Errorf("failed to marshal regions: %w", err)
	}
	created, err := s.client.SetNX(ctx, regionPrefix+key, data, s.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("failed to store regions: %w", err)
	}
	if !created {
		return "", region.ErrKeyExists
	}
	return key, nil
}

func (s *RedisRegionStore) Get(ctx context.Context, key string) (map[string]string, bool, error) {
	data, err := s.client.Get(ctx, regionPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get regions: %w", err)
	}
	var regions map[string]string
	if err := sonic.UnmarshalString(data, &regions); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal regions: %w", err)
	}
	return regions, true, nil
}

// TTL reports how long a cache key has left
func (s *RedisRegionStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.TTL(ctx, regionPrefix+key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get TTL: %w", err)
	}
	return ttl, nil
}

// RedisDocumentStore keeps the latest accepted document per session.
// Reads slide the expiry forward.
type RedisDocumentStore struct {
	client *redis.Client
	ttl    time.Duration
}

func (s *RedisDocumentStore) Load(ctx context.Context, sessionID string) (string, bool, error) {
	doc, err := s.client.GetEx(ctx, documentPrefix+sessionID, s.ttl).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, true, nil
}

func (s *RedisDocumentStore) Save(ctx context.Context, sessionID, document string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID cannot be empty")
	}
	if err := s.client.Set(ctx, documentPrefix+sessionID, document, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set document: %w", err)
	}
	return nil
}
