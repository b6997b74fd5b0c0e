// Package redis guarda respuestas por clave de idempotencia en Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/jhoicas/agro-inventario/internal/application/ports"
)

const keyPrefix = "agro:idem:"

var _ ports.ReplayStore = (*ReplayStore)(nil)

// NewClient crea el cliente a partir de REDIS_URL y valida la conexión.
func NewClient(ctx context.Context, redisURL string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: url inválida: %w", err)
	}
	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return rdb, nil
}

// ReplayStore implementa ports.ReplayStore.
type ReplayStore struct {
	rdb goredis.Cmdable
}

func NewReplayStore(rdb goredis.Cmdable) *ReplayStore {
	return &ReplayStore{rdb: rdb}
}

func responseKey(key string) string { return keyPrefix + "resp:" + key }
func lockKey(key string) string     { return keyPrefix + "lock:" + key }

func (s *ReplayStore) Load(ctx context.Context, key string) (*ports.StoredResponse, error) {
	raw, err := s.rdb.Get(ctx, responseKey(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: leer %s: %w", key, err)
	}
	var resp ports.StoredResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("redis: respuesta corrupta %s: %w", key, err)
	}
	return &resp, nil
}

func (s *ReplayStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, lockKey(key), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: reservar %s: %w", key, err)
	}
	return ok, nil
}

func (s *ReplayStore) Save(ctx context.Context, key string, resp *ports.StoredResponse, ttl time.Duration) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, responseKey(key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis: guardar %s: %w", key, err)
	}
	return nil
}

func (s *ReplayStore) Release(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, lockKey(key)).Err(); err != nil {
		return fmt.Errorf("redis: liberar %s: %w", key, err)
	}
	return nil
}
