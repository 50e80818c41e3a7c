package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/epir-jewellery/shop-assistant/backend/internal/model/catalog"
)

// RedisSnapshot stores the catalog as one JSON document under a Redis key.
type RedisSnapshot struct {
	client *redis.Client
	key    string
}

// NewRedisSnapshot returns a snapshot stored under key.
func NewRedisSnapshot(client *redis.Client, key string) *RedisSnapshot {
	return &RedisSnapshot{client: client, key: key}
}

// Load reads the document.
func (r *RedisSnapshot) Load(ctx context.Context) ([]catalog.Product, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: redis key %s", ErrSnapshotMissing, r.key)
		}
		return nil, fmt.Errorf("read catalog snapshot: %w", err)
	}
	return decodeSnapshot(data)
}

// Save writes a temporary key and renames it over the live key in one transaction.
func (r *RedisSnapshot) Save(ctx context.Context, products []catalog.Product) error {
	data, err := encodeSnapshot(products, time.Now())
	if err != nil {
		return err
	}

	tmpKey := r.key + ":tmp:" + uuid.NewString()
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, tmpKey, data, 0)
		pipe.Rename(ctx, tmpKey, r.key)
		return nil
	})
	if err != nil {
		r.client.Del(ctx, tmpKey)
		return fmt.Errorf("swap catalog snapshot: %w", err)
	}
	return nil
}
