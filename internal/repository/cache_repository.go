package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/SergeiKhy/scanme-analytics/internal/models"
	"github.com/redis/go-redis/v9"
)

// CacheRepository holds QR-code lookups keyed by id.
type CacheRepository interface {
	Get(ctx context.Context, id string) (*models.QRCode, error)
	Set(ctx context.Context, qr *models.QRCode, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

type cacheRepository struct {
	redis *RedisDB
}

func NewCacheRepository(redis *RedisDB) CacheRepository {
	return &cacheRepository{redis: redis}
}

func (r *cacheRepository) Get(ctx context.Context, id string) (*models.QRCode, error) {
	data, err := r.redis.Client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to read cached qr code: %w", err)
	}

	var qr models.QRCode
	if err := json.Unmarshal(data, &qr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal qr code: %w", err)
	}

	return &qr, nil
}

func (r *cacheRepository) Set(ctx context.Context, qr *models.QRCode, ttl time.Duration) error {
	data, err := json.Marshal(qr)
	if err != nil {
		return fmt.Errorf("failed to marshal qr code: %w", err)
	}

	return r.redis.Client.Set(ctx, r.key(qr.ID), data, ttl).Err()
}

func (r *cacheRepository) Delete(ctx context.Context, id string) error {
	return r.redis.Client.Del(ctx, r.key(id)).Err()
}

func (r *cacheRepository) key(id string) string {
	return "qr:" + id
}
