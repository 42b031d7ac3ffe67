package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sifan077/tinyurl/internal/app/model"
	"go.uber.org/zap"
)

const (
	cacheKeyPrefix     = "tinyurl:code:"
	tombstoneKeyPrefix = "tinyurl:deleted:"
	defaultCacheTTL    = time.Hour
)

// fillScript caches a mapping unless the code carries a delete tombstone.
// Running the check and the SET as one script keeps a lookup that read the
// row before a concurrent delete from re-caching it afterwards.
var fillScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[2]) == 1 then
	return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
return 1
`)

// CachedURLRepository puts a Redis cache-aside layer in front of another
// URLRepository. Mappings never change after creation, so a cached entry
// stays valid until the code is deleted. A delete leaves a tombstone for one
// TTL that blocks refills of the code. Redis failures fall through to the
// inner repository.
type CachedURLRepository struct {
	inner  URLRepository
	rdb    redis.UniversalClient
	ttl    time.Duration
	logger *zap.Logger
}

var _ URLRepository = (*CachedURLRepository)(nil)

// NewCachedURLRepository wraps inner with a Redis cache.
func NewCachedURLRepository(inner URLRepository, rdb redis.UniversalClient, ttl time.Duration, logger *zap.Logger) *CachedURLRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedURLRepository{
		inner:  inner,
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

func (r *CachedURLRepository) Insert(ctx context.Context, code, longURL string) (int64, error) {
	return r.inner.Insert(ctx, code, longURL)
}

func (r *CachedURLRepository) FindByCode(ctx context.Context, code string) (*model.URLMapping, error) {
	key := cacheKeyPrefix + code

	raw, err := r.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var mapping model.URLMapping
		if jsonErr := json.Unmarshal(raw, &mapping); jsonErr == nil {
			return &mapping, nil
		}
		r.logger.Warn("discarding corrupt cache entry", zap.String("code", code))
	case errors.Is(err, redis.Nil):
	default:
		r.logger.Warn("redis cache lookup failed", zap.String("code", code), zap.Error(err))
	}

	mapping, err := r.inner.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(mapping); err == nil {
		keys := []string{key, tombstoneKeyPrefix + code}
		if err := fillScript.Run(ctx, r.rdb, keys, payload, r.ttl.Milliseconds()).Err(); err != nil {
			r.logger.Warn("redis cache fill failed", zap.String("code", code), zap.Error(err))
		}
	}
	return mapping, nil
}

func (r *CachedURLRepository) DeleteByCode(ctx context.Context, code string) error {
	if err := r.inner.DeleteByCode(ctx, code); err != nil {
		return err
	}
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, tombstoneKeyPrefix+code, 1, r.ttl)
		pipe.Del(ctx, cacheKeyPrefix+code)
		return nil
	})
	if err != nil {
		r.logger.Warn("redis cache invalidation failed", zap.String("code", code), zap.Error(err))
	}
	return nil
}
