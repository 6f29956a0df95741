// Package cache keeps short-lived copies of read models in Redis.
// The database stays the source of truth; every write invalidates.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"viewly/internal/models"

	"github.com/redis/go-redis/v9"
)

type CacheService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCacheService(client *redis.Client, defaultTTL time.Duration) *CacheService {
	return &CacheService{
		client: client,
		ttl:    defaultTTL,
	}
}

// Base operations
func (s *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	return s.SetWithTTL(ctx, key, value, s.ttl)
}

func (s *CacheService) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

// Get decodes the cached value into dest. It reports false on a miss.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get cache value: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return true, nil
}

func (s *CacheService) Delete(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}

// Key generation
func (s *CacheService) GenerateKey(entityType, keyType string, value interface{}) string {
	return fmt.Sprintf("%s:%s:%v", entityType, keyType, value)
}

// Viewing caching
//
// Every commit raises a per-viewing version floor before deleting the entry.
// A reader that loaded the row before the commit carries an older version
// and its write-back is refused, so a superseded aggregate never lands in
// the cache after the invalidation.

// setIfCurrent writes KEYS[1] unless ARGV[2] is below the floor in KEYS[2].
var setIfCurrent = redis.NewScript(`
local floor = tonumber(redis.call("GET", KEYS[2]) or "0")
if tonumber(ARGV[2]) < floor then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
else
	redis.call("SET", KEYS[1], ARGV[1])
end
return 1
`)

// raiseFloor sets KEYS[1] to ARGV[1] if that is higher, then deletes KEYS[2].
var raiseFloor = redis.NewScript(`
local floor = tonumber(redis.call("GET", KEYS[1]) or "0")
if tonumber(ARGV[1]) > floor then
	redis.call("SET", KEYS[1], ARGV[1])
end
if tonumber(ARGV[2]) > 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
redis.call("DEL", KEYS[2])
return 1
`)

func (s *CacheService) viewingKey(id string) string {
	return s.GenerateKey("viewing", "id", id)
}

func (s *CacheService) viewingFloorKey(id string) string {
	return s.GenerateKey("viewing", "floor", id)
}

// floorTTL outlives the entry so a slow reader is still fenced off.
// Entries without a TTL get a floor without one.
func (s *CacheService) floorTTL() time.Duration {
	if s.ttl <= 0 {
		return 0
	}
	return 2 * s.ttl
}

func (s *CacheService) GetViewing(ctx context.Context, id string) (*models.Viewing, bool, error) {
	var v models.Viewing
	ok, err := s.Get(ctx, s.viewingKey(id), &v)
	if err != nil || !ok {
		return nil, false, err
	}
	return &v, true, nil
}

// SetViewing caches v unless a newer version has been committed since v was
// loaded. It reports whether the entry was written.
func (s *CacheService) SetViewing(ctx context.Context, v *models.Viewing) (bool, error) {
	if v == nil {
		return false, errors.New("cannot cache nil viewing")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return false, fmt.Errorf("failed to marshal cache value: %w", err)
	}
	id := v.Request.ID
	n, err := setIfCurrent.Run(ctx, s.client,
		[]string{s.viewingKey(id), s.viewingFloorKey(id)},
		data, v.Request.Version, s.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("failed to set cache value: %w", err)
	}
	return n == 1, nil
}

// InvalidateViewing drops the cached entry and fences off versions older
// than the committed one.
func (s *CacheService) InvalidateViewing(ctx context.Context, id string, committedVersion int64) error {
	return raiseFloor.Run(ctx, s.client,
		[]string{s.viewingFloorKey(id), s.viewingKey(id)},
		committedVersion, s.floorTTL().Milliseconds(),
	).Err()
}

// HealthCheck pings Redis.
func (s *CacheService) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	return nil
}

// GetStats exposes the connection pool counters.
func (s *CacheService) GetStats() *redis.PoolStats {
	return s.client.PoolStats()
}

func (s *CacheService) FlushAll(ctx context.Context) error {
	return s.client.FlushAll(ctx).Err()
}

func (s *CacheService) Close() error {
	return s.client.Close()
}
