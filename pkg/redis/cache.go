package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wonny/finmetric/pkg/logger"
)

// Cache 기본 TTL
const (
	TTLShort   = 1 * time.Minute // 시세성 값
	TTLProfile = 6 * time.Hour   // 회사 프로필
	TTLDaily   = 24 * time.Hour  // 티커 목록
)

// Cache stores JSON values under "<prefix>:cache:<key>".
// redis 가 꺼져 있으면 모든 호출이 miss/no-op 이다.
// ⭐ SSOT: 캐시 헬퍼는 여기서만
type Cache struct {
	client *Client
	prefix string
	logger *logger.Logger
}

// NewCache creates a cache over client
func NewCache(client *Client, prefix string, log *logger.Logger) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
		logger: log.Module("cache"),
	}
}

func (c *Cache) key(key string) string {
	return c.prefix + ":cache:" + key
}

// Get decodes the cached value into dest. found=false on a miss.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	data, err := c.client.Redis().Get(ctx, c.key(key)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return true, nil
}

// Set encodes value and stores it for ttl
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.client.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := c.client.Redis().Set(ctx, c.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Delete removes key
func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.client.Enabled() {
		return nil
	}
	return c.client.Redis().Del(ctx, c.key(key)).Err()
}

// GetOrSet fills dest from the cache, or from load on a miss and stores the
// loaded value. 캐시 장애는 경고만 남기고 load 결과를 그대로 쓴다.
// load 의 에러는 그대로 돌려준다.
func (c *Cache) GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, load func() (interface{}, error)) error {
	found, err := c.Get(ctx, key, dest)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Cache read failed")
	}
	if found {
		return nil
	}

	value, err := load()
	if err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if c.client.Enabled() {
		if err := c.client.Redis().Set(ctx, c.key(key), data, ttl).Err(); err != nil {
			c.logger.WithError(err).WithField("key", key).Warn("Cache write failed")
		}
	}
	return json.Unmarshal(data, dest)
}

// ProfileKey is the cache key of one company profile
func ProfileKey(ticker string) string {
	return "fmp:profile:" + strings.ToUpper(ticker)
}

// TickerListKey is the cache key of the ticker universe
func TickerListKey() string {
	return "fmp:tickers"
}
