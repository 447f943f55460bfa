package question

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = 30 * time.Second

// Cache provides Redis-backed caching of list queries. Keys embed a
// version counter that every write bumps, so a mutated store never serves
// a stale page; superseded versions age out via TTL. A failed bump
// surfaces through Invalidate's error so the caller can stop reading
// until a bump lands.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ ListCache = (*Cache)(nil)

const cacheVersionKey = "questions:list:version"

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) key(ctx context.Context, filter Filter) (string, error) {
	version, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if err != nil && err != redis.Nil {
		return "", err
	}
	return strings.Join([]string{
		"questions:list",
		fmt.Sprint(version),
		filter.Subject,
		filter.DifficultyLevel,
		fmt.Sprint(filter.Limit),
		fmt.Sprint(filter.Offset),
	}, ":"), nil
}

func (c *Cache) Get(ctx context.Context, filter Filter) (*ListPage, error) {
	key, err := c.key(ctx, filter)
	if err != nil {
		return nil, err
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var page ListPage
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Cache) Set(ctx context.Context, filter Filter, page ListPage) error {
	key, err := c.key(ctx, filter)
	if err != nil {
		return err
	}
	data, err := json.Marshal(page)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Invalidate bumps the version counter, orphaning every cached page.
func (c *Cache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, cacheVersionKey).Err()
}
