package nav

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmcloughlin/geohash"
	"github.com/paulmach/orb"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// cacheQueryTimeout is the deadline for each cache read/write.
	cacheQueryTimeout = 2 * time.Second

	// geohashPrecision 9 is a ~4.8m cell, finer than Mapbox's snapping radius.
	geohashPrecision = 9

	cacheKeyPrefix = "nav:route:"
)

// RouteStore persists directions results for a limited time.
type RouteStore interface {
	// Get returns the cached result for key, or (nil, nil) on a miss.
	Get(ctx context.Context, key string) (*DirectionsResult, error)
	Set(ctx context.Context, key string, res *DirectionsResult, ttl time.Duration) error
}

// CachedDirections wraps another Directions and caches its results.
type CachedDirections struct {
	inner      Directions
	store      RouteStore
	profile    string
	ttl        time.Duration
	log        *zap.Logger
	afterStore func() // test hook, called after every async store attempt
}

// CachedDirectionsOption configures a CachedDirections.
type CachedDirectionsOption func(*CachedDirections)

// WithCacheLogger sets the logger used to report failed cache operations.
func WithCacheLogger(l *zap.Logger) CachedDirectionsOption {
	return func(c *CachedDirections) { c.log = l }
}

func withAfterStore(fn func()) CachedDirectionsOption {
	return func(c *CachedDirections) { c.afterStore = fn }
}

// NewCachedDirections wraps inner with a cache-aside layer backed by store.
func NewCachedDirections(inner Directions, store RouteStore, cfg NavConfig, opts ...CachedDirectionsOption) *CachedDirections {
	cfg = cfg.WithDefaults()
	c := &CachedDirections{
		inner:   inner,
		store:   store,
		profile: cfg.Profile,
		ttl:     cfg.CacheTTL,
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Fetch satisfies Directions. Cache read failures fall through to inner and
// errors from inner are never cached.
func (c *CachedDirections) Fetch(ctx context.Context, mode RouteMode, coords []orb.Point) (*DirectionsResult, error) {
	key := routeCacheKey(c.profile, mode, coords)

	cached, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.Warn("route cache read failed", zap.String("key", key), zap.Error(err))
	}
	if cached != nil {
		c.log.Debug("route cache hit", zap.String("key", key))
		return cached, nil
	}

	res, err := c.inner.Fetch(ctx, mode, coords)
	if err != nil {
		return nil, err
	}

	// Written in the background with its own deadline so a caller that gives
	// up right after the response does not lose the entry.
	go func() {
		storeCtx, cancel := context.WithTimeout(context.Background(), cacheQueryTimeout)
		defer cancel()

		if err := c.store.Set(storeCtx, key, res, c.ttl); err != nil {
			c.log.Warn("route cache write failed", zap.String("key", key), zap.Error(err))
		}
		if c.afterStore != nil {
			c.afterStore()
		}
	}()

	return res, nil
}

// routeCacheKey identifies a request by profile, mode and the geohash cell of
// every coordinate in order.
func routeCacheKey(profile string, mode RouteMode, coords []orb.Point) string {
	cells := make([]string, len(coords))
	for i, p := range coords {
		cells[i] = geohash.EncodeWithPrecision(p.Lat(), p.Lon(), geohashPrecision)
	}
	return cacheKeyPrefix + profile + ":" + string(mode) + ":" + strings.Join(cells, ",")
}

// RedisStore is the RouteStore backed by Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a RouteStore on client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get returns the cached result for key.
func (s *RedisStore) Get(ctx context.Context, key string) (*DirectionsResult, error) {
	ctx, cancel := context.WithTimeout(ctx, cacheQueryTimeout)
	defer cancel()

	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("nav: cache: get: %w", err)
	}

	var res DirectionsResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("nav: cache: decode %s: %w", key, err)
	}
	return &res, nil
}

// Set stores res under key for ttl.
func (s *RedisStore) Set(ctx context.Context, key string, res *DirectionsResult, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, cacheQueryTimeout)
	defer cancel()

	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("nav: cache: encode: %w", err)
	}
	if err := s.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("nav: cache: set: %w", err)
	}
	return nil
}
