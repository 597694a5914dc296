// Package tiercache implements a three-tier (hot/warm/cold) in-memory cache
// with popularity-based promotion, per-entry TTL, and memory-budgeted
// eviction. It backs the enrichment pipeline's request-level caching, where
// promotion policy has to be explicit rather than delegated to a general
// cache library.
package tiercache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

type tier int

const (
	tierHot tier = iota
	tierWarm
	tierCold
	tierCount
)

func (t tier) String() string {
	switch t {
	case tierHot:
		return "hot"
	case tierWarm:
		return "warm"
	case tierCold:
		return "cold"
	default:
		return "unknown"
	}
}

type entry struct {
	value       any
	createdAt   time.Time
	lastAccess  time.Time
	ttl         time.Duration
	accessCount int
	popularity  float64
	sizeBytes   int
}

func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.createdAt) > e.ttl
}

// Config tunes cache behavior. Zero values select the defaults.
type Config struct {
	// HotCapacity bounds the hot tier; promotion past it demotes the
	// least-recently-accessed hot entry to warm. Default 100.
	HotCapacity int
	// PopularityThreshold is the popularity an entry must cross on access
	// to earn promotion to hot. Default 5.
	PopularityThreshold float64
	// MemoryBudgetBytes bounds the estimated total size across all tiers.
	// Default 4 MiB.
	MemoryBudgetBytes int64
	// DefaultTTL applies to retrieval-style entries. Default 30 minutes.
	DefaultTTL time.Duration
	// VolatileTTL applies to entries stored with the Volatile option, such
	// as traffic readings. Default 3 minutes.
	VolatileTTL time.Duration
	// PopularityHalfLife controls recency decay. Default 10 minutes.
	PopularityHalfLife time.Duration
}

func (c *Config) applyDefaults() {
	if c.HotCapacity <= 0 {
		c.HotCapacity = 100
	}
	if c.PopularityThreshold <= 0 {
		c.PopularityThreshold = 5
	}
	if c.MemoryBudgetBytes <= 0 {
		c.MemoryBudgetBytes = 4 << 20
	}
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = 30 * time.Minute
	}
	if c.VolatileTTL <= 0 {
		c.VolatileTTL = 3 * time.Minute
	}
	if c.PopularityHalfLife <= 0 {
		c.PopularityHalfLife = 10 * time.Minute
	}
}

// Cache is safe for concurrent use. A single mutex guards all tiers; cache
// operations are O(1)-ish and are not the pipeline's bottleneck.
type Cache struct {
	mu     sync.Mutex
	tiers  [tierCount]map[string]*entry
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	totalSize   int64
	hits        int64
	misses      int64
	lookupNanos int64
	lookupCount int64
}

// New creates a cache with the given configuration.
func New(cfg Config, logger *slog.Logger) *Cache {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{cfg: cfg, logger: logger, now: time.Now}
	for i := range c.tiers {
		c.tiers[i] = make(map[string]*entry)
	}
	return c
}

// SetOption configures a single Set call.
type SetOption func(*setConfig)

type setConfig struct {
	ttl time.Duration
}

// Volatile selects the short TTL, for values that go stale in minutes
// (traffic readings).
func Volatile() SetOption {
	return func(sc *setConfig) { sc.ttl = -1 }
}

// WithTTL overrides the TTL for this entry.
func WithTTL(ttl time.Duration) SetOption {
	return func(sc *setConfig) { sc.ttl = ttl }
}

// Get returns the cached value for key. Expired entries are evicted on
// access and reported as a miss, regardless of tier. Hits in warm or cold
// recompute popularity and may promote the entry to hot.
func (c *Cache) Get(key string) (any, bool) {
	start := time.Now()
	c.mu.Lock()
	defer func() {
		c.lookupNanos += time.Since(start).Nanoseconds()
		c.lookupCount++
		c.mu.Unlock()
	}()

	now := c.now()
	for t := tierHot; t < tierCount; t++ {
		e, ok := c.tiers[t][key]
		if !ok {
			continue
		}
		if e.expired(now) {
			c.removeLocked(t, key, e)
			c.misses++
			return nil, false
		}

		e.accessCount++
		e.lastAccess = now
		e.popularity = c.popularity(e, now)

		if t != tierHot && e.popularity >= c.cfg.PopularityThreshold {
			c.promoteLocked(t, key, e)
		}
		c.hits++
		return e.value, true
	}
	c.misses++
	return nil, false
}

// Set inserts a value into the warm tier. If the estimated total size would
// exceed the memory budget, the least popular entry across all tiers is
// evicted, repeatedly, until the new entry fits. A value whose estimated
// size alone exceeds the budget is not cached.
func (c *Cache) Set(key string, value any, opts ...SetOption) {
	sc := setConfig{ttl: c.cfg.DefaultTTL}
	for _, opt := range opts {
		opt(&sc)
	}
	if sc.ttl == -1 {
		sc.ttl = c.cfg.VolatileTTL
	}

	size := estimateSize(value)

	c.mu.Lock()
	defer c.mu.Unlock()

	// Replace any existing entry for the key first so its size is not
	// double-counted.
	for t := tierHot; t < tierCount; t++ {
		if old, ok := c.tiers[t][key]; ok {
			c.removeLocked(t, key, old)
		}
	}

	// An entry that cannot fit in an empty cache is refused outright;
	// admitting it would leave the tracked size above budget no matter how
	// much is evicted.
	if int64(size) > c.cfg.MemoryBudgetBytes {
		c.logger.Debug("value exceeds memory budget, not cached", "key", key, "size", size)
		return
	}

	for c.totalSize+int64(size) > c.cfg.MemoryBudgetBytes {
		if !c.evictLeastPopularLocked() {
			break
		}
	}

	now := c.now()
	c.tiers[tierWarm][key] = &entry{
		value:      value,
		createdAt:  now,
		lastAccess: now,
		ttl:        sc.ttl,
		sizeBytes:  size,
	}
	c.totalSize += int64(size)

	// Keep warm bounded; overflow moves the least-recently-accessed warm
	// entry to cold, where it stays until it expires, is evicted, or earns
	// promotion back through popularity.
	warmCap := c.cfg.HotCapacity * 4
	if len(c.tiers[tierWarm]) > warmCap {
		var lruKey string
		var lru *entry
		for k, e := range c.tiers[tierWarm] {
			if k == key {
				continue
			}
			if lru == nil || e.lastAccess.Before(lru.lastAccess) {
				lruKey, lru = k, e
			}
		}
		if lru != nil {
			delete(c.tiers[tierWarm], lruKey)
			c.tiers[tierCold][lruKey] = lru
		}
	}
}

// popularity is accessCount weighted by recency decay of the entry's age.
func (c *Cache) popularity(e *entry, now time.Time) float64 {
	age := now.Sub(e.createdAt).Seconds()
	halfLife := c.cfg.PopularityHalfLife.Seconds()
	return float64(e.accessCount) * math.Exp(-age/halfLife*math.Ln2)
}

func (c *Cache) promoteLocked(from tier, key string, e *entry) {
	delete(c.tiers[from], key)
	c.tiers[tierHot][key] = e

	if len(c.tiers[tierHot]) <= c.cfg.HotCapacity {
		return
	}
	// Demote the least-recently-accessed hot entry to warm.
	var lruKey string
	var lru *entry
	for k, cand := range c.tiers[tierHot] {
		if k == key {
			continue
		}
		if lru == nil || cand.lastAccess.Before(lru.lastAccess) {
			lruKey, lru = k, cand
		}
	}
	if lru != nil {
		delete(c.tiers[tierHot], lruKey)
		c.tiers[tierWarm][lruKey] = lru
		c.logger.Debug("demoted hot entry", "key", lruKey)
	}
}

func (c *Cache) evictLeastPopularLocked() bool {
	now := c.now()
	var victimTier tier
	var victimKey string
	var victim *entry

	for t := tierHot; t < tierCount; t++ {
		for k, e := range c.tiers[t] {
			if e.expired(now) {
				c.removeLocked(t, k, e)
				return true
			}
			pop := c.popularity(e, now)
			if victim == nil || pop < c.popularity(victim, now) {
				victimTier, victimKey, victim = t, k, e
			}
		}
	}
	if victim == nil {
		return false
	}
	c.removeLocked(victimTier, victimKey, victim)
	c.logger.Debug("evicted least popular entry", "key", victimKey, "tier", victimTier.String())
	return true
}

func (c *Cache) removeLocked(t tier, key string, e *entry) {
	delete(c.tiers[t], key)
	c.totalSize -= int64(e.sizeBytes)
}

// estimateSize approximates an entry's footprint by its serialized length.
// The eviction contract only needs relative ordering, not exact accounting.
func estimateSize(value any) int {
	if data, err := json.Marshal(value); err == nil {
		return len(data) + 64
	}
	return len(fmt.Sprintf("%v", value)) + 64
}

// Stats is a point-in-time snapshot used by health checks.
type Stats struct {
	Hits          int64         `json:"hits"`
	Misses        int64         `json:"misses"`
	HitRate       float64       `json:"hit_rate"`
	AvgLookupTime time.Duration `json:"avg_lookup_time"`
	HotEntries    int           `json:"hot_entries"`
	WarmEntries   int           `json:"warm_entries"`
	ColdEntries   int           `json:"cold_entries"`
	TotalBytes    int64         `json:"total_bytes"`
}

// Stats reports hit/miss counters and per-tier entry counts.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Hits:        c.hits,
		Misses:      c.misses,
		HotEntries:  len(c.tiers[tierHot]),
		WarmEntries: len(c.tiers[tierWarm]),
		ColdEntries: len(c.tiers[tierCold]),
		TotalBytes:  c.totalSize,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	if c.lookupCount > 0 {
		s.AvgLookupTime = time.Duration(c.lookupNanos / c.lookupCount)
	}
	return s
}
