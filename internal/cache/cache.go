// Package cache provides the TTL+LRU result cache. Entries hold
// snappy-compressed JSON snapshots of query results, keyed by query
// fingerprint and tagged with their source table for targeted invalidation.
// The cache never fails a query: any internal problem surfaces as a miss.
package cache

import (
	"container/list"
	"encoding/json"
	"sync"
	"time"

	"github.com/golang/snappy"
	"go.uber.org/zap"

	"github.com/irouter/irouter/pkg/types"
)

// Stats is a point-in-time snapshot of the cache counters.
type Stats struct {
	Requests      int64   `json:"requests"`
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	Evictions     int64   `json:"evictions"`
	Expirations   int64   `json:"expirations"`
	Invalidations int64   `json:"invalidations"`
	Size          int     `json:"size"`
	MaxSize       int     `json:"max_size"`
	HitRate       float64 `json:"hit_rate"`
}

type entry struct {
	key      string
	table    string
	payload  []byte // snappy-compressed JSON
	storedAt time.Time
}

// ResultCache is a fixed-capacity LRU with per-entry TTL.
type ResultCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	order    *list.List // front = most recently used
	entries  map[string]*list.Element

	requests      int64
	hits          int64
	misses        int64
	evictions     int64
	expirations   int64
	invalidations int64

	now    func() time.Time
	logger *zap.Logger
}

// New creates a cache with the given capacity and TTL. A non-positive
// capacity disables storage entirely; a non-positive TTL disables
// expiration. A nil logger disables logging.
func New(capacity int, ttl time.Duration, logger *zap.Logger) *ResultCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultCache{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
		now:      time.Now,
		logger:   logger,
	}
}

// Get looks up a fingerprint. An expired entry is removed and counted as an
// expiration plus a miss. A snapshot that fails to decode is dropped and
// counted as a miss; the caller re-executes.
func (c *ResultCache) Get(key string) (*types.QueryResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests++
	elem, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	e := elem.Value.(*entry)

	if c.ttl > 0 && c.now().Sub(e.storedAt) > c.ttl {
		c.removeLocked(elem)
		c.expirations++
		c.misses++
		return nil, false
	}

	result, err := decodeSnapshot(e.payload)
	if err != nil {
		c.removeLocked(elem)
		c.misses++
		c.logger.Warn("dropping undecodable cache entry",
			zap.String("key", key), zap.Error(err))
		return nil, false
	}

	c.order.MoveToFront(elem)
	c.hits++
	result.FromCache = true
	return result, true
}

// Put stores a result under its fingerprint, tagged with the table it came
// from. Inserting into a full cache evicts the least recently used entry.
// An unencodable result is skipped; the cache never propagates errors.
func (c *ResultCache) Put(key, table string, result *types.QueryResult) {
	if c.capacity <= 0 {
		return
	}
	payload, err := encodeSnapshot(result)
	if err != nil {
		c.logger.Warn("skipping unencodable result", zap.String("key", key), zap.Error(err))
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		e := elem.Value.(*entry)
		e.payload = payload
		e.table = table
		e.storedAt = c.now()
		c.order.MoveToFront(elem)
		return
	}

	for len(c.entries) >= c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest)
		c.evictions++
	}

	elem := c.order.PushFront(&entry{
		key:      key,
		table:    table,
		payload:  payload,
		storedAt: c.now(),
	})
	c.entries[key] = elem
}

// Invalidate removes every entry the predicate matches, given each entry's
// fingerprint and table tag, and returns how many were dropped.
func (c *ResultCache) Invalidate(match func(key, table string) bool) int {
	return c.invalidate(func(e *entry) bool { return match(e.key, e.table) })
}

// InvalidateTable removes every entry tagged with the given table and
// returns how many were dropped.
func (c *ResultCache) InvalidateTable(table string) int {
	return c.invalidate(func(e *entry) bool { return e.table == table })
}

// InvalidateAll clears the cache and returns how many entries were dropped.
func (c *ResultCache) InvalidateAll() int {
	return c.invalidate(func(*entry) bool { return true })
}

func (c *ResultCache) invalidate(match func(*entry) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var victims []*list.Element
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		if match(elem.Value.(*entry)) {
			victims = append(victims, elem)
		}
	}
	for _, elem := range victims {
		c.removeLocked(elem)
	}
	c.invalidations += int64(len(victims))
	return len(victims)
}

// Stats returns a snapshot of the counters.
func (c *ResultCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Requests:      c.requests,
		Hits:          c.hits,
		Misses:        c.misses,
		Evictions:     c.evictions,
		Expirations:   c.expirations,
		Invalidations: c.invalidations,
		Size:          len(c.entries),
		MaxSize:       c.capacity,
	}
	if s.Requests > 0 {
		s.HitRate = float64(s.Hits) / float64(s.Requests)
	}
	return s
}

// Len returns the number of live entries.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ResultCache) removeLocked(elem *list.Element) {
	e := elem.Value.(*entry)
	c.order.Remove(elem)
	delete(c.entries, e.key)
}

func encodeSnapshot(result *types.QueryResult) ([]byte, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return snappy.Encode(nil, raw), nil
}

func decodeSnapshot(payload []byte) (*types.QueryResult, error) {
	raw, err := snappy.Decode(nil, payload)
	if err != nil {
		return nil, err
	}
	var result types.QueryResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
