package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Category partitions the store. Each category is an independent bounded
// TTL map with its own lock; operations on one category never block another.
type Category string

const (
	CategoryPermissions Category = "permissions"
	CategoryMenus       Category = "menus"
	CategoryRoles       Category = "roles"
	CategoryPrompts     Category = "prompts"
	CategoryGeneral     Category = "general"
)

// Structured key helpers. Keys are prefix-addressable so invalidation can
// target an exact prefix instead of substring matching.
func UserPermissionsKey(userID int64) string {
	return "user:" + strconv.FormatInt(userID, 10) + ":permissions"
}

func UserMenuKey(userID int64) string {
	return "user:" + strconv.FormatInt(userID, 10) + ":menu"
}

func UserPrefix(userID int64) string {
	return "user:" + strconv.FormatInt(userID, 10) + ":"
}

const (
	AllRolesKey       = "roles:all"
	AllPermissionsKey = "permissions:all"
	ActivePromptsKey  = "prompts:active"
)

type categoryConfig struct {
	maxEntries int
	ttl        time.Duration
}

var defaultConfigs = map[Category]categoryConfig{
	CategoryPermissions: {maxEntries: 500, ttl: 10 * time.Minute},
	CategoryMenus:       {maxEntries: 500, ttl: 15 * time.Minute},
	CategoryRoles:       {maxEntries: 200, ttl: 30 * time.Minute},
	CategoryPrompts:     {maxEntries: 1000, ttl: time.Hour},
	CategoryGeneral:     {maxEntries: 1000, ttl: 5 * time.Minute},
}

type entry struct {
	key      string
	value    interface{}
	storedAt time.Time
}

type shard struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	items      map[string]*list.Element
	lru        *list.List // front = most recently used
	hits       int64
	misses     int64
}

func newShard(cfg categoryConfig) *shard {
	return &shard{
		ttl:        cfg.ttl,
		maxEntries: cfg.maxEntries,
		items:      make(map[string]*list.Element),
		lru:        list.New(),
	}
}

// Options override per-category TTLs; zero values keep the defaults.
type Options struct {
	TTLOverrides map[Category]time.Duration
	Remote       Remote
}

// Store is the in-process cache. It is constructed once and injected into
// every component that needs caching; there is no package-level instance.
type Store struct {
	shards map[Category]*shard
	remote Remote
	logger *slog.Logger
}

func NewStore(opts Options, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	shards := make(map[Category]*shard, len(defaultConfigs))
	for cat, cfg := range defaultConfigs {
		if ttl, ok := opts.TTLOverrides[cat]; ok && ttl > 0 {
			cfg.ttl = ttl
		}
		shards[cat] = newShard(cfg)
	}
	return &Store{
		shards: shards,
		remote: opts.Remote,
		logger: logger,
	}
}

func (s *Store) shard(cat Category) *shard {
	if sh, ok := s.shards[cat]; ok {
		return sh
	}
	return s.shards[CategoryGeneral]
}

// Get returns the locally cached value for key. Expired entries are removed
// lazily and reported as absent.
func (s *Store) Get(key string, cat Category) (interface{}, bool) {
	sh := s.shard(cat)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	el, ok := sh.items[key]
	if !ok {
		sh.misses++
		return nil, false
	}

	ent := el.Value.(*entry)
	if time.Since(ent.storedAt) > sh.ttl {
		sh.lru.Remove(el)
		delete(sh.items, key)
		sh.misses++
		return nil, false
	}

	sh.lru.MoveToFront(el)
	sh.hits++
	return ent.value, true
}

// GetInto checks the local tier first, then the remote tier if configured.
// dest must be a pointer; on a remote hit the value is decoded into dest and
// re-seeded locally.
func (s *Store) GetInto(ctx context.Context, key string, cat Category, dest interface{}) bool {
	if v, ok := s.Get(key, cat); ok {
		raw, err := json.Marshal(v)
		if err != nil {
			return false
		}
		return json.Unmarshal(raw, dest) == nil
	}

	if s.remote == nil {
		return false
	}

	raw, ok, err := s.remote.Get(ctx, string(cat), key)
	if err != nil {
		s.logger.Warn("remote cache get failed", "category", cat, "key", key, "error", err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		s.logger.Warn("remote cache value undecodable", "category", cat, "key", key, "error", err)
		return false
	}

	s.setLocal(key, deref(dest), cat)
	return true
}

// deref unwraps one level of pointer so the local tier holds the value shape
// callers stored, not a pointer into their stack.
func deref(v interface{}) interface{} {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

// Set stores the value, overwriting and resetting the entry's age. With a
// remote tier configured the value is also written through as JSON.
func (s *Store) Set(ctx context.Context, key string, value interface{}, cat Category) {
	s.setLocal(key, value, cat)

	if s.remote == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("remote cache set: value not serializable", "category", cat, "key", key, "error", err)
		return
	}
	if err := s.remote.Set(ctx, string(cat), key, raw, s.shard(cat).ttl); err != nil {
		s.logger.Warn("remote cache set failed", "category", cat, "key", key, "error", err)
	}
}

func (s *Store) setLocal(key string, value interface{}, cat Category) {
	sh := s.shard(cat)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if el, ok := sh.items[key]; ok {
		ent := el.Value.(*entry)
		ent.value = value
		ent.storedAt = time.Now()
		sh.lru.MoveToFront(el)
		return
	}

	if sh.lru.Len() >= sh.maxEntries {
		oldest := sh.lru.Back()
		if oldest != nil {
			sh.lru.Remove(oldest)
			delete(sh.items, oldest.Value.(*entry).key)
		}
	}

	sh.items[key] = sh.lru.PushFront(&entry{key: key, value: value, storedAt: time.Now()})
}

// Delete removes a key; deleting an absent key is a no-op.
func (s *Store) Delete(ctx context.Context, key string, cat Category) {
	sh := s.shard(cat)
	sh.mu.Lock()
	if el, ok := sh.items[key]; ok {
		sh.lru.Remove(el)
		delete(sh.items, key)
	}
	sh.mu.Unlock()

	if s.remote != nil {
		if err := s.remote.Delete(ctx, string(cat), key); err != nil {
			s.logger.Warn("remote cache delete failed", "category", cat, "key", key, "error", err)
		}
	}
}

// Invalidate purges keys in the category matching the prefix. The prefix "*"
// clears the whole category. Returns the number of local entries removed.
func (s *Store) Invalidate(ctx context.Context, prefix string, cat Category) int {
	sh := s.shard(cat)
	sh.mu.Lock()
	removed := 0
	if prefix == "*" {
		removed = len(sh.items)
		sh.items = make(map[string]*list.Element)
		sh.lru.Init()
	} else {
		for key, el := range sh.items {
			if strings.HasPrefix(key, prefix) {
				sh.lru.Remove(el)
				delete(sh.items, key)
				removed++
			}
		}
	}
	sh.mu.Unlock()

	if s.remote != nil {
		if err := s.remote.Invalidate(ctx, string(cat), prefix); err != nil {
			s.logger.Warn("remote cache invalidate failed", "category", cat, "prefix", prefix, "error", err)
		}
	}

	if removed > 0 {
		s.logger.Debug("cache invalidated", "category", cat, "prefix", prefix, "removed", removed)
	}
	return removed
}

type CategoryStats struct {
	Size       int           `json:"size"`
	MaxEntries int           `json:"max_entries"`
	TTL        time.Duration `json:"ttl"`
	Hits       int64         `json:"hits"`
	Misses     int64         `json:"misses"`
}

func (s *Store) Stats() map[Category]CategoryStats {
	stats := make(map[Category]CategoryStats, len(s.shards))
	for cat, sh := range s.shards {
		sh.mu.Lock()
		stats[cat] = CategoryStats{
			Size:       len(sh.items),
			MaxEntries: sh.maxEntries,
			TTL:        sh.ttl,
			Hits:       sh.hits,
			Misses:     sh.misses,
		}
		sh.mu.Unlock()
	}
	return stats
}
