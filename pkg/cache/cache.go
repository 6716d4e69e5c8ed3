package cache

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Entry is a cached result together with the tag versions it was fetched under
type Entry struct {
	Value     interface{}
	Tags      []Tag
	Versions  []uint64
	ExpiresAt time.Time // zero means no expiry
}

func (e *Entry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Cache stores query results keyed by caller-chosen keys and tagged by the
// entities they reflect. Invalidating a tag bumps its version; an entry whose
// recorded versions differ from the current ones is stale and is refetched on
// the next Query.
type Cache struct {
	mu       sync.Mutex
	versions VersionStore
	ttl      time.Duration
	items    map[string]*Entry
	// subscribers maps each tag to the keys of entries that depend on it
	subscribers map[Tag]map[string]struct{}
	watchers    map[string]map[chan struct{}]struct{}
	hooks       []func(ctx context.Context, tags []Tag)
	failHooks   []func(ctx context.Context, tags []Tag, err error)
	logger      *slog.Logger
	// generation counts local invalidations so that a fetch racing with
	// one is not cached under the newer versions.
	generation uint64
}

// Option configures a Cache
type Option func(*Cache)

// WithLogger sets the logger used to report invalidations that could not
// reach the version store.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// New creates a cache over versions. A ttl of zero keeps entries until they
// are invalidated.
func New(versions VersionStore, ttl time.Duration, opts ...Option) *Cache {
	if versions == nil {
		versions = NewMemoryVersionStore()
	}
	c := &Cache{
		versions:    versions,
		ttl:         ttl,
		items:       map[string]*Entry{},
		subscribers: map[Tag]map[string]struct{}{},
		watchers:    map[string]map[chan struct{}]struct{}{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// OnInvalidate registers fn to run after every successful invalidation
func (c *Cache) OnInvalidate(fn func(ctx context.Context, tags []Tag)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, fn)
}

// OnInvalidateFailure registers fn to run when a committed mutation could not
// bump its tag versions.
func (c *Cache) OnInvalidateFailure(fn func(ctx context.Context, tags []Tag, err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failHooks = append(c.failHooks, fn)
}

// Fetcher loads a value and reports the tags it depends on
type Fetcher[T any] func(ctx context.Context) (T, []Tag, error)

// Query returns the cached value under key while it is fresh, otherwise calls
// fetch and caches its result. Fetch errors are returned and never cached.
func Query[T any](ctx context.Context, c *Cache, key string, fetch Fetcher[T]) (T, error) {
	return QueryTagged(ctx, c, key, nil, fetch)
}

// QueryTagged is Query for callers that know tags of the result before it is
// fetched. Versions of those tags, and of the tags of any entry being
// replaced, are read before fetch runs and recorded with the result, so an
// invalidation that lands while fetch is in flight, from this process or
// another one sharing the version store, leaves the new entry stale.
func QueryTagged[T any](ctx context.Context, c *Cache, key string, known []Tag, fetch Fetcher[T]) (T, error) {
	var zero T

	v, ok, err := c.fresh(ctx, key)
	if ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}
	// Freshness unknown: answer from the source and leave the cache alone.
	cacheable := err == nil

	var before map[Tag]uint64
	if pre := dedupe(append(slices.Clone(known), c.entryTags(key)...)); cacheable && len(pre) > 0 {
		versions, err := c.versions.Versions(ctx, pre)
		if err != nil {
			cacheable = false
		} else {
			before = make(map[Tag]uint64, len(pre))
			for i, t := range pre {
				before[t] = versions[i]
			}
		}
	}

	gen := c.currentGeneration()
	value, tags, err := fetch(ctx)
	if err != nil {
		return zero, err
	}
	if !cacheable {
		return value, nil
	}

	tags = dedupe(append(tags, known...))
	versions, err := c.versions.Versions(ctx, tags)
	if err != nil {
		// Serve the fetched value uncached rather than fail the read.
		return value, nil
	}
	for i, t := range tags {
		if v, ok := before[t]; ok {
			versions[i] = v
		}
	}
	c.store(key, &Entry{Value: value, Tags: tags, Versions: versions}, gen)
	return value, nil
}

// Mutate runs fn and, only if it succeeds, invalidates the tags it returns.
// A failed mutation leaves the cache exactly as it was. Once fn has succeeded
// the change is committed, so its result is returned even if the invalidation
// fails; that failure is logged and passed to the OnInvalidateFailure hooks.
func Mutate[T any](ctx context.Context, c *Cache, fn func(ctx context.Context) (T, []Tag, error)) (T, error) {
	value, tags, err := fn(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	if err := c.Invalidate(ctx, tags...); err != nil {
		c.logger.Error("invalidation failed after committed mutation",
			slog.Any("tags", tags),
			slog.String("error", err.Error()),
		)
		c.mu.Lock()
		hooks := slices.Clone(c.failHooks)
		c.mu.Unlock()
		for _, fn := range hooks {
			fn(ctx, tags, err)
		}
	}
	return value, nil
}

// Peek returns whatever is cached under key, fresh or not
func Peek[T any](c *Cache, key string) (T, bool) {
	var zero T
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.items[key]
	if !ok {
		return zero, false
	}
	v, ok := e.Value.(T)
	return v, ok
}

// Stale reports whether the entry under key is missing, expired or was
// recorded under outdated tag versions. When the versions cannot be read the
// entry is reported stale along with the error.
func (c *Cache) Stale(ctx context.Context, key string) (bool, error) {
	_, ok, err := c.fresh(ctx, key)
	return !ok, err
}

func (c *Cache) fresh(ctx context.Context, key string) (interface{}, bool, error) {
	c.mu.Lock()
	e, ok := c.items[key]
	c.mu.Unlock()
	if !ok || e.expired(time.Now()) {
		return nil, false, nil
	}

	current, err := c.versions.Versions(ctx, e.Tags)
	if err != nil {
		return nil, false, err
	}
	if !slices.Equal(current, e.Versions) {
		return nil, false, nil
	}
	return e.Value, true, nil
}

func (c *Cache) entryTags(key string) []Tag {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.items[key]; ok {
		return slices.Clone(e.Tags)
	}
	return nil
}

func (c *Cache) currentGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func (c *Cache) store(key string, e *Entry, gen uint64) {
	if c.ttl > 0 {
		e.ExpiresAt = time.Now().Add(c.ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	if old, ok := c.items[key]; ok {
		c.unlink(key, old.Tags)
	}
	c.items[key] = e
	for _, t := range e.Tags {
		keys, ok := c.subscribers[t]
		if !ok {
			keys = map[string]struct{}{}
			c.subscribers[t] = keys
		}
		keys[key] = struct{}{}
	}
}

func (c *Cache) unlink(key string, tags []Tag) {
	for _, t := range tags {
		if keys, ok := c.subscribers[t]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(c.subscribers, t)
			}
		}
	}
}

// Invalidate bumps the versions of tags and notifies watchers of every entry
// that depends on them. If the bump fails the local entries depending on tags
// are dropped before the error is returned.
func (c *Cache) Invalidate(ctx context.Context, tags ...Tag) error {
	tags = dedupe(tags)
	if len(tags) == 0 {
		return nil
	}
	if err := c.versions.Bump(ctx, tags); err != nil {
		c.drop(tags)
		return err
	}

	c.mu.Lock()
	c.generation++
	var notify []chan struct{}
	for _, t := range tags {
		for key := range c.subscribers[t] {
			for ch := range c.watchers[key] {
				notify = append(notify, ch)
			}
		}
	}
	hooks := slices.Clone(c.hooks)
	c.mu.Unlock()

	for _, ch := range notify {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	for _, fn := range hooks {
		fn(ctx, tags)
	}
	return nil
}

func (c *Cache) drop(tags []Tag) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	var keys []string
	for _, t := range tags {
		for key := range c.subscribers[t] {
			keys = append(keys, key)
		}
	}
	for _, key := range keys {
		if e, ok := c.items[key]; ok {
			c.unlink(key, e.Tags)
			delete(c.items, key)
		}
	}
}

// Subscribe returns a channel that receives a signal whenever a tag the entry
// under key depends on is invalidated, and a function that cancels the
// subscription. Signals are coalesced.
func (c *Cache) Subscribe(key string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	c.mu.Lock()
	set, ok := c.watchers[key]
	if !ok {
		set = map[chan struct{}]struct{}{}
		c.watchers[key] = set
	}
	set[ch] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.watchers[key], ch)
			if len(c.watchers[key]) == 0 {
				delete(c.watchers, key)
			}
		})
	}
}

// Delete removes a key from the cache
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.items[key]; ok {
		c.unlink(key, e.Tags)
		delete(c.items, key)
	}
}

// Clear removes all items from the cache
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = map[string]*Entry{}
	c.subscribers = map[Tag]map[string]struct{}{}
}

// Len returns the number of cached entries, fresh or stale
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func dedupe(tags []Tag) []Tag {
	seen := make(map[Tag]struct{}, len(tags))
	out := make([]Tag, 0, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
