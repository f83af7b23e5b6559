package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// CachedEngine wraps an Engine with a persistent content-addressed cache.
// The cache key is a hash of the trimmed, lower-cased text, so repeated
// requests for the same content hit the cache regardless of call site.
// Failed external calls return an empty vector and are not cached, which
// allows a retry on the next request.
type CachedEngine struct {
	engine  Engine
	limiter *RateLimiter
	path    string
	logger  *zap.Logger

	mu     sync.Mutex
	cache  map[string][]float32
	loaded bool
}

// CacheOption configures a CachedEngine.
type CacheOption func(*CachedEngine)

// WithLogger sets the logger for cache operations.
func WithLogger(logger *zap.Logger) CacheOption {
	return func(c *CachedEngine) {
		c.logger = logger
	}
}

// NewCachedEngine creates a caching wrapper around engine. The cache is
// persisted at path and reloaded once per process lifetime.
func NewCachedEngine(engine Engine, limiter *RateLimiter, path string, opts ...CacheOption) *CachedEngine {
	c := &CachedEngine{
		engine:  engine,
		limiter: limiter,
		path:    path,
		logger:  zap.NewNop(),
		cache:   make(map[string][]float32),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Embed returns the embedding for text, consulting the cache first.
// On a miss the underlying engine is invoked behind the rate limiter and the
// result is written to cache before being returned. An engine failure yields
// an empty vector.
func (c *CachedEngine) Embed(ctx context.Context, text string, task Task) ([]float32, error) {
	key := cacheKey(text)

	c.mu.Lock()
	c.loadLocked()
	if vec, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return vec, nil
	}
	c.mu.Unlock()

	c.limiter.Wait()
	vec, err := c.engine.Embed(ctx, text, task)
	if err != nil {
		c.logger.Warn("embedding call failed", zap.Error(err))
		return nil, nil
	}

	c.mu.Lock()
	c.cache[key] = vec
	c.saveLocked()
	c.mu.Unlock()

	return vec, nil
}

// Dimensions returns the dimensionality of the underlying engine.
func (c *CachedEngine) Dimensions() int {
	return c.engine.Dimensions()
}

// Name returns the underlying engine name with a cache marker.
func (c *CachedEngine) Name() string {
	return c.engine.Name() + " (cached)"
}

// Size returns the number of cached embeddings.
func (c *CachedEngine) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadLocked()
	return len(c.cache)
}

func cacheKey(text string) string {
	normalized := strings.ToLower(strings.TrimSpace(text))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func (c *CachedEngine) loadLocked() {
	if c.loaded {
		return
	}
	c.loaded = true

	data, err := os.ReadFile(c.path)
	if err != nil {
		return
	}
	if err := json.Unmarshal(data, &c.cache); err != nil {
		c.logger.Warn("could not load embedding cache", zap.Error(err))
		c.cache = make(map[string][]float32)
		return
	}
	c.logger.Info("loaded embedding cache", zap.Int("entries", len(c.cache)))
}

func (c *CachedEngine) saveLocked() {
	data, err := json.Marshal(c.cache)
	if err != nil {
		c.logger.Warn("could not marshal embedding cache", zap.Error(err))
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		c.logger.Warn("could not create cache directory", zap.Error(err))
		return
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		c.logger.Warn("could not save embedding cache", zap.Error(err))
	}
}
