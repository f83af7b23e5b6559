package embedding

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEngine struct {
	calls int
	fail  bool
	vec   []float32
}

func (e *countingEngine) Embed(_ context.Context, _ string, _ Task) ([]float32, error) {
	e.calls++
	if e.fail {
		return nil, errors.New("quota exceeded")
	}
	return e.vec, nil
}

func (e *countingEngine) Dimensions() int { return len(e.vec) }
func (e *countingEngine) Name() string    { return "counting" }

func newTestLimiter() *RateLimiter {
	l := NewRateLimiter(time.Millisecond)
	l.sleep = func(time.Duration) {}
	return l
}

func TestCachedEngineRoundTrip(t *testing.T) {
	engine := &countingEngine{vec: []float32{0.1, 0.2, 0.3}}
	path := filepath.Join(t.TempDir(), "cache.json")
	cached := NewCachedEngine(engine, newTestLimiter(), path)

	first, err := cached.Embed(context.Background(), "Find the roots", TaskDocument)
	require.NoError(t, err)
	second, err := cached.Embed(context.Background(), "Find the roots", TaskDocument)
	require.NoError(t, err)

	assert.Equal(t, 1, engine.calls, "second call must be a cache hit")
	assert.Equal(t, first, second)
}

func TestCachedEngineNormalizesKey(t *testing.T) {
	engine := &countingEngine{vec: []float32{1}}
	path := filepath.Join(t.TempDir(), "cache.json")
	cached := NewCachedEngine(engine, newTestLimiter(), path)

	_, err := cached.Embed(context.Background(), "  Quadratic Equations  ", TaskDocument)
	require.NoError(t, err)
	_, err = cached.Embed(context.Background(), "quadratic equations", TaskQuery)
	require.NoError(t, err)

	assert.Equal(t, 1, engine.calls, "case and whitespace variants share one key")
}

func TestCachedEngineFailureNotCached(t *testing.T) {
	engine := &countingEngine{fail: true}
	path := filepath.Join(t.TempDir(), "cache.json")
	cached := NewCachedEngine(engine, newTestLimiter(), path)

	vec, err := cached.Embed(context.Background(), "problem", TaskQuery)
	require.NoError(t, err)
	assert.Empty(t, vec, "failure degrades to an empty vector")

	// A later attempt must reach the engine again.
	engine.fail = false
	engine.vec = []float32{0.5}
	vec, err = cached.Embed(context.Background(), "problem", TaskQuery)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5}, vec)
	assert.Equal(t, 2, engine.calls)
}

func TestCachedEnginePersistsAcrossInstances(t *testing.T) {
	engine := &countingEngine{vec: []float32{0.7, 0.8}}
	path := filepath.Join(t.TempDir(), "cache.json")

	first := NewCachedEngine(engine, newTestLimiter(), path)
	_, err := first.Embed(context.Background(), "persist me", TaskDocument)
	require.NoError(t, err)

	second := NewCachedEngine(engine, newTestLimiter(), path)
	vec, err := second.Embed(context.Background(), "persist me", TaskDocument)
	require.NoError(t, err)

	assert.Equal(t, []float32{0.7, 0.8}, vec)
	assert.Equal(t, 1, engine.calls, "fresh instance reloads the persisted cache")
}

func TestRateLimiterEnforcesInterval(t *testing.T) {
	var slept time.Duration
	l := NewRateLimiter(100 * time.Millisecond)

	clock := time.Unix(0, 0)
	l.now = func() time.Time { return clock }
	l.sleep = func(d time.Duration) { slept += d }

	l.Wait() // first call never sleeps
	assert.Equal(t, time.Duration(0), slept)

	clock = clock.Add(30 * time.Millisecond)
	l.Wait()
	assert.Equal(t, 70*time.Millisecond, slept)

	clock = clock.Add(200 * time.Millisecond)
	l.Wait()
	assert.Equal(t, 70*time.Millisecond, slept, "no sleep once interval has elapsed")
}
