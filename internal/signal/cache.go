package signal

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/sawpanic/rltrader/internal/artifacts"
	"github.com/sawpanic/rltrader/internal/metrics"
	"github.com/sawpanic/rltrader/internal/rl/inference"
)

// Loader builds an agent for a normalised symbol.
type Loader func(ctx context.Context, symbol string) (*inference.Agent, error)

// AgentCache keeps a bounded, expiring set of loaded agents. Concurrent
// misses for one symbol share a single load.
type AgentCache struct {
	lru     *expirable.LRU[string, *inference.Agent]
	group   singleflight.Group
	load    Loader
	metrics *metrics.Registry

	// gens is bumped by Invalidate; a load started under an older
	// generation is returned to its callers but never cached.
	mu   sync.Mutex
	gens map[string]uint64
}

// NewAgentCache loads agents from store.
func NewAgentCache(store artifacts.Store, size int, ttl time.Duration, m *metrics.Registry) *AgentCache {
	return NewAgentCacheWithLoader(func(ctx context.Context, symbol string) (*inference.Agent, error) {
		return inference.Load(ctx, store, symbol)
	}, size, ttl, m)
}

func NewAgentCacheWithLoader(load Loader, size int, ttl time.Duration, m *metrics.Registry) *AgentCache {
	if size <= 0 {
		size = 64
	}
	return &AgentCache{
		lru:     expirable.NewLRU[string, *inference.Agent](size, nil, ttl),
		load:    load,
		metrics: m,
		gens:    make(map[string]uint64),
	}
}

// Get returns the cached agent or loads it. Load errors are returned as is
// and nothing is cached for the symbol.
func (c *AgentCache) Get(ctx context.Context, symbol string) (*inference.Agent, error) {
	key, err := artifacts.NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if a, ok := c.lru.Get(key); ok {
		c.metrics.RecordCacheHit(metrics.CacheAgents)
		return a, nil
	}
	c.metrics.RecordCacheMiss(metrics.CacheAgents)

	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		if a, ok := c.lru.Get(key); ok {
			return a, nil
		}
		gen := c.generation(key)
		start := time.Now()
		// the load outlives any single caller that gives up
		a, err := c.load(context.WithoutCancel(ctx), key)
		if err != nil {
			return nil, err
		}
		if !c.addIfCurrent(key, gen, a) {
			log.Debug().Str("symbol", key).Msg("Agent invalidated during load, not cached")
			return a, nil
		}
		log.Info().Str("symbol", key).Dur("duration", time.Since(start)).Msg("Agent loaded")
		return a, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.Debug().Str("symbol", key).Msg("Agent load shared")
	}
	return v.(*inference.Agent), nil
}

// Invalidate drops the cached agent so the next Get reloads it, typically
// after retraining.
func (c *AgentCache) Invalidate(symbol string) {
	key, err := artifacts.NormalizeSymbol(symbol)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[key]++
	c.group.Forget(key)
	c.lru.Remove(key)
}

func (c *AgentCache) generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[key]
}

func (c *AgentCache) addIfCurrent(key string, gen uint64, a *inference.Agent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[key] != gen {
		return false
	}
	c.lru.Add(key, a)
	return true
}

func (c *AgentCache) Len() int { return c.lru.Len() }
