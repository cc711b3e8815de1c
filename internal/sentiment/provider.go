package sentiment

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
)

// Provider combines a fetcher and a scorer. Sentiment is advisory, so
// Score never fails: any fetch error is logged and reads as neutral.
type Provider struct {
	fetcher Fetcher
	scorer  Scorer
	cache   *expirable.LRU[string, float64]
	stats   CacheStats
}

// CacheStats receives score cache hits and misses.
type CacheStats interface {
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
}

const cacheName = "sentiment"

// WithCacheStats reports cache lookups to stats.
func (p *Provider) WithCacheStats(stats CacheStats) *Provider {
	p.stats = stats
	return p
}

// NewProvider caches scores for ttl; ttl <= 0 disables caching.
func NewProvider(fetcher Fetcher, scorer Scorer, ttl time.Duration) *Provider {
	p := &Provider{fetcher: fetcher, scorer: scorer}
	if ttl > 0 {
		p.cache = expirable.NewLRU[string, float64](256, nil, ttl)
	}
	return p
}

// Neutral returns a provider that always scores 0.
func Neutral() *Provider {
	return &Provider{}
}

func (p *Provider) Score(ctx context.Context, symbol string) float64 {
	if p == nil || p.fetcher == nil || p.scorer == nil {
		return 0
	}
	key := strings.ToUpper(symbol)
	if p.cache != nil {
		if v, ok := p.cache.Get(key); ok {
			if p.stats != nil {
				p.stats.RecordCacheHit(cacheName)
			}
			return v
		}
		if p.stats != nil {
			p.stats.RecordCacheMiss(cacheName)
		}
	}

	texts, err := p.fetcher.Headlines(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("symbol", key).Msg("Sentiment unavailable, using neutral score")
		return 0
	}
	score := p.scorer.Score(texts)
	if p.cache != nil {
		p.cache.Add(key, score)
	}
	log.Debug().Str("symbol", key).Int("texts", len(texts)).Float64("score", score).Msg("Sentiment scored")
	return score
}
