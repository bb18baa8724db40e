package pricefeed

import (
	"sync"
	"time"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

// PriceCache es una caché de precios con TTL. Estado propio del provider,
// construida una vez por proceso y pasada por referencia.
type PriceCache struct {
	ttl     time.Duration
	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	price    domain.MarketPrice
	cachedAt time.Time
}

// NewPriceCache crea una caché con el TTL dado.
func NewPriceCache(ttl time.Duration) *PriceCache {
	return &PriceCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// Get devuelve el precio cacheado si sigue fresco.
func (c *PriceCache) Get(marketID string, now time.Time) (domain.MarketPrice, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[marketID]
	if !ok || now.Sub(entry.cachedAt) > c.ttl {
		return domain.MarketPrice{}, false
	}
	return entry.price, true
}

// Put guarda un precio en la caché.
func (c *PriceCache) Put(price domain.MarketPrice, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[price.MarketID] = cacheEntry{price: price, cachedAt: now}
}

// Len devuelve el número de entradas (frescas o no).
func (c *PriceCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
