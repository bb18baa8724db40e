package pricefeed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

const (
	defaultWorkers      = 5
	defaultBatchTimeout = 15 * time.Second
	defaultCacheTTL     = 30 * time.Second
)

// fetcher es lo que el provider necesita del cliente HTTP.
type fetcher interface {
	FetchPrice(ctx context.Context, slug string) (domain.MarketPrice, error)
}

// Provider implementa ports.PriceProvider paralelizando los fetches con un
// pool acotado de workers y un timeout por batch. Los fallos individuales
// se toleran: el resultado es el subconjunto de precios que llegó a tiempo.
type Provider struct {
	client  fetcher
	cache   *PriceCache
	workers int
	timeout time.Duration
}

// ProviderConfig ajusta el paralelismo del provider.
type ProviderConfig struct {
	Workers      int
	BatchTimeout time.Duration
	CacheTTL     time.Duration
}

// NewProvider crea un Provider sobre el cliente dado.
func NewProvider(client fetcher, cfg ProviderConfig) *Provider {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = defaultBatchTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	return &Provider{
		client:  client,
		cache:   NewPriceCache(cfg.CacheTTL),
		workers: cfg.Workers,
		timeout: cfg.BatchTimeout,
	}
}

// Fetch devuelve los precios de los mercados pedidos. Puede devolver un
// subconjunto estricto: un mercado cuyo fetch falla o excede el timeout del
// batch simplemente no aparece en el mapa.
func (p *Provider) Fetch(ctx context.Context, marketIDs []string) (map[string]domain.MarketPrice, error) {
	now := time.Now()
	results := make(map[string]domain.MarketPrice, len(marketIDs))

	var misses []string
	for _, id := range marketIDs {
		if price, ok := p.cache.Get(id, now); ok {
			results[id] = price
		} else {
			misses = append(misses, id)
		}
	}
	if len(misses) == 0 {
		return results, nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	jobs := make(chan string)
	var mu sync.Mutex
	var wg sync.WaitGroup

	workers := min(p.workers, len(misses))
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for slug := range jobs {
				price, err := p.client.FetchPrice(ctx, slug)
				if err != nil {
					slog.Debug("pricefeed: fetch failed, skipping market", "market", slug, "err", err)
					continue
				}
				mu.Lock()
				results[slug] = price
				mu.Unlock()
				p.cache.Put(price, time.Now())
			}
		}()
	}

	for _, slug := range misses {
		select {
		case jobs <- slug:
		case <-ctx.Done():
			// timeout del batch: lo que no se encoló se trata como ausente
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()

	return results, nil
}
