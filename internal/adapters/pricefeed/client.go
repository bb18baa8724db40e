package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

const (
	defaultGammaBase = "https://gamma-api.polymarket.com"

	// Gamma /markets: 300/10s documentado → 60% → 18/s
	gammaRatePerSec = 18

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Client es el HTTP client del feed de precios con rate limiting y retries.
// El limiter es estado propio del cliente, construido una vez por proceso,
// nunca una tabla global del paquete.
type Client struct {
	http    *http.Client
	base    string
	limiter *rate.Limiter
}

// NewClient crea un Client contra el base URL dado.
// Si base está vacío usa el URL de producción.
func NewClient(base string) *Client {
	if base == "" {
		base = defaultGammaBase
	}
	return &Client{
		http:    &http.Client{Timeout: 10 * time.Second},
		base:    base,
		limiter: rate.NewLimiter(gammaRatePerSec, 10),
	}
}

// gammaMarket es la respuesta cruda del API para un mercado.
// Los precios llegan como un array JSON codificado en string.
type gammaMarket struct {
	Slug          string `json:"slug"`
	OutcomePrices string `json:"outcomePrices"`
	Volume        string `json:"volumeNum,omitempty"`
	Liquidity     string `json:"liquidityNum,omitempty"`
	Active        bool   `json:"active"`
	Closed        bool   `json:"closed"`
}

// FetchPrice obtiene el precio actual de un mercado por slug.
func (c *Client) FetchPrice(ctx context.Context, slug string) (domain.MarketPrice, error) {
	endpoint := fmt.Sprintf("%s/markets?slug=%s&limit=1", c.base, url.QueryEscape(slug))

	var resp []gammaMarket
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return domain.MarketPrice{}, fmt.Errorf("pricefeed.FetchPrice %s: %w", slug, err)
	}
	if len(resp) == 0 {
		return domain.MarketPrice{}, fmt.Errorf("pricefeed.FetchPrice %s: market not found", slug)
	}
	return parseMarket(slug, resp[0])
}

// parseMarket convierte la respuesta cruda en un domain.MarketPrice
// normalizado. outcomePrices viene como `"[\"0.65\", \"0.35\"]"`.
func parseMarket(slug string, gm gammaMarket) (domain.MarketPrice, error) {
	var raw []string
	if err := json.Unmarshal([]byte(gm.OutcomePrices), &raw); err != nil {
		return domain.MarketPrice{}, fmt.Errorf("pricefeed.parseMarket %s: outcome prices: %w", slug, err)
	}
	if len(raw) < 2 {
		return domain.MarketPrice{}, fmt.Errorf("pricefeed.parseMarket %s: expected 2 outcome prices, got %d", slug, len(raw))
	}

	yes, err := strconv.ParseFloat(raw[0], 64)
	if err != nil {
		return domain.MarketPrice{}, fmt.Errorf("pricefeed.parseMarket %s: yes price %q: %w", slug, raw[0], err)
	}
	no, err := strconv.ParseFloat(raw[1], 64)
	if err != nil {
		return domain.MarketPrice{}, fmt.Errorf("pricefeed.parseMarket %s: no price %q: %w", slug, raw[1], err)
	}

	volume, _ := strconv.ParseFloat(gm.Volume, 64)
	liquidity, _ := strconv.ParseFloat(gm.Liquidity, 64)

	return domain.NewMarketPrice(
		slug, yes, no, volume, liquidity,
		gm.Active && !gm.Closed,
		time.Now().UTC(),
	), nil
}

// get hace un GET con rate limiting y retries con backoff exponencial.
func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			slog.Warn("pricefeed: rate limited by API", "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep espera con backoff exponencial, respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
