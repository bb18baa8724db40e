package pricefeed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMarket(t *testing.T) {
	gm := gammaMarket{
		Slug:          "fed-rate-cut",
		OutcomePrices: `["0.65", "0.35"]`,
		Volume:        "125000.5",
		Liquidity:     "40000",
		Active:        true,
	}

	price, err := parseMarket("fed-rate-cut", gm)

	require.NoError(t, err)
	assert.Equal(t, "fed-rate-cut", price.MarketID)
	assert.InDelta(t, 0.65, price.YesPrice, 1e-9)
	assert.InDelta(t, 0.35, price.NoPrice, 1e-9)
	assert.InDelta(t, 125000.5, price.Volume, 1e-9)
	assert.InDelta(t, 40000, price.Liquidity, 1e-9)
	assert.True(t, price.Active)
}

func TestParseMarketClosedIsInactive(t *testing.T) {
	gm := gammaMarket{OutcomePrices: `["0.99", "0.01"]`, Active: true, Closed: true}

	price, err := parseMarket("m", gm)

	require.NoError(t, err)
	assert.False(t, price.Active)
}

func TestParseMarketBadPrices(t *testing.T) {
	_, err := parseMarket("m", gammaMarket{OutcomePrices: `not json`})
	assert.Error(t, err)

	_, err = parseMarket("m", gammaMarket{OutcomePrices: `["0.5"]`})
	assert.Error(t, err)

	_, err = parseMarket("m", gammaMarket{OutcomePrices: `["abc", "0.5"]`})
	assert.Error(t, err)
}

func TestFetchPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "btc-100k", r.URL.Query().Get("slug"))
		json.NewEncoder(w).Encode([]gammaMarket{{
			Slug:          "btc-100k",
			OutcomePrices: `["0.42", "0.58"]`,
			Volume:        "9000",
			Liquidity:     "3000",
			Active:        true,
		}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	price, err := c.FetchPrice(context.Background(), "btc-100k")

	require.NoError(t, err)
	assert.InDelta(t, 0.42, price.YesPrice, 1e-9)
}

func TestFetchPriceNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.FetchPrice(context.Background(), "no-such-market")
	assert.Error(t, err)
}
