package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewMarketPriceNormalizes(t *testing.T) {
	// 0.7 + 0.5 = 1.2 → renormaliza a 0.583/0.417
	p := NewMarketPrice("m", 0.7, 0.5, 0, 0, true, time.Now())
	assert.InDelta(t, 1.0, p.YesPrice+p.NoPrice, 1e-9)
	assert.InDelta(t, 0.7/1.2, p.YesPrice, 1e-9)

	// ambos cero → 0.5/0.5
	zero := NewMarketPrice("m", 0, 0, 0, 0, true, time.Now())
	assert.InDelta(t, 0.5, zero.YesPrice, 1e-9)
	assert.InDelta(t, 0.5, zero.NoPrice, 1e-9)
}

func TestSidePrice(t *testing.T) {
	p := NewMarketPrice("m", 0.6, 0.4, 0, 0, true, time.Now())
	assert.InDelta(t, 0.6, p.SidePrice(BuyYes), 1e-9)
	assert.InDelta(t, 0.4, p.SidePrice(BuyNo), 1e-9)
}

func TestResolved(t *testing.T) {
	assert.True(t, NewMarketPrice("m", 0.995, 0.005, 0, 0, true, time.Now()).Resolved())
	assert.True(t, NewMarketPrice("m", 0.005, 0.995, 0, 0, true, time.Now()).Resolved())
	assert.False(t, NewMarketPrice("m", 0.6, 0.4, 0, 0, true, time.Now()).Resolved())
}

func TestCatalogSlugs(t *testing.T) {
	cat := Catalog{
		Markets: []Market{{Slug: "a"}},
		KeywordMarkets: map[string][]string{
			"kw": {"a", "b"},
		},
		CategoryMarkets: map[string][]string{
			"cat": {"c"},
		},
	}
	assert.ElementsMatch(t, []string{"a", "b", "c"}, cat.Slugs())
}

func TestSignalExpectedReturn(t *testing.T) {
	s := Signal{CurrentPrice: 0.50, ExpectedPrice: 0.565}
	assert.InDelta(t, 0.13, s.ExpectedReturn(), 1e-9)

	zero := Signal{CurrentPrice: 0, ExpectedPrice: 0.5}
	assert.Zero(t, zero.ExpectedReturn())
}
