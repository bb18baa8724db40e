package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

const sampleCatalog = `
markets:
  - slug: fed-rate-cut-march
    question: "Will the Fed cut rates in March?"
    aliases: ["fed cut", "rate cut march"]
  - slug: btc-100k-2026
    question: "Will Bitcoin reach $100k in 2026?"

keywords:
  Fed: [fed-rate-cut-march]
  bitcoin: [btc-100k-2026]

categories:
  economics: [fed-rate-cut-march]
  crypto: [btc-100k-2026]

direction_hints:
  fed-rate-cut-march:
    Cut: bullish
    hike: bearish
`

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "markets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewYAMLProviderLoadsCatalog(t *testing.T) {
	path := writeCatalog(t, sampleCatalog)

	p, err := NewYAMLProvider(path, time.Minute)
	require.NoError(t, err)

	cat, err := p.Catalog(context.Background())
	require.NoError(t, err)
	assert.Len(t, cat.Markets, 2)
	assert.ElementsMatch(t, []string{"fed cut", "rate cut march"}, cat.AliasesFor("fed-rate-cut-march"))
	assert.Equal(t, []string{"fed-rate-cut-march"}, cat.CategoryMarkets["economics"])
}

func TestNewYAMLProviderNormalizesKeys(t *testing.T) {
	path := writeCatalog(t, sampleCatalog)

	p, err := NewYAMLProvider(path, time.Minute)
	require.NoError(t, err)

	cat, err := p.Catalog(context.Background())
	require.NoError(t, err)
	assert.Contains(t, cat.KeywordMarkets, "fed")
	assert.NotContains(t, cat.KeywordMarkets, "Fed")
	assert.Equal(t, domain.HintBullish, cat.DirectionHints["fed-rate-cut-march"]["cut"])
}

func TestNewYAMLProviderRejectsMissingFile(t *testing.T) {
	_, err := NewYAMLProvider(filepath.Join(t.TempDir(), "nope.yaml"), time.Minute)
	assert.Error(t, err)
}

func TestNewYAMLProviderValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"unknown keyword market", "markets:\n  - slug: a\nkeywords:\n  x: [b]\n"},
		{"unknown category market", "markets:\n  - slug: a\ncategories:\n  econ: [b]\n"},
		{"unknown hint market", "markets:\n  - slug: a\ndirection_hints:\n  b:\n    x: bullish\n"},
		{"invalid hint value", "markets:\n  - slug: a\ndirection_hints:\n  a:\n    x: sideways\n"},
		{"duplicate slug", "markets:\n  - slug: a\n  - slug: a\n"},
		{"empty slug", "markets:\n  - question: q\n"},
		{"bad yaml", "markets: [\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewYAMLProvider(writeCatalog(t, tc.content), time.Minute)
			assert.Error(t, err)
		})
	}
}

func TestCatalogServesCacheWithinTTL(t *testing.T) {
	path := writeCatalog(t, sampleCatalog)
	p, err := NewYAMLProvider(path, time.Minute)
	require.NoError(t, err)

	now := time.Now()
	p.now = func() time.Time { return now }
	_, err = p.Catalog(context.Background())
	require.NoError(t, err)

	// archivo reescrito pero TTL vigente: se sirve la copia en memoria
	require.NoError(t, os.WriteFile(path, []byte("markets:\n  - slug: only-one\n"), 0o644))
	now = now.Add(30 * time.Second)
	cat, err := p.Catalog(context.Background())
	require.NoError(t, err)
	assert.Len(t, cat.Markets, 2)
}

func TestCatalogReloadsAfterTTL(t *testing.T) {
	path := writeCatalog(t, sampleCatalog)
	p, err := NewYAMLProvider(path, time.Minute)
	require.NoError(t, err)

	now := time.Now()
	p.now = func() time.Time { return now }
	_, err = p.Catalog(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("markets:\n  - slug: only-one\n"), 0o644))
	// forzar mtime distinto: algunos filesystems tienen granularidad de 1s
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	now = now.Add(2 * time.Minute)
	cat, err := p.Catalog(context.Background())
	require.NoError(t, err)
	require.Len(t, cat.Markets, 1)
	assert.Equal(t, "only-one", cat.Markets[0].Slug)
}

func TestCatalogKeepsOldCopyOnBrokenRewrite(t *testing.T) {
	path := writeCatalog(t, sampleCatalog)
	p, err := NewYAMLProvider(path, time.Minute)
	require.NoError(t, err)

	now := time.Now()
	p.now = func() time.Time { return now }
	_, err = p.Catalog(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("markets: ["), 0o644))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	now = now.Add(2 * time.Minute)
	cat, err := p.Catalog(context.Background())
	require.NoError(t, err)
	assert.Len(t, cat.Markets, 2)
}
