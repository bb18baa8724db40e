package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

func openTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func buildPortfolio(t *testing.T) *domain.Portfolio {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	pf := domain.NewPortfolio(1000, domain.DefaultLimits(), now)

	_, err := pf.Open("p1", "m1", domain.BuyYes, 100, 0.50, "s1", 0.8, now.Add(time.Minute))
	require.NoError(t, err)
	_, err = pf.Open("p2", "m2", domain.BuyNo, 50, 0.25, "s2", 0.7, now.Add(2*time.Minute))
	require.NoError(t, err)
	_, ok := pf.Close("r1", "m2", 0.30, domain.CloseTakeProfit, now.Add(time.Hour))
	require.True(t, ok)
	return pf
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()
	pf := buildPortfolio(t)

	require.NoError(t, s.SavePortfolio(ctx, pf.Snapshot()))

	snap, ok, err := s.LoadPortfolio(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	restored, err := domain.Restore(snap)
	require.NoError(t, err)

	// el resumen con los mismos precios tiene que ser idéntico tras el reload
	prices := map[string]float64{"m1": 0.55}
	assert.Equal(t, pf.Summarize(prices), restored.Summarize(prices))
	assert.Equal(t, pf.Positions(), restored.Positions())
	assert.Equal(t, pf.History(), restored.History())
	assert.True(t, pf.CreatedAt().Equal(restored.CreatedAt()))
	assert.Equal(t, pf.Limits(), restored.Limits())
}

func TestLoadPortfolioEmpty(t *testing.T) {
	s := openTestStorage(t)

	_, ok, err := s.LoadPortfolio(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveReplacesSnapshot(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()
	pf := buildPortfolio(t)

	require.NoError(t, s.SavePortfolio(ctx, pf.Snapshot()))

	// cierra la posición restante y vuelve a guardar: el snapshot en disco
	// debe reflejar el nuevo estado, no acumular posiciones viejas
	_, ok := pf.Close("r2", "m1", 0.60, domain.CloseManual, time.Now().UTC())
	require.True(t, ok)
	require.NoError(t, s.SavePortfolio(ctx, pf.Snapshot()))

	snap, found, err := s.LoadPortfolio(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Empty(t, snap.Positions)
	assert.Len(t, snap.History, 2)
	assert.InDelta(t, pf.Balance(), snap.Balance, 1e-9)
}

func TestLogDecision(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()

	dec := domain.TradingDecision{
		Signal: domain.Signal{
			MarketID:      "m1",
			EventID:       "e1",
			Direction:     domain.BuyYes,
			Confidence:    0.8,
			CurrentPrice:  0.50,
			ExpectedPrice: 0.565,
		},
		ShouldTrade:    true,
		PositionSize:   71.13,
		RiskScore:      0.06,
		ExpectedReturn: 0.13,
		Reasoning:      "execute: confidence 0.80",
		EvaluatedAt:    time.Now().UTC(),
	}

	require.NoError(t, s.LogDecision(ctx, dec))
	require.NoError(t, s.LogDecision(ctx, dec))

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM decisions`).Scan(&count))
	assert.Equal(t, 2, count)
}
