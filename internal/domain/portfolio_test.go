package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestOpenDebitsBalance(t *testing.T) {
	pf := NewPortfolio(1000, DefaultLimits(), now)

	pos, err := pf.Open("p1", "market-a", BuyYes, 100, 0.50, "sig-1", 0.8, now)

	require.NoError(t, err)
	assert.InDelta(t, 900, pf.Balance(), 1e-9)
	assert.InDelta(t, 200, pos.Shares, 1e-9) // 100 / 0.50
	assert.InDelta(t, 100, pos.CostBasis(), 1e-9)
	assert.Equal(t, 1, pf.OpenPositionCount())
}

func TestOpenValidation(t *testing.T) {
	pf := NewPortfolio(1000, DefaultLimits(), now)

	_, err := pf.Open("p1", "m", Hold, 100, 0.5, "s", 0.8, now)
	assert.Error(t, err, "HOLD is not tradeable")

	_, err = pf.Open("p1", "m", BuyYes, -5, 0.5, "s", 0.8, now)
	assert.Error(t, err, "negative amount")

	_, err = pf.Open("p1", "m", BuyYes, 100, 0, "s", 0.8, now)
	assert.Error(t, err, "price 0 out of (0,1]")

	_, err = pf.Open("p1", "m", BuyYes, 100, 1.5, "s", 0.8, now)
	assert.Error(t, err, "price above 1")

	// amount 50 <= MaxPositionSize 100 pero mayor que cero: pasa
	_, err = pf.Open("p1", "m", BuyYes, 50, 0.5, "s", 0.8, now)
	assert.NoError(t, err)
}

func TestOpenRejectsDuplicate(t *testing.T) {
	pf := NewPortfolio(1000, DefaultLimits(), now)
	_, err := pf.Open("p1", "m", BuyYes, 50, 0.5, "s", 0.8, now)
	require.NoError(t, err)

	_, err = pf.Open("p2", "m", BuyNo, 50, 0.5, "s", 0.8, now)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicatePosition)
	assert.Equal(t, 1, pf.OpenPositionCount())
}

func TestOpenRejectsOverCap(t *testing.T) {
	pf := NewPortfolio(1000, Limits{MaxOpenPositions: 2, MaxPositionPct: 0.10}, now)
	for _, m := range []string{"a", "b"} {
		_, err := pf.Open(m, m, BuyYes, 50, 0.5, "s", 0.8, now)
		require.NoError(t, err)
	}

	_, err := pf.Open("p3", "c", BuyYes, 50, 0.5, "s", 0.8, now)
	assert.Error(t, err)
}

func TestOpenRejectsOversizedPosition(t *testing.T) {
	pf := NewPortfolio(1000, DefaultLimits(), now)

	// 10% de 1000 = 100 máximo por posición
	_, err := pf.Open("p1", "m", BuyYes, 150, 0.5, "s", 0.8, now)
	assert.Error(t, err)
}

func TestCloseCreditsProceedsOnce(t *testing.T) {
	pf := NewPortfolio(1000, DefaultLimits(), now)
	_, err := pf.Open("p1", "m", BuyYes, 100, 0.50, "s", 0.8, now)
	require.NoError(t, err)

	// 200 shares × 0.60 = 120 proceeds, pnl +20
	rec, ok := pf.Close("r1", "m", 0.60, CloseTakeProfit, now.Add(time.Hour))
	require.True(t, ok)
	assert.InDelta(t, 20, rec.PnL, 1e-9)
	assert.InDelta(t, 0.20, rec.ReturnPct, 1e-9)
	assert.InDelta(t, 1020, pf.Balance(), 1e-9)
	assert.Equal(t, 0, pf.OpenPositionCount())

	// segundo close del mismo mercado: no-op, el balance no se toca
	_, ok = pf.Close("r2", "m", 0.60, CloseManual, now.Add(2*time.Hour))
	assert.False(t, ok)
	assert.InDelta(t, 1020, pf.Balance(), 1e-9)
	assert.Len(t, pf.History(), 1)
}

func TestTotalValueFallsBackToEntryPrice(t *testing.T) {
	pf := NewPortfolio(1000, DefaultLimits(), now)
	_, err := pf.Open("p1", "m", BuyYes, 100, 0.50, "s", 0.8, now)
	require.NoError(t, err)

	// sin precio: la posición se valora a entry → total constante
	assert.InDelta(t, 1000, pf.TotalValue(nil), 1e-9)

	// con precio 0.60: 900 + 200×0.60 = 1020
	assert.InDelta(t, 1020, pf.TotalValue(map[string]float64{"m": 0.60}), 1e-9)
}

func TestSummarizeDoesNotMutate(t *testing.T) {
	pf := NewPortfolio(1000, DefaultLimits(), now)
	_, err := pf.Open("p1", "m", BuyYes, 100, 0.50, "s", 0.8, now)
	require.NoError(t, err)
	_, ok := pf.Close("r1", "m", 0.45, CloseStopLoss, now.Add(time.Hour))
	require.True(t, ok)

	before := pf.Summarize(nil)
	again := pf.Summarize(nil)

	assert.Equal(t, before, again)
	assert.Equal(t, 1, before.TotalTrades)
	assert.Equal(t, 0, before.WinningTrades)
	assert.InDelta(t, -10, before.RealizedPnL, 1e-9)
}

func TestSummarizeRatiosAreFractions(t *testing.T) {
	pf := NewPortfolio(1000, DefaultLimits(), now)
	_, err := pf.Open("p1", "m", BuyYes, 100, 0.50, "s", 0.8, now)
	require.NoError(t, err)
	// 200 shares × 0.60 = 120 → +20 realizado sobre 1000 inicial
	_, ok := pf.Close("r1", "m", 0.60, CloseTakeProfit, now.Add(time.Hour))
	require.True(t, ok)

	s := pf.Summarize(nil)

	// fracciones, nunca pre-escaladas a porcentaje
	assert.InDelta(t, 0.02, s.ReturnPct, 1e-9)
	assert.InDelta(t, 1.0, s.WinRate, 1e-9)
}

func TestTradeDurationHours(t *testing.T) {
	rec := TradeRecord{EntryTime: now, ExitTime: now.Add(90 * time.Minute)}
	assert.InDelta(t, 1.5, rec.DurationHours(), 1e-9)
}

// Conservación: balance + Σ(cost basis abiertos) == inicial + pnl realizado,
// para cualquier secuencia aleatoria de opens y closes.
func TestConservationInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	pf := NewPortfolio(10000, Limits{MaxOpenPositions: 5, MaxPositionPct: 0.5}, now)
	markets := []string{"a", "b", "c", "d", "e", "f", "g"}

	check := func(step int) {
		openBasis := 0.0
		for _, pos := range pf.Positions() {
			openBasis += pos.CostBasis()
		}
		expected := pf.InitialBalance() + pf.RealizedPnL()
		assert.InDeltaf(t, expected, pf.Balance()+openBasis, 1e-6, "step %d", step)
	}

	for i := 0; i < 500; i++ {
		market := markets[rng.Intn(len(markets))]
		ts := now.Add(time.Duration(i) * time.Minute)

		if rng.Float64() < 0.5 {
			amount := 1 + rng.Float64()*pf.Balance()*0.1
			price := 0.05 + rng.Float64()*0.9
			dir := BuyYes
			if rng.Float64() < 0.5 {
				dir = BuyNo
			}
			// los rechazos por duplicado, cupo o tamaño son resultados válidos
			_, _ = pf.Open(fmt.Sprintf("p%d", i), market, dir, amount, price, "s", 0.8, ts)
		} else {
			exit := 0.01 + rng.Float64()*0.98
			_, _ = pf.Close(fmt.Sprintf("r%d", i), market, exit, CloseManual, ts)
		}

		check(i)
		assert.GreaterOrEqual(t, pf.Balance(), -1e-9)
		assert.LessOrEqual(t, pf.OpenPositionCount(), 5)
	}
}

// Como máximo una posición abierta por mercado tras cualquier secuencia.
func TestOnePositionPerMarket(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	pf := NewPortfolio(10000, DefaultLimits(), now)
	markets := []string{"x", "y", "z"}

	for i := 0; i < 200; i++ {
		market := markets[rng.Intn(len(markets))]
		if rng.Float64() < 0.6 {
			_, _ = pf.Open(fmt.Sprintf("p%d", i), market, BuyYes, 10+rng.Float64()*50, 0.5, "s", 0.8, now)
		} else {
			_, _ = pf.Close(fmt.Sprintf("r%d", i), market, 0.5, CloseManual, now)
		}

		seen := make(map[string]bool)
		for _, pos := range pf.Positions() {
			require.Falsef(t, seen[pos.MarketID], "duplicate open position in %s", pos.MarketID)
			seen[pos.MarketID] = true
		}
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	pf := NewPortfolio(1000, DefaultLimits(), now)
	_, err := pf.Open("p1", "m1", BuyYes, 100, 0.50, "s1", 0.8, now.Add(time.Minute))
	require.NoError(t, err)
	_, err = pf.Open("p2", "m2", BuyNo, 50, 0.25, "s2", 0.7, now.Add(2*time.Minute))
	require.NoError(t, err)
	_, ok := pf.Close("r1", "m2", 0.30, CloseTakeProfit, now.Add(time.Hour))
	require.True(t, ok)

	// round-trip vía JSON: todos los campos, timestamps incluidos
	raw, err := json.Marshal(pf.Snapshot())
	require.NoError(t, err)
	var snap Snapshot
	require.NoError(t, json.Unmarshal(raw, &snap))

	restored, err := Restore(snap)
	require.NoError(t, err)

	prices := map[string]float64{"m1": 0.55}
	assert.Equal(t, pf.Summarize(prices), restored.Summarize(prices))
	assert.Equal(t, pf.Positions(), restored.Positions())
	assert.Equal(t, pf.History(), restored.History())
	assert.True(t, pf.CreatedAt().Equal(restored.CreatedAt()))
}

func TestRestoreRejectsDuplicatePositions(t *testing.T) {
	snap := Snapshot{
		Balance:        100,
		InitialBalance: 1000,
		CreatedAt:      now,
		Limits:         DefaultLimits(),
		Positions: []Position{
			{ID: "p1", MarketID: "m", Direction: BuyYes, Shares: 10, EntryPrice: 0.5, EntryTime: now},
			{ID: "p2", MarketID: "m", Direction: BuyNo, Shares: 10, EntryPrice: 0.5, EntryTime: now},
		},
	}

	_, err := Restore(snap)
	assert.Error(t, err)
}

func TestCloneIsIndependent(t *testing.T) {
	pf := NewPortfolio(1000, DefaultLimits(), now)
	_, err := pf.Open("p1", "m1", BuyYes, 100, 0.50, "s1", 0.8, now)
	require.NoError(t, err)

	clone := pf.Clone()
	_, err = clone.Open("p2", "m2", BuyYes, 50, 0.50, "s2", 0.7, now)
	require.NoError(t, err)
	_, ok := clone.Close("r1", "m1", 0.60, CloseManual, now)
	require.True(t, ok)

	// el original no ve las mutaciones del clon
	assert.Equal(t, 1, pf.OpenPositionCount())
	assert.True(t, pf.HasPosition("m1"))
	assert.False(t, pf.HasPosition("m2"))
	assert.InDelta(t, 900, pf.Balance(), 1e-9)
	assert.Empty(t, pf.History())
}

func TestUnrealizedReturn(t *testing.T) {
	pos := Position{Shares: 200, EntryPrice: 0.40}

	// 0.47/0.40 - 1 = +17.5%
	assert.InDelta(t, 0.175, pos.UnrealizedReturn(0.47), 1e-9)
	assert.InDelta(t, -0.25, pos.UnrealizedReturn(0.30), 1e-9)
	assert.True(t, math.Abs(pos.UnrealizedReturn(0.40)) < 1e-12)
}
