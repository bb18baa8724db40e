package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/signalbot/internal/application/mapper"
	"github.com/alejandrodnm/signalbot/internal/application/signal"
	"github.com/alejandrodnm/signalbot/internal/application/strategy"
	"github.com/alejandrodnm/signalbot/internal/domain"
	"github.com/alejandrodnm/signalbot/internal/ports"
)

// Engine orquesta un ciclo completo del pipeline:
// exits → eventos → mapping → precios → señales → decisiones → aperturas.
//
// Todo el estado mutable (el portfolio) se toca solo desde RunOnce, que se
// invoca desde un único control loop. Si esto se paraleliza algún día, la
// mutación del portfolio tiene que serializarse: las comprobaciones de
// duplicado y de cupo son check-then-act.
type Engine struct {
	events  ports.EventSource
	prices  ports.PriceProvider
	catalog ports.CatalogProvider
	alerts  ports.AlertSink
	store   ports.Storage

	mapper  *mapper.Mapper
	gen     *signal.Generator
	strat   strategy.Strategy
	decider *Decider
	exits   *ExitMonitor

	portfolio *domain.Portfolio
	now       func() time.Time
}

// New wires the pipeline components together.
func New(
	events ports.EventSource,
	prices ports.PriceProvider,
	catalog ports.CatalogProvider,
	alerts ports.AlertSink,
	store ports.Storage,
	m *mapper.Mapper,
	gen *signal.Generator,
	strat strategy.Strategy,
	decider *Decider,
	exits *ExitMonitor,
	portfolio *domain.Portfolio,
) *Engine {
	return &Engine{
		events:    events,
		prices:    prices,
		catalog:   catalog,
		alerts:    alerts,
		store:     store,
		mapper:    m,
		gen:       gen,
		strat:     strat,
		decider:   decider,
		exits:     exits,
		portfolio: portfolio,
		now:       time.Now,
	}
}

// Portfolio expone el portfolio gestionado (solo para reporting).
func (e *Engine) Portfolio() *domain.Portfolio { return e.portfolio }

// CycleResult son los contadores agregados de un ciclo. El ciclo siempre
// completa y reporta estos contadores aunque items individuales fallen.
type CycleResult struct {
	EventsProcessed  int
	EventsRejected   int
	MatchesFound     int
	SignalsGenerated int
	Decisions        int
	PositionsOpened  int
	PositionsClosed  []domain.TradeRecord
	PricesMissing    int
	StartedAt        time.Time
	Elapsed          time.Duration
}

// RunOnce executes a single trading cycle. The exit sweep always runs before
// new-signal evaluation, so a position closed this cycle cannot be reopened
// in the same market until the next one.
func (e *Engine) RunOnce(ctx context.Context) (*CycleResult, error) {
	now := e.now()
	result := &CycleResult{StartedAt: now}
	defer func() {
		result.Elapsed = e.now().Sub(now)
		e.savePortfolio(ctx)
	}()

	closedNow := e.sweepExits(ctx, result, now)

	events, err := e.events.Next(ctx)
	if err != nil {
		// upstream no disponible: el ciclo completa con lo hecho hasta aquí
		slog.Warn("trader: event source unavailable", "err", err)
		return result, nil
	}

	cat, err := e.catalog.Catalog(ctx)
	if err != nil {
		slog.Warn("trader: catalog unavailable, skipping new signals", "err", err)
		return result, nil
	}

	signals := e.generateSignals(ctx, events, cat, closedNow, result, now)
	if len(signals) == 0 {
		return result, nil
	}

	decisions := e.decider.EvaluateBatch(signals, e.portfolio, now)
	result.Decisions = len(decisions)

	for _, dec := range decisions {
		if err := e.store.LogDecision(ctx, dec); err != nil {
			slog.Warn("trader: error logging decision", "market", dec.Signal.MarketID, "err", err)
		}
		if err := e.alerts.DecisionMade(ctx, dec); err != nil {
			slog.Warn("trader: error notifying decision", "err", err)
		}
		if !dec.ShouldTrade {
			slog.Debug("trader: signal skipped",
				"market", dec.Signal.MarketID, "reason", dec.Reasoning)
			continue
		}

		pos, err := e.decider.Execute(dec, e.portfolio, now)
		if err != nil {
			// aborta solo este trade, nunca el ciclo
			slog.Error("trader: trade execution failed",
				"market", dec.Signal.MarketID, "err", err)
			continue
		}
		result.PositionsOpened++
		slog.Info("trader: position opened",
			"market", pos.MarketID,
			"direction", pos.Direction,
			"size", fmt.Sprintf("$%.2f", pos.CostBasis()),
			"entry", fmt.Sprintf("%.3f", pos.EntryPrice),
			"confidence", fmt.Sprintf("%.2f", pos.Confidence),
		)
	}

	return result, nil
}

// sweepExits cierra posiciones que matchean alguna regla de salida antes de
// evaluar señales nuevas. Devuelve los mercados cerrados en este ciclo para
// que no se reabran hasta el siguiente.
func (e *Engine) sweepExits(ctx context.Context, result *CycleResult, now time.Time) map[string]bool {
	open := e.portfolio.Positions()
	if len(open) == 0 {
		return nil
	}

	marketIDs := make([]string, 0, len(open))
	for _, pos := range open {
		marketIDs = append(marketIDs, pos.MarketID)
	}

	prices, err := e.prices.Fetch(ctx, marketIDs)
	if err != nil {
		slog.Warn("trader: error fetching prices for exit sweep", "err", err)
		prices = nil // el sweep sigue: auto close usa entry price como fallback
	}

	closed := e.exits.Sweep(e.portfolio, prices, now)
	result.PositionsClosed = closed
	closedMarkets := make(map[string]bool, len(closed))
	for _, rec := range closed {
		closedMarkets[rec.MarketID] = true
		slog.Info("trader: position closed",
			"market", rec.MarketID,
			"reason", rec.Reason,
			"pnl", fmt.Sprintf("$%.2f", rec.PnL),
			"return", fmt.Sprintf("%+.1f%%", rec.ReturnPct*100),
		)
		if err := e.alerts.PositionClosed(ctx, rec); err != nil {
			slog.Warn("trader: error notifying close", "err", err)
		}
	}
	return closedMarkets
}

// generateSignals mapea eventos a mercados, trae precios y genera señales.
// Los matches sin precio se excluyen en silencio: fallo parcial esperado.
// Los mercados cerrados en este mismo ciclo no generan señal.
func (e *Engine) generateSignals(ctx context.Context, events []domain.Event, cat domain.Catalog, closedNow map[string]bool, result *CycleResult, now time.Time) []domain.Signal {
	type candidate struct {
		event domain.Event
		match domain.MarketMatch
	}

	var candidates []candidate
	slugSet := make(map[string]bool)

	for _, event := range events {
		if err := event.Validate(); err != nil {
			result.EventsRejected++
			slog.Debug("trader: event rejected", "err", err)
			continue
		}
		result.EventsProcessed++

		matches := e.mapper.Map(event, cat)
		result.MatchesFound += len(matches)
		for _, match := range matches {
			if closedNow[match.MarketSlug] {
				continue
			}
			candidates = append(candidates, candidate{event: event, match: match})
			slugSet[match.MarketSlug] = true
		}
	}

	if len(candidates) == 0 {
		return nil
	}

	slugs := make([]string, 0, len(slugSet))
	for slug := range slugSet {
		slugs = append(slugs, slug)
	}

	prices, err := e.prices.Fetch(ctx, slugs)
	if err != nil {
		slog.Warn("trader: error fetching prices", "err", err)
	}

	var signals []domain.Signal
	for _, c := range candidates {
		price, ok := prices[c.match.MarketSlug]
		if !ok {
			result.PricesMissing++
			continue
		}

		sig := e.gen.Generate(c.event, c.match, price, now)
		if sig == nil {
			continue
		}

		if e.strat != nil {
			sig.Confidence = clampUnit(sig.Confidence + e.strat.Adjust(*sig, price))
		}

		result.SignalsGenerated++
		if err := e.alerts.SignalGenerated(ctx, *sig); err != nil {
			slog.Warn("trader: error notifying signal", "err", err)
		}
		signals = append(signals, *sig)
	}
	return signals
}

func (e *Engine) savePortfolio(ctx context.Context) {
	if err := e.store.SavePortfolio(ctx, e.portfolio.Snapshot()); err != nil {
		slog.Error("trader: error saving portfolio", "err", err)
	}
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
