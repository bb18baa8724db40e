package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

// ExitConfig son las reglas de salida del exit monitor.
type ExitConfig struct {
	TakeProfitPct float64       // retorno no realizado que dispara take profit
	StopLossPct   float64       // pérdida fraccional que dispara stop loss
	MaxHold       time.Duration // antigüedad máxima antes del auto close
}

// DefaultExitConfig: take profit +10%, stop loss -7%, auto close a las 24h.
func DefaultExitConfig() ExitConfig {
	return ExitConfig{
		TakeProfitPct: 0.10,
		StopLossPct:   0.07,
		MaxHold:       24 * time.Hour,
	}
}

// ExitMonitor cierra posiciones abiertas según reglas de prioridad fija.
// Para cada posición evalúa en orden y corta en la primera que aplica:
//  1. mercado resuelto: cierra al precio externo, reason=resolved
//  2. antigüedad >= MaxHold: cierra al mejor precio conocido
//     (fallback al entry price), reason=auto_close
//  3. retorno no realizado >= take profit: reason=take_profit
//  4. retorno no realizado <= -stop loss: reason=stop_loss
//
// Una posición que no matchea ninguna sigue abierta hasta el próximo ciclo.
// El sweep es idempotente: cerrar un mercado sin posición es un no-op.
type ExitMonitor struct {
	cfg ExitConfig
}

// NewExitMonitor creates an ExitMonitor with the given rules.
func NewExitMonitor(cfg ExitConfig) *ExitMonitor {
	def := DefaultExitConfig()
	if cfg.TakeProfitPct <= 0 {
		cfg.TakeProfitPct = def.TakeProfitPct
	}
	if cfg.StopLossPct <= 0 {
		cfg.StopLossPct = def.StopLossPct
	}
	if cfg.MaxHold <= 0 {
		cfg.MaxHold = def.MaxHold
	}
	return &ExitMonitor{cfg: cfg}
}

// Sweep recorre todas las posiciones abiertas una vez y cierra las que
// matchean alguna regla. Devuelve los trades cerrados en este sweep.
func (m *ExitMonitor) Sweep(pf *domain.Portfolio, prices map[string]domain.MarketPrice, now time.Time) []domain.TradeRecord {
	var closed []domain.TradeRecord

	for _, pos := range pf.Positions() {
		price, havePrice := prices[pos.MarketID]

		exitPrice, reason, ok := m.evaluate(pos, price, havePrice, now)
		if !ok {
			continue
		}
		if rec, done := pf.Close(uuid.NewString(), pos.MarketID, exitPrice, reason, now); done {
			closed = append(closed, rec)
		}
	}
	return closed
}

// evaluate decide si la posición debe cerrarse y a qué precio.
func (m *ExitMonitor) evaluate(pos domain.Position, price domain.MarketPrice, havePrice bool, now time.Time) (float64, domain.CloseReason, bool) {
	if havePrice && price.Resolved() {
		return price.SidePrice(pos.Direction), domain.CloseResolved, true
	}

	if pos.Age(now) >= m.cfg.MaxHold {
		exitPrice := pos.EntryPrice
		if havePrice {
			exitPrice = price.SidePrice(pos.Direction)
		}
		return exitPrice, domain.CloseAuto, true
	}

	if !havePrice {
		return 0, "", false
	}

	side := price.SidePrice(pos.Direction)
	ret := pos.UnrealizedReturn(side)
	if ret >= m.cfg.TakeProfitPct {
		return side, domain.CloseTakeProfit, true
	}
	if ret <= -m.cfg.StopLossPct {
		return side, domain.CloseStopLoss, true
	}

	return 0, "", false
}
