package domain

import (
	"fmt"
	"sort"
	"time"
)

// Position es una posición abierta. Máquina de dos estados: OPEN → CLOSED.
// Inmutable excepto la transición implícita de cierre, que la saca del set
// de posiciones abiertas del Portfolio.
type Position struct {
	ID         string    `json:"id"`
	MarketID   string    `json:"market_id"`
	Direction  Direction `json:"direction"`
	Shares     float64   `json:"shares"`
	EntryPrice float64   `json:"entry_price"` // precio pagado por share del lado comprado
	EntryTime  time.Time `json:"entry_time"`
	SignalID   string    `json:"signal_id"`
	Confidence float64   `json:"confidence"`
}

// CostBasis es el importe comprometido en la posición al abrirla.
func (p Position) CostBasis() float64 {
	return p.Shares * p.EntryPrice
}

// Age devuelve la antigüedad de la posición respecto a now.
func (p Position) Age(now time.Time) time.Duration {
	return now.Sub(p.EntryTime)
}

// CurrentValue valora la posición al precio dado (precio del lado comprado).
func (p Position) CurrentValue(price float64) float64 {
	return p.Shares * price
}

// UnrealizedPnL es el P&L no realizado al precio dado.
func (p Position) UnrealizedPnL(price float64) float64 {
	return p.CurrentValue(price) - p.CostBasis()
}

// UnrealizedReturn es el retorno fraccional no realizado al precio dado.
func (p Position) UnrealizedReturn(price float64) float64 {
	basis := p.CostBasis()
	if basis <= 0 {
		return 0
	}
	return p.UnrealizedPnL(price) / basis
}

// TradeRecord es el snapshot inmutable de una posición cerrada.
// Historia append-only: un record nunca se reabre ni se cierra dos veces.
type TradeRecord struct {
	ID         string      `json:"id"`
	MarketID   string      `json:"market_id"`
	Direction  Direction   `json:"direction"`
	Shares     float64     `json:"shares"`
	EntryPrice float64     `json:"entry_price"`
	ExitPrice  float64     `json:"exit_price"`
	EntryTime  time.Time   `json:"entry_time"`
	ExitTime   time.Time   `json:"exit_time"`
	SignalID   string      `json:"signal_id"`
	Confidence float64     `json:"confidence"`
	PnL        float64     `json:"pnl"`
	ReturnPct  float64     `json:"return_pct"`
	Reason     CloseReason `json:"reason"`
}

// Profitable indica si el trade cerró en positivo.
func (t TradeRecord) Profitable() bool {
	return t.PnL > 0
}

// DurationHours es la duración del trade en horas.
func (t TradeRecord) DurationHours() float64 {
	return t.ExitTime.Sub(t.EntryTime).Hours()
}

// Limits son los topes de riesgo del portfolio.
type Limits struct {
	MaxOpenPositions int     `json:"max_open_positions"`
	MaxPositionPct   float64 `json:"max_position_pct"` // fracción del valor total por posición
}

// DefaultLimits son los topes por defecto: 5 posiciones, 10% por posición.
func DefaultLimits() Limits {
	return Limits{MaxOpenPositions: 5, MaxPositionPct: 0.10}
}

// Portfolio gestiona el balance y las posiciones abiertas del paper trading.
//
// Invariantes (se mantienen tras cada operación):
//   - como máximo una posición abierta por mercado
//   - balance >= 0
//   - balance + Σ(cost basis abiertos) - Σ(pnl realizado) se conserva
//   - posiciones abiertas <= Limits.MaxOpenPositions
//
// No es seguro para escritura concurrente: se muta solo dentro del control
// loop single-threaded del engine.
type Portfolio struct {
	balance        float64
	initialBalance float64
	createdAt      time.Time
	limits         Limits
	positions      map[string]Position // marketID → posición abierta
	history        []TradeRecord
}

// NewPortfolio crea un portfolio con el balance inicial dado.
func NewPortfolio(initialBalance float64, limits Limits, now time.Time) *Portfolio {
	if limits.MaxOpenPositions <= 0 {
		limits.MaxOpenPositions = DefaultLimits().MaxOpenPositions
	}
	if limits.MaxPositionPct <= 0 {
		limits.MaxPositionPct = DefaultLimits().MaxPositionPct
	}
	return &Portfolio{
		balance:        initialBalance,
		initialBalance: initialBalance,
		createdAt:      now,
		limits:         limits,
		positions:      make(map[string]Position),
	}
}

// Balance devuelve el cash disponible.
func (p *Portfolio) Balance() float64 { return p.balance }

// InitialBalance devuelve el balance con el que se creó el portfolio.
func (p *Portfolio) InitialBalance() float64 { return p.initialBalance }

// CreatedAt devuelve el momento de creación.
func (p *Portfolio) CreatedAt() time.Time { return p.createdAt }

// Limits devuelve los topes configurados.
func (p *Portfolio) Limits() Limits { return p.limits }

// OpenPositionCount devuelve el número de posiciones abiertas.
func (p *Portfolio) OpenPositionCount() int { return len(p.positions) }

// HasPosition indica si existe posición abierta en el mercado dado.
func (p *Portfolio) HasPosition(marketID string) bool {
	_, ok := p.positions[marketID]
	return ok
}

// Position devuelve la posición abierta del mercado, si existe.
func (p *Portfolio) Position(marketID string) (Position, bool) {
	pos, ok := p.positions[marketID]
	return pos, ok
}

// Positions devuelve las posiciones abiertas ordenadas por marketID
// para que cada sweep del exit monitor sea determinista.
func (p *Portfolio) Positions() []Position {
	out := make([]Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MarketID < out[j].MarketID })
	return out
}

// History devuelve la historia de trades cerrados (append-only).
func (p *Portfolio) History() []TradeRecord {
	out := make([]TradeRecord, len(p.history))
	copy(out, p.history)
	return out
}

// MaxPositionSize es el tamaño máximo permitido por posición en USD.
func (p *Portfolio) MaxPositionSize() float64 {
	return p.TotalValue(nil) * p.limits.MaxPositionPct
}

// Open abre una posición nueva debitando amount del balance.
// Revalida todo aunque el decision engine ya lo comprobó: importe positivo,
// precio en (0,1], sin duplicado, topes de cantidad y tamaño, balance
// suficiente.
func (p *Portfolio) Open(id, marketID string, dir Direction, amount, price float64, signalID string, confidence float64, now time.Time) (Position, error) {
	if dir != BuyYes && dir != BuyNo {
		return Position{}, fmt.Errorf("portfolio.Open: direction %q is not tradeable", dir)
	}
	if amount <= 0 {
		return Position{}, fmt.Errorf("portfolio.Open: amount must be positive, got %.2f", amount)
	}
	if price <= 0 || price > 1 {
		return Position{}, fmt.Errorf("portfolio.Open: price %.4f out of (0,1]", price)
	}
	if p.HasPosition(marketID) {
		return Position{}, fmt.Errorf("portfolio.Open %s: %w", marketID, ErrDuplicatePosition)
	}
	if len(p.positions) >= p.limits.MaxOpenPositions {
		return Position{}, fmt.Errorf("portfolio.Open: open position cap reached (%d)", p.limits.MaxOpenPositions)
	}
	if amount > p.MaxPositionSize() {
		return Position{}, fmt.Errorf("portfolio.Open: amount %.2f exceeds per-position cap %.2f", amount, p.MaxPositionSize())
	}
	if amount > p.balance {
		return Position{}, fmt.Errorf("portfolio.Open: amount %.2f exceeds balance %.2f", amount, p.balance)
	}

	pos := Position{
		ID:         id,
		MarketID:   marketID,
		Direction:  dir,
		Shares:     amount / price,
		EntryPrice: price,
		EntryTime:  now,
		SignalID:   signalID,
		Confidence: confidence,
	}
	p.positions[marketID] = pos
	p.balance -= amount
	return pos, nil
}

// Close cierra la posición abierta del mercado dado al precio de salida.
// Cerrar un mercado sin posición abierta es un no-op (ok=false): los sweeps
// repetidos del exit monitor son seguros y el balance se acredita una sola vez.
func (p *Portfolio) Close(recordID, marketID string, exitPrice float64, reason CloseReason, now time.Time) (TradeRecord, bool) {
	pos, ok := p.positions[marketID]
	if !ok {
		return TradeRecord{}, false
	}
	delete(p.positions, marketID)

	proceeds := pos.Shares * exitPrice
	pnl := proceeds - pos.CostBasis()
	returnPct := 0.0
	if pos.CostBasis() > 0 {
		returnPct = pnl / pos.CostBasis()
	}
	p.balance += proceeds

	rec := TradeRecord{
		ID:         recordID,
		MarketID:   marketID,
		Direction:  pos.Direction,
		Shares:     pos.Shares,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exitPrice,
		EntryTime:  pos.EntryTime,
		ExitTime:   now,
		SignalID:   pos.SignalID,
		Confidence: pos.Confidence,
		PnL:        pnl,
		ReturnPct:  returnPct,
		Reason:     reason,
	}
	p.history = append(p.history, rec)
	return rec, true
}

// TotalValue es el valor mark-to-market: balance + valor de las posiciones
// abiertas. prices mapea marketID → precio actual del lado comprado; para
// mercados sin precio se usa el entry price. Nunca muta estado.
func (p *Portfolio) TotalValue(prices map[string]float64) float64 {
	total := p.balance
	for marketID, pos := range p.positions {
		price, ok := prices[marketID]
		if !ok {
			price = pos.EntryPrice
		}
		total += pos.CurrentValue(price)
	}
	return total
}

// UnrealizedPnL devuelve el P&L no realizado de las posiciones abiertas.
func (p *Portfolio) UnrealizedPnL(prices map[string]float64) float64 {
	total := 0.0
	for marketID, pos := range p.positions {
		price, ok := prices[marketID]
		if !ok {
			price = pos.EntryPrice
		}
		total += pos.UnrealizedPnL(price)
	}
	return total
}

// RealizedPnL devuelve el P&L realizado acumulado de la historia.
func (p *Portfolio) RealizedPnL() float64 {
	total := 0.0
	for _, t := range p.history {
		total += t.PnL
	}
	return total
}

// Summary es el resumen mark-to-market del portfolio.
// ReturnPct y WinRate son fracciones, como TradeRecord.ReturnPct:
// el render decide cómo escalarlas.
type Summary struct {
	Balance        float64
	InitialBalance float64
	TotalValue     float64
	RealizedPnL    float64
	UnrealizedPnL  float64
	TotalPnL       float64
	ReturnPct      float64 // fracción sobre el balance inicial
	OpenPositions  int
	TotalTrades    int
	WinningTrades  int
	WinRate        float64 // fracción [0,1]
	BestTradePnL   float64
	WorstTradePnL  float64
}

// Summarize calcula el resumen completo sin mutar estado.
func (p *Portfolio) Summarize(prices map[string]float64) Summary {
	s := Summary{
		Balance:        p.balance,
		InitialBalance: p.initialBalance,
		TotalValue:     p.TotalValue(prices),
		RealizedPnL:    p.RealizedPnL(),
		UnrealizedPnL:  p.UnrealizedPnL(prices),
		OpenPositions:  len(p.positions),
		TotalTrades:    len(p.history),
	}
	s.TotalPnL = s.RealizedPnL + s.UnrealizedPnL
	if p.initialBalance > 0 {
		s.ReturnPct = (s.TotalValue - p.initialBalance) / p.initialBalance
	}
	for i, t := range p.history {
		if t.Profitable() {
			s.WinningTrades++
		}
		if i == 0 || t.PnL > s.BestTradePnL {
			s.BestTradePnL = t.PnL
		}
		if i == 0 || t.PnL < s.WorstTradePnL {
			s.WorstTradePnL = t.PnL
		}
	}
	if s.TotalTrades > 0 {
		s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades)
	}
	return s
}

// Snapshot es la representación serializable completa del portfolio.
// Round-trip exacto: Restore(Snapshot()) reproduce todos los campos,
// timestamps incluidos.
type Snapshot struct {
	Balance        float64       `json:"balance"`
	InitialBalance float64       `json:"initial_balance"`
	CreatedAt      time.Time     `json:"created_at"`
	Limits         Limits        `json:"limits"`
	Positions      []Position    `json:"positions"`
	History        []TradeRecord `json:"history"`
}

// Snapshot captura el estado completo del portfolio.
func (p *Portfolio) Snapshot() Snapshot {
	return Snapshot{
		Balance:        p.balance,
		InitialBalance: p.initialBalance,
		CreatedAt:      p.createdAt,
		Limits:         p.limits,
		Positions:      p.Positions(),
		History:        p.History(),
	}
}

// Restore reconstruye un portfolio desde un snapshot, revalidando el
// invariante de una-posición-por-mercado.
func Restore(s Snapshot) (*Portfolio, error) {
	p := NewPortfolio(s.InitialBalance, s.Limits, s.CreatedAt)
	p.balance = s.Balance
	for _, pos := range s.Positions {
		if _, dup := p.positions[pos.MarketID]; dup {
			return nil, fmt.Errorf("domain.Restore: duplicate open position for market %s", pos.MarketID)
		}
		p.positions[pos.MarketID] = pos
	}
	p.history = make([]TradeRecord, len(s.History))
	copy(p.history, s.History)
	return p, nil
}

// Clone devuelve una copia profunda del portfolio. El decision engine la usa
// para simular el efecto acumulado de un batch de trades sin tocar el real.
func (p *Portfolio) Clone() *Portfolio {
	clone, err := Restore(p.Snapshot())
	if err != nil {
		// Snapshot() de un portfolio válido nunca produce duplicados.
		panic(fmt.Sprintf("portfolio.Clone: %v", err))
	}
	return clone
}
