package engine

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

// DecisionConfig son los umbrales de las gates del decision engine.
type DecisionConfig struct {
	MinConfidence     float64 // gate 1
	MinExpectedReturn float64 // gate 2
}

// DefaultDecisionConfig: confianza mínima 60%, retorno esperado mínimo 3%.
func DefaultDecisionConfig() DecisionConfig {
	return DecisionConfig{MinConfidence: 0.6, MinExpectedReturn: 0.03}
}

// Decider evalúa señales contra el estado del portfolio y decide si operar.
// Las gates se evalúan en orden fijo y la primera que falla corta la
// evaluación; un rechazo es un resultado normal (should_trade=false), nunca
// un error.
type Decider struct {
	cfg DecisionConfig
}

// NewDecider creates a Decider with the given thresholds.
func NewDecider(cfg DecisionConfig) *Decider {
	def := DefaultDecisionConfig()
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = def.MinConfidence
	}
	if cfg.MinExpectedReturn <= 0 {
		cfg.MinExpectedReturn = def.MinExpectedReturn
	}
	return &Decider{cfg: cfg}
}

// Evaluate aplica las gates en orden contra el portfolio dado:
//  1. confianza >= mínimo
//  2. retorno esperado >= mínimo
//  3. sin posición abierta en el mercado
//  4. cupo de posiciones abiertas
//  5. balance >= 1% del valor total
//
// El tamaño solo se calcula si todas pasan. El risk score es informativo.
func (d *Decider) Evaluate(sig domain.Signal, pf *domain.Portfolio, now time.Time) domain.TradingDecision {
	dec := domain.TradingDecision{
		Signal:         sig,
		ExpectedReturn: sig.ExpectedReturn(),
		RiskScore:      d.riskScore(sig, pf),
		EvaluatedAt:    now,
	}

	if reason, ok := d.checkGates(sig, pf); !ok {
		dec.Reasoning = "skip: " + reason
		return dec
	}

	dec.ShouldTrade = true
	dec.PositionSize = d.positionSize(sig, pf)
	dec.Reasoning = fmt.Sprintf("execute: confidence %.2f, expected return %+.1f%%, size $%.2f",
		sig.Confidence, dec.ExpectedReturn*100, dec.PositionSize)
	return dec
}

// checkGates devuelve (motivo, false) en la primera gate que falla.
func (d *Decider) checkGates(sig domain.Signal, pf *domain.Portfolio) (string, bool) {
	if sig.Confidence < d.cfg.MinConfidence {
		return fmt.Sprintf("low confidence (%.1f%% < %.0f%%)", sig.Confidence*100, d.cfg.MinConfidence*100), false
	}
	if sig.ExpectedReturn() < d.cfg.MinExpectedReturn {
		return fmt.Sprintf("low expected return (%.1f%% < %.0f%%)", sig.ExpectedReturn()*100, d.cfg.MinExpectedReturn*100), false
	}
	if pf.HasPosition(sig.MarketID) {
		return "already have position in this market", false
	}
	if pf.OpenPositionCount() >= pf.Limits().MaxOpenPositions {
		return fmt.Sprintf("max positions reached (%d/%d)", pf.OpenPositionCount(), pf.Limits().MaxOpenPositions), false
	}
	if pf.Balance() < pf.TotalValue(nil)*0.01 {
		return "insufficient balance for minimum investment", false
	}
	return "", true
}

// positionSize dimensiona la posición en USD.
// base = max_position_pct del valor total, escalado por confianza
// (0.3 a 1.0 entre el umbral y 1.0) y por retorno esperado (0.5 a 1.0,
// con el multiplicador de retorno capado a 3x el umbral). El resultado
// se clampa a [1% del valor total, balance disponible].
func (d *Decider) positionSize(sig domain.Signal, pf *domain.Portfolio) float64 {
	total := pf.TotalValue(nil)

	confMult := (sig.Confidence - d.cfg.MinConfidence) / (1.0 - d.cfg.MinConfidence)
	pct := pf.Limits().MaxPositionPct * (0.3 + 0.7*confMult)

	retMult := min(sig.ExpectedReturn()/d.cfg.MinExpectedReturn, 3.0)
	pct *= 0.5 + 0.5*(retMult-1.0)/2.0

	size := total * pct
	size = min(size, pf.Balance())
	size = max(size, total*0.01)
	return math.Round(size*100) / 100
}

// riskScore suma contribuciones aditivas y clampa a 1. Informativo: nunca
// bloquea un trade por sí solo.
func (d *Decider) riskScore(sig domain.Signal, pf *domain.Portfolio) float64 {
	risk := (1.0 - sig.Confidence) * 0.3

	switch {
	case sig.CurrentPrice < 0.1 || sig.CurrentPrice > 0.9:
		risk += 0.2
	case sig.CurrentPrice < 0.2 || sig.CurrentPrice > 0.8:
		risk += 0.1
	}

	absReturn := math.Abs(sig.ExpectedReturn())
	switch {
	case absReturn > 0.5:
		risk += 0.3
	case absReturn > 0.2:
		risk += 0.1
	}

	switch {
	case pf.OpenPositionCount() >= 4:
		risk += 0.2
	case pf.OpenPositionCount() >= 3:
		risk += 0.1
	}

	return min(risk, 1.0)
}

// EvaluateBatch evalúa varias señales como un lote. Se ordenan por
// confianza × |retorno esperado| descendente y las gates se aplican contra
// un clon del portfolio que acumula el efecto de los trades aceptados antes
// en el mismo lote. Si la ejecución simulada falla, la decisión se degrada
// a should_trade=false con el motivo anotado; sin reintentos.
func (d *Decider) EvaluateBatch(signals []domain.Signal, pf *domain.Portfolio, now time.Time) []domain.TradingDecision {
	sorted := make([]domain.Signal, len(signals))
	copy(sorted, signals)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence*math.Abs(sorted[i].ExpectedReturn()) >
			sorted[j].Confidence*math.Abs(sorted[j].ExpectedReturn())
	})

	sim := pf.Clone()
	decisions := make([]domain.TradingDecision, 0, len(sorted))
	for _, sig := range sorted {
		dec := d.Evaluate(sig, sim, now)
		if dec.ShouldTrade {
			if _, err := d.Execute(dec, sim, now); err != nil {
				dec.ShouldTrade = false
				dec.Reasoning += fmt.Sprintf(" (simulation failed: %v)", err)
			}
		}
		decisions = append(decisions, dec)
	}
	return decisions
}

// Execute abre la posición de una decisión aceptada. Ejecutar una decisión
// con should_trade=false es una violación de contrato y falla en voz alta
// con ErrExecutionViolation; el fallo aborta solo este trade, no el ciclo.
func (d *Decider) Execute(dec domain.TradingDecision, pf *domain.Portfolio, now time.Time) (domain.Position, error) {
	if !dec.ShouldTrade {
		return domain.Position{}, fmt.Errorf("engine.Execute %s: %w", dec.Signal.MarketID, domain.ErrExecutionViolation)
	}

	sig := dec.Signal
	entryPrice := sig.CurrentPrice
	if sig.Direction == domain.BuyNo {
		// CurrentPrice es el precio YES; una posición NO compra el otro lado
		entryPrice = 1.0 - sig.CurrentPrice
	}
	pos, err := pf.Open(
		uuid.NewString(),
		sig.MarketID,
		sig.Direction,
		dec.PositionSize,
		entryPrice,
		sig.EventID,
		sig.Confidence,
		now,
	)
	if err != nil {
		return domain.Position{}, fmt.Errorf("engine.Execute %s: %w", sig.MarketID, err)
	}
	return pos, nil
}
