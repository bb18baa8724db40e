package domain

import "time"

// TradingDecision es el resultado de evaluar una señal contra el portfolio.
// Efímero: se ejecuta inmediatamente o se descarta.
type TradingDecision struct {
	Signal         Signal
	ShouldTrade    bool
	PositionSize   float64 // USD
	RiskScore      float64 // [0,1], informativo, no bloquea
	ExpectedReturn float64
	Reasoning      string
	EvaluatedAt    time.Time
}

// CloseReason es el motivo de cierre de una posición.
type CloseReason string

const (
	CloseManual     CloseReason = "manual"
	CloseTakeProfit CloseReason = "take_profit"
	CloseStopLoss   CloseReason = "stop_loss"
	CloseAuto       CloseReason = "auto_close"
	CloseResolved   CloseReason = "resolved"
)
