package ports

import (
	"context"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

// AlertSink recibe los objetos finalizados del ciclo para notificación
// humana. El core nunca formatea texto de display.
type AlertSink interface {
	SignalGenerated(ctx context.Context, sig domain.Signal) error
	DecisionMade(ctx context.Context, dec domain.TradingDecision) error
	PositionClosed(ctx context.Context, rec domain.TradeRecord) error
}
