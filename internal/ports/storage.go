package ports

import (
	"context"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

// Storage persiste el estado del portfolio y la historia de trades.
// El round-trip debe ser exacto (todos los campos, timestamps incluidos)
// para que el pipeline retome tras un restart sin perder invariantes.
type Storage interface {
	// SavePortfolio persiste el snapshot completo del portfolio.
	SavePortfolio(ctx context.Context, s domain.Snapshot) error

	// LoadPortfolio devuelve el último snapshot guardado.
	// ok=false si nunca se guardó ninguno.
	LoadPortfolio(ctx context.Context) (s domain.Snapshot, ok bool, err error)

	// LogDecision registra una decisión evaluada (aceptada o no).
	LogDecision(ctx context.Context, dec domain.TradingDecision) error

	// Close cierra la conexión limpiamente.
	Close() error
}
