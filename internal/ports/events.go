package ports

import (
	"context"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

// EventSource entrega eventos ya clasificados (category, urgency_score y
// keywords poblados). El core no clasifica nada.
type EventSource interface {
	// Next devuelve los eventos nuevos desde la última llamada.
	// Puede devolver una lista vacía sin error.
	Next(ctx context.Context) ([]domain.Event, error)
}
