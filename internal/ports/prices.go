package ports

import (
	"context"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

// PriceProvider obtiene precios actuales de mercados.
type PriceProvider interface {
	// Fetch devuelve los precios de los mercados pedidos. Puede devolver un
	// subconjunto estricto: los fallos parciales son esperados y el pipeline
	// continúa con lo que llegó.
	Fetch(ctx context.Context, marketIDs []string) (map[string]domain.MarketPrice, error)
}
