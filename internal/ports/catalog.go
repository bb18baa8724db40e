package ports

import (
	"context"

	"github.com/alejandrodnm/signalbot/internal/domain"
)

// CatalogProvider entrega el catálogo de mercados conocidos.
// La implementación refresca fuera de banda con su propio TTL;
// el mapper recibe el catálogo por valor y nunca hace I/O.
type CatalogProvider interface {
	Catalog(ctx context.Context) (domain.Catalog, error)
}
