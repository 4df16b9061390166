package repository

import (
	"context"

	"github.com/tiendago/facturacion-api/internal/domain/entity"
)

// OrderRepository es el acceso de solo lectura a las órdenes del storefront.
// El núcleo de facturación nunca escribe aquí: el pipeline de órdenes es quien
// referencia la factura emitida después de un IssueInvoice exitoso.
type OrderRepository interface {
	// GetByID devuelve la orden con sus líneas, o nil si no existe.
	GetByID(ctx context.Context, id string) (*entity.Order, error)
}
