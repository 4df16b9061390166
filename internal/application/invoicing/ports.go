package invoicing

import (
	"context"

	"github.com/tiendago/facturacion-api/internal/domain/entity"
)

// InvoicePDFGenerator genera la representación gráfica del comprobante
// autorizado. La implementación concreta usa Maroto.
type InvoicePDFGenerator interface {
	GenerateInvoicePDF(ctx context.Context, inv *entity.IssuedInvoice, order *entity.Order, seller SellerConfig) ([]byte, error)
}
