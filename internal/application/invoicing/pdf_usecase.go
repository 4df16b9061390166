package invoicing

import (
	"context"
	"fmt"

	"github.com/tiendago/facturacion-api/internal/domain"
	"github.com/tiendago/facturacion-api/internal/domain/repository"
)

// PDFUseCase genera la representación gráfica (PDF) del comprobante de una
// orden. Solo hay PDF para comprobantes ya autorizados: sin CAE no hay
// documento que representar.
type PDFUseCase struct {
	ledger    repository.InvoiceRepository
	orders    repository.OrderRepository
	generator InvoicePDFGenerator
	seller    SellerConfig
}

// NewPDFUseCase construye el caso de uso inyectando sus dependencias.
func NewPDFUseCase(
	ledger repository.InvoiceRepository,
	orders repository.OrderRepository,
	generator InvoicePDFGenerator,
	seller SellerConfig,
) *PDFUseCase {
	return &PDFUseCase{
		ledger:    ledger,
		orders:    orders,
		generator: generator,
		seller:    seller,
	}
}

// DownloadInvoicePDF recupera el comprobante de la orden y genera el PDF.
//
// Retorna:
//   - (pdfBytes, filename, nil)  si todo sale bien.
//   - domain.ErrNotFound         si la orden no tiene comprobante emitido.
func (uc *PDFUseCase) DownloadInvoicePDF(ctx context.Context, orderID string) (pdfBytes []byte, filename string, err error) {
	inv, err := uc.ledger.FindByOrder(ctx, orderID)
	if err != nil {
		return nil, "", fmt.Errorf("pdf: obtener factura: %w", err)
	}
	if inv == nil {
		return nil, "", domain.ErrNotFound
	}

	order, err := uc.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, "", fmt.Errorf("pdf: obtener orden: %w", err)
	}
	if order == nil {
		return nil, "", domain.ErrNotFound
	}

	pdfBytes, err = uc.generator.GenerateInvoicePDF(ctx, inv, order, uc.seller)
	if err != nil {
		return nil, "", fmt.Errorf("pdf: generación fallida: %w", err)
	}

	filename = fmt.Sprintf("factura_%s.pdf", inv.FormattedNumber())
	return pdfBytes, filename, nil
}
