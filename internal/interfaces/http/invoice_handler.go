package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/tiendago/facturacion-api/internal/application/dto"
	"github.com/tiendago/facturacion-api/internal/application/invoicing"
	"github.com/tiendago/facturacion-api/internal/domain"
	"github.com/tiendago/facturacion-api/internal/domain/entity"
	pkgafip "github.com/tiendago/facturacion-api/pkg/afip"
)

// InvoiceHandler maneja la emisión y consulta de comprobantes (protegido).
type InvoiceHandler struct {
	issue *invoicing.IssueInvoiceUseCase
	pdf   *invoicing.PDFUseCase
}

// NewInvoiceHandler construye el handler.
func NewInvoiceHandler(issue *invoicing.IssueInvoiceUseCase, pdf *invoicing.PDFUseCase) *InvoiceHandler {
	return &InvoiceHandler{issue: issue, pdf: pdf}
}

// Issue godoc
// @Summary      Emitir comprobante para una orden pagada
// @Description  Idempotente: si la orden ya tiene comprobante, lo devuelve sin re-enviar a AFIP.
// @Tags         invoices
// @Produce      json
// @Param        id   path      string  true  "ID de la orden"
// @Success      200  {object}  dto.InvoiceResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse  "orden impaga o emisión pendiente de conciliación"
// @Failure      422  {object}  dto.ErrorResponse  "rechazado por AFIP"
// @Failure      502  {object}  dto.ErrorResponse  "falla de autenticación contra AFIP"
// @Router       /api/v1/orders/{id}/invoice [post]
func (h *InvoiceHandler) Issue(c *fiber.Ctx) error {
	orderID := c.Params("id")
	if orderID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id de orden requerido"})
	}

	inv, err := h.issue.IssueInvoice(c.Context(), orderID)
	if err != nil {
		var rej *domain.RejectionError
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "orden no encontrada"})
		case errors.Is(err, domain.ErrOrderNotPaid):
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "ORDER_NOT_PAID", Message: "la orden no está pagada"})
		case errors.Is(err, domain.ErrInvalidInput):
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
		case errors.As(err, &rej):
			return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "AFIP_REJECTED", Message: rej.Error()})
		case errors.Is(err, domain.ErrMustReconcile):
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "MUST_RECONCILE", Message: "el resultado del envío es indeterminado; reintente para conciliar"})
		case errors.Is(err, domain.ErrAuthenticationFailed):
			return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Code: "AFIP_AUTH", Message: "no se pudo autenticar contra AFIP"})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
		}
	}
	return c.JSON(toInvoiceResponse(inv))
}

// Get godoc
// @Summary      Consultar el comprobante de una orden
// @Tags         invoices
// @Produce      json
// @Param        id   path      string  true  "ID de la orden"
// @Success      200  {object}  dto.InvoiceResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/v1/orders/{id}/invoice [get]
func (h *InvoiceHandler) Get(c *fiber.Ctx) error {
	orderID := c.Params("id")
	if orderID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id de orden requerido"})
	}
	inv, err := h.issue.GetInvoiceForOrder(c.Context(), orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "la orden no tiene comprobante"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(toInvoiceResponse(inv))
}

// DownloadPDF godoc
// @Summary      Descargar la representación gráfica (PDF) del comprobante
// @Tags         invoices
// @Produce      application/pdf
// @Param        id   path      string  true  "ID de la orden"
// @Success      200  {file}    binary
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/v1/orders/{id}/invoice/pdf [get]
func (h *InvoiceHandler) DownloadPDF(c *fiber.Ctx) error {
	orderID := c.Params("id")
	if orderID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id de orden requerido"})
	}
	pdfBytes, filename, err := h.pdf.DownloadInvoicePDF(c.Context(), orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "la orden no tiene comprobante"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(pdfBytes)
}

func toInvoiceResponse(inv *entity.IssuedInvoice) dto.InvoiceResponse {
	return dto.InvoiceResponse{
		ID:          inv.ID,
		OrderID:     inv.OrderID,
		Number:      inv.FormattedNumber(),
		PointOfSale: inv.PointOfSale,
		VoucherType: inv.VoucherType,
		Letter:      pkgafip.VoucherLetter(inv.VoucherType),
		CAE:         inv.CAE,
		CAEExpiry:   inv.CAEExpiry,
		BuyerName:   inv.BuyerName,
		NetAmount:   inv.NetAmount.StringFixed(2),
		IVAAmount:   inv.IVAAmount.StringFixed(2),
		TotalAmount: inv.TotalAmount.StringFixed(2),
		IssuedAt:    inv.IssuedAt,
	}
}
