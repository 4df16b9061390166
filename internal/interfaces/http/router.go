package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/tiendago/facturacion-api/internal/application/auth"
	"github.com/tiendago/facturacion-api/internal/application/invoicing"
	"github.com/tiendago/facturacion-api/internal/domain/entity"
	infraafip "github.com/tiendago/facturacion-api/internal/infrastructure/afip"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	IssueInvoice *invoicing.IssueInvoiceUseCase
	InvoicePDF   *invoicing.PDFUseCase
	AuthUC       *auth.AuthUseCase
	Fiscal       infraafip.FiscalService
	JWTSecret    string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	// Health (público)
	healthHandler := NewHealthHandler(deps.Fiscal)
	app.Get("/healthz", healthHandler.Live)
	app.Get("/healthz/afip", healthHandler.AFIP)

	api := app.Group("/api/v1")

	// Auth (público)
	authGroup := api.Group("/auth")
	authHandler := NewAuthHandler(deps.AuthUC)
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	// Emisión y consulta de comprobantes. Emitir requiere rol habilitado;
	// consultar y descargar el PDF alcanza con estar autenticado.
	invoiceHandler := NewInvoiceHandler(deps.IssueInvoice, deps.InvoicePDF)
	protected.Post("/orders/:id/invoice",
		RequireRole(entity.RoleAdmin, entity.RoleFacturador),
		invoiceHandler.Issue,
	)
	protected.Get("/orders/:id/invoice", invoiceHandler.Get)
	protected.Get("/orders/:id/invoice/pdf", invoiceHandler.DownloadPDF)
}
