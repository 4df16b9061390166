package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/tiendago/facturacion-api/internal/application/dto"
	infraafip "github.com/tiendago/facturacion-api/internal/infrastructure/afip"
)

// HealthHandler expone el estado del servicio y de los servidores de AFIP.
type HealthHandler struct {
	fiscal infraafip.FiscalService
}

// NewHealthHandler construye el handler.
func NewHealthHandler(fiscal infraafip.FiscalService) *HealthHandler {
	return &HealthHandler{fiscal: fiscal}
}

// Live responde 200 si el proceso está vivo.
// GET /healthz
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// AFIP consulta FEDummy y reporta el estado de los servidores de WSFE.
// GET /healthz/afip
func (h *HealthHandler) AFIP(c *fiber.Ctx) error {
	status, err := h.fiscal.Dummy(c.Context())
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.HealthResponse{Status: "degraded"})
	}
	out := dto.HealthResponse{
		Status:     "ok",
		AppServer:  status.AppServer,
		DbServer:   status.DbServer,
		AuthServer: status.AuthServer,
	}
	if !status.OK() {
		out.Status = "degraded"
		return c.Status(fiber.StatusServiceUnavailable).JSON(out)
	}
	return c.JSON(out)
}
