// Package afip implementa los clientes de los web services de AFIP:
// WSAA (autenticación por ticket de acceso) y WSFEv1 (autorización de
// comprobantes con CAE).
package afip

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	domafip "github.com/tiendago/facturacion-api/internal/domain/afip"
)

// ── Sesión ────────────────────────────────────────────────────────────────────

// Session es el par token/sign emitido por WSAA. Inmutable una vez emitida;
// el manager la reemplaza completa al renovar.
type Session struct {
	Token     string
	Sign      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Usable indica si la sesión sigue vigente con el margen de seguridad dado.
func (s *Session) Usable(now time.Time, margin time.Duration) bool {
	return s != nil && now.Before(s.ExpiresAt.Add(-margin))
}

// ── Puertos ───────────────────────────────────────────────────────────────────

// SessionProvider entrega una sesión WSAA vigente, renovándola de forma
// transparente. Nunca entrega una sesión vencida.
type SessionProvider interface {
	EnsureSession(ctx context.Context) (*Session, error)
	// Invalidate descarta la sesión cacheada cuando WSFE la rechaza por
	// vencida o inválida; la próxima EnsureSession renueva.
	Invalidate()
}

// FiscalService es el puerto de salida hacia WSFEv1. La implementación
// concreta usa SOAP; para tests y para el modo dev se inyecta una simulación.
type FiscalService interface {
	// LastAuthorized consulta el último número autorizado para el par
	// (punto de venta, tipo de comprobante). Sin efectos en AFIP; reintentable.
	LastAuthorized(ctx context.Context, sess *Session, ptoVta, cbteTipo int) (int64, error)
	// Authorize envía la solicitud de CAE. El error de retorno cubre solo
	// fallas previas al envío (armado del request); todo lo demás viene
	// clasificado dentro de CAEResult.
	Authorize(ctx context.Context, sess *Session, req *VoucherRequest) (*CAEResult, error)
	// QueryVoucher consulta un comprobante ya autorizado (conciliación).
	// Devuelve domain.ErrNotFound envuelto si AFIP no lo registra.
	QueryVoucher(ctx context.Context, sess *Session, ptoVta, cbteTipo int, nro int64) (*IssuedVoucher, error)
	// Dummy verifica la salud de los servidores de WSFE.
	Dummy(ctx context.Context) (*ServiceStatus, error)
}

// ── Solicitud ─────────────────────────────────────────────────────────────────

// VoucherRequest es la unidad de trabajo de una autorización: se crea por
// orden al momento de emitir y no se reutiliza entre intentos (un reintento
// construye un request nuevo, aunque vuelva a resolver el mismo número).
type VoucherRequest struct {
	PtoVta   int
	CbteTipo int
	Concepto int
	DocTipo  int
	DocNro   int64
	CbteNro  int64 // número reservado; va como CbteDesde y CbteHasta
	CbteFch  time.Time

	ImpTotal   decimal.Decimal
	ImpNeto    decimal.Decimal
	ImpIVA     decimal.Decimal
	ImpTotConc decimal.Decimal // neto no gravado
	ImpOpEx    decimal.Decimal // exento
	ImpTrib    decimal.Decimal // otros tributos

	// IVA por alícuota; vacío (y omitido en el wire) para la familia C.
	IVA []domafip.IVAEntry

	// Fechas de servicio; obligatorias cuando Concepto != productos.
	FchServDesde *time.Time
	FchServHasta *time.Time
	FchVtoPago   *time.Time
}

// ── Resultado ─────────────────────────────────────────────────────────────────

// CAEOutcome clasifica el desenlace de una solicitud de CAE.
type CAEOutcome int

const (
	// OutcomeApproved: AFIP autorizó y emitió CAE.
	OutcomeApproved CAEOutcome = iota + 1
	// OutcomeRejected: AFIP rechazó explícitamente; el número NO fue consumido.
	OutcomeRejected
	// OutcomeIndeterminate: timeout, conexión cortada o respuesta ilegible
	// después del envío. AFIP pudo o no haber consumido el número: requiere
	// conciliación, nunca reintento automático.
	OutcomeIndeterminate
)

// CAEResult es la respuesta tipificada de Authorize.
type CAEResult struct {
	Outcome   CAEOutcome
	CAE       string
	CAEExpiry time.Time
	Code      string // código de error/observación en rechazos
	Message   string
	Cause     error // causa subyacente en indeterminados
}

// IssuedVoucher es el comprobante tal como lo registra AFIP (FECompConsultar),
// usado para conciliar intentos indeterminados.
type IssuedVoucher struct {
	PtoVta    int
	CbteTipo  int
	CbteNro   int64
	DocTipo   int
	DocNro    int64
	ImpTotal  decimal.Decimal
	CAE       string
	CAEExpiry time.Time
	CbteFch   time.Time
}

// ServiceStatus es la respuesta de FEDummy.
type ServiceStatus struct {
	AppServer  string
	DbServer   string
	AuthServer string
}

// OK indica que los tres servidores reportan "OK".
func (s *ServiceStatus) OK() bool {
	return s != nil && s.AppServer == "OK" && s.DbServer == "OK" && s.AuthServer == "OK"
}
