// Package invoicing orquesta la emisión de comprobantes electrónicos AFIP:
//
//	guard de idempotencia → sesión WSAA → letra y montos → lock por
//	(ptoVta, cbteTipo) → conciliación pendiente → resolver número →
//	FECAESolicitar → persistir resultado
//
// El invariante central: para un (punto de venta, tipo de comprobante) fijo,
// la secuencia de números que llegan a IssuedInvoice es estrictamente
// creciente y sin huecos desde la perspectiva de AFIP. El número siguiente se
// resuelve SIEMPRE contra AFIP (nunca contra el libro local), y el tramo
// resolver→enviar está serializado por clave.
package invoicing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tiendago/facturacion-api/internal/domain"
	domafip "github.com/tiendago/facturacion-api/internal/domain/afip"
	"github.com/tiendago/facturacion-api/internal/domain/entity"
	"github.com/tiendago/facturacion-api/internal/domain/repository"
	infraafip "github.com/tiendago/facturacion-api/internal/infrastructure/afip"
	pkgafip "github.com/tiendago/facturacion-api/pkg/afip"
	"github.com/tiendago/facturacion-api/pkg/logger"
)

// SellerConfig identifica al emisor: CUIT, punto de venta y condición frente
// al IVA. Configuración de cambio lento, leída al armar cada comprobante.
type SellerConfig struct {
	CUIT        int64
	PointOfSale int
	TaxClass    domafip.TaxClass
	Name        string
	Address     string
}

// IssueInvoiceUseCase es el único punto de entrada de emisión. No expone
// estado parcial: el invariante "a lo sumo una factura por orden" se hace
// cumplir en este choke point.
type IssueInvoiceUseCase struct {
	orders   repository.OrderRepository
	ledger   repository.InvoiceRepository
	attempts repository.AttemptRepository
	sessions infraafip.SessionProvider
	fiscal   infraafip.FiscalService
	seller   SellerConfig
	locks    *keyedLock
	log      *logger.Logger
}

// NewIssueInvoiceUseCase construye el orquestador con sus puertos.
func NewIssueInvoiceUseCase(
	orders repository.OrderRepository,
	ledger repository.InvoiceRepository,
	attempts repository.AttemptRepository,
	sessions infraafip.SessionProvider,
	fiscal infraafip.FiscalService,
	seller SellerConfig,
	log *logger.Logger,
) *IssueInvoiceUseCase {
	return &IssueInvoiceUseCase{
		orders:   orders,
		ledger:   ledger,
		attempts: attempts,
		sessions: sessions,
		fiscal:   fiscal,
		seller:   seller,
		locks:    newKeyedLock(),
		log:      log,
	}
}

// GetInvoiceForOrder devuelve la factura emitida para la orden, o
// domain.ErrNotFound si la orden aún no tiene comprobante.
func (uc *IssueInvoiceUseCase) GetInvoiceForOrder(ctx context.Context, orderID string) (*entity.IssuedInvoice, error) {
	inv, err := uc.ledger.FindByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}
	return inv, nil
}

// IssueInvoice emite el comprobante para una orden pagada. Idempotente por
// orden: si ya existe una factura, la devuelve sin re-enviar.
func (uc *IssueInvoiceUseCase) IssueInvoice(ctx context.Context, orderID string) (*entity.IssuedInvoice, error) {
	if orderID == "" {
		return nil, domain.ErrInvalidInput
	}

	// ── Idle: guard de idempotencia ───────────────────────────────────────
	if existing, err := uc.ledger.FindByOrder(ctx, orderID); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	order, err := uc.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	if !order.Paid() {
		return nil, domain.ErrOrderNotPaid
	}

	req, err := uc.buildRequest(order)
	if err != nil {
		return nil, err
	}

	// ── SessionReady ──────────────────────────────────────────────────────
	sess, err := uc.sessions.EnsureSession(ctx)
	if err != nil {
		uc.audit(ctx, &entity.FailedAttempt{
			OrderID:      orderID,
			PointOfSale:  req.PtoVta,
			VoucherType:  req.CbteTipo,
			ErrorCode:    "AUTH",
			ErrorMessage: err.Error(),
			AttemptedAt:  time.Now(),
		})
		return nil, err
	}

	// ── NumberReserved: serialización por (ptoVta, cbteTipo) ──────────────
	// La cancelación del caller vale solo hasta acá: con el lock tomado el
	// intento se completa y registra aunque el caller se vaya.
	key := fmt.Sprintf("%d-%d", req.PtoVta, req.CbteTipo)
	if err := uc.locks.acquire(ctx, key); err != nil {
		return nil, err
	}
	defer uc.locks.release(key)

	// Releer el libro bajo el lock: otro caller pudo emitir esta orden
	// mientras esperábamos el turno.
	if existing, err := uc.ledger.FindByOrder(ctx, orderID); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	// Intento indeterminado pendiente: conciliar contra AFIP antes de
	// resolver un número nuevo.
	if recovered, err := uc.reconcile(ctx, sess, order, req); err != nil {
		return nil, err
	} else if recovered != nil {
		return recovered, nil
	}

	last, err := uc.fiscal.LastAuthorized(ctx, sess, req.PtoVta, req.CbteTipo)
	if err != nil {
		uc.audit(ctx, &entity.FailedAttempt{
			OrderID:      orderID,
			PointOfSale:  req.PtoVta,
			VoucherType:  req.CbteTipo,
			ErrorCode:    "RESOLVER",
			ErrorMessage: err.Error(),
			AttemptedAt:  time.Now(),
		})
		return nil, fmt.Errorf("resolver número para %s: %w", key, err)
	}
	req.CbteNro = last + 1

	uc.log.Debug().
		Str("order_id", orderID).
		Int("pto_vta", req.PtoVta).
		Int("cbte_tipo", req.CbteTipo).
		Int64("cbte_nro", req.CbteNro).
		Msg("número reservado, enviando solicitud de CAE")

	// ── Submitted ─────────────────────────────────────────────────────────
	// El envío corre con el contexto desacoplado de la cancelación del
	// caller: un envío abandonado a mitad de vuelo es indistinguible de uno
	// indeterminado y obligaría a conciliar igual.
	result, err := uc.fiscal.Authorize(context.WithoutCancel(ctx), sess, req)
	if err != nil {
		// Falla previa al envío: AFIP no vio el request, el número no se quemó.
		uc.audit(ctx, &entity.FailedAttempt{
			OrderID:         orderID,
			PointOfSale:     req.PtoVta,
			VoucherType:     req.CbteTipo,
			AttemptedNumber: req.CbteNro,
			ErrorCode:       "BUILD",
			ErrorMessage:    err.Error(),
			AttemptedAt:     time.Now(),
		})
		return nil, fmt.Errorf("armar solicitud de CAE: %w", err)
	}

	// ── Terminal ──────────────────────────────────────────────────────────
	switch result.Outcome {
	case infraafip.OutcomeApproved:
		inv := uc.issuedFrom(order, req, result.CAE, result.CAEExpiry)
		if err := uc.ledger.Record(ctx, inv); err != nil {
			// El CAE ya fue consumido en AFIP: si el libro falla, el intento
			// queda pendiente de conciliación para recuperar el CAE en la
			// próxima emisión en lugar de quemar un número nuevo.
			uc.audit(ctx, &entity.FailedAttempt{
				OrderID:         orderID,
				PointOfSale:     req.PtoVta,
				VoucherType:     req.CbteTipo,
				AttemptedNumber: req.CbteNro,
				ErrorCode:       "LEDGER",
				ErrorMessage:    fmt.Sprintf("CAE %s autorizado pero no persistido: %v", result.CAE, err),
				Indeterminate:   true,
				AttemptedAt:     time.Now(),
			})
			return nil, fmt.Errorf("persistir factura autorizada (CAE %s): %w", result.CAE, err)
		}
		uc.log.Info().
			Str("order_id", orderID).
			Str("numero", inv.FormattedNumber()).
			Str("cae", inv.CAE).
			Msg("comprobante autorizado por AFIP")
		return inv, nil

	case infraafip.OutcomeRejected:
		// 600/601: token o sign inválidos. La sesión cacheada ya no sirve;
		// descartarla para que el próximo intento renueve en vez de repetir
		// el mismo rechazo hasta que venza el margen.
		if result.Code == "600" || result.Code == "601" {
			uc.sessions.Invalidate()
		}
		uc.audit(ctx, &entity.FailedAttempt{
			OrderID:         orderID,
			PointOfSale:     req.PtoVta,
			VoucherType:     req.CbteTipo,
			AttemptedNumber: req.CbteNro,
			ErrorCode:       result.Code,
			ErrorMessage:    result.Message,
			AttemptedAt:     time.Now(),
		})
		uc.log.Warn().
			Str("order_id", orderID).
			Str("codigo", result.Code).
			Str("mensaje", result.Message).
			Msg("comprobante rechazado por AFIP")
		// El número no fue consumido: un reintento vuelve a resolver el mismo.
		return nil, &domain.RejectionError{Code: result.Code, Message: result.Message}

	default: // OutcomeIndeterminate
		uc.audit(ctx, &entity.FailedAttempt{
			OrderID:         orderID,
			PointOfSale:     req.PtoVta,
			VoucherType:     req.CbteTipo,
			AttemptedNumber: req.CbteNro,
			ErrorCode:       "INDETERMINATE",
			ErrorMessage:    fmt.Sprintf("%v", result.Cause),
			Indeterminate:   true,
			AttemptedAt:     time.Now(),
		})
		uc.log.Error().
			Str("order_id", orderID).
			Int64("cbte_nro", req.CbteNro).
			AnErr("causa", result.Cause).
			Msg("resultado indeterminado: requiere conciliación")
		return nil, fmt.Errorf("%w (nro intentado %d): %v", domain.ErrMustReconcile, req.CbteNro, result.Cause)
	}
}

// reconcile resuelve un intento indeterminado pendiente para la orden. Vuelve
// a consultar el último autorizado y, si AFIP consumió el número intentado,
// recupera el CAE comparando el comprobante registrado contra la orden. Se
// ejecuta bajo el lock de la clave.
func (uc *IssueInvoiceUseCase) reconcile(ctx context.Context, sess *infraafip.Session, order *entity.Order, req *infraafip.VoucherRequest) (*entity.IssuedInvoice, error) {
	att, err := uc.attempts.LastIndeterminate(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if att == nil {
		return nil, nil
	}

	last, err := uc.fiscal.LastAuthorized(ctx, sess, att.PointOfSale, att.VoucherType)
	if err != nil {
		return nil, fmt.Errorf("%w: no se pudo verificar el último autorizado: %v", domain.ErrMustReconcile, err)
	}

	if att.AttemptedNumber > last {
		// AFIP nunca consumió el número: el intento previo no llegó. Es
		// seguro continuar con una resolución fresca.
		if err := uc.attempts.MarkReconciled(ctx, att.ID, time.Now()); err != nil {
			return nil, err
		}
		uc.log.Info().
			Str("order_id", order.ID).
			Int64("nro_intentado", att.AttemptedNumber).
			Msg("intento indeterminado conciliado: el número no fue consumido")
		return nil, nil
	}

	voucher, err := uc.fiscal.QueryVoucher(ctx, sess, att.PointOfSale, att.VoucherType, att.AttemptedNumber)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			if mErr := uc.attempts.MarkReconciled(ctx, att.ID, time.Now()); mErr != nil {
				return nil, mErr
			}
			return nil, nil
		}
		return nil, fmt.Errorf("%w: no se pudo consultar el comprobante intentado: %v", domain.ErrMustReconcile, err)
	}

	if voucher.ImpTotal.Equal(order.Total.Round(2)) && voucher.DocNro == req.DocNro {
		// El envío "perdido" en realidad fue autorizado: recuperar el CAE.
		// El intento se marca conciliado recién después de persistir; si el
		// libro falla, queda pendiente y la próxima emisión vuelve acá en
		// lugar de resolver un número nuevo.
		req.CbteNro = att.AttemptedNumber
		inv := uc.issuedFrom(order, req, voucher.CAE, voucher.CAEExpiry)
		if err := uc.ledger.Record(ctx, inv); err != nil {
			return nil, fmt.Errorf("persistir factura recuperada (CAE %s): %w", voucher.CAE, err)
		}
		if err := uc.attempts.MarkReconciled(ctx, att.ID, time.Now()); err != nil {
			// La factura ya está en el libro: el guard de idempotencia cubre
			// las próximas llamadas aunque el intento quede abierto.
			uc.log.Error().Err(err).
				Str("order_id", order.ID).
				Msg("no se pudo cerrar el intento conciliado")
		}
		uc.log.Info().
			Str("order_id", order.ID).
			Str("numero", inv.FormattedNumber()).
			Str("cae", inv.CAE).
			Msg("CAE recuperado en conciliación")
		return inv, nil
	}

	// El número fue consumido por otro comprobante: el intento de esta orden
	// no llegó a AFIP. Continuar con resolución fresca.
	if err := uc.attempts.MarkReconciled(ctx, att.ID, time.Now()); err != nil {
		return nil, err
	}
	uc.log.Warn().
		Str("order_id", order.ID).
		Int64("nro_intentado", att.AttemptedNumber).
		Msg("el número intentado fue consumido por otro comprobante")
	return nil, nil
}

// buildRequest deriva letra, documento del receptor y desagregado de montos a
// partir de la orden y la condición del emisor. El request resultante es
// inmutable para el intento (salvo el número, que se resuelve bajo el lock).
func (uc *IssueInvoiceUseCase) buildRequest(order *entity.Order) (*infraafip.VoucherRequest, error) {
	buyerClass := domafip.TaxClass(order.BuyerTaxClass)
	if !buyerClass.Valid() {
		return nil, fmt.Errorf("%w: clase tributaria del comprador desconocida %q", domain.ErrInvalidInput, order.BuyerTaxClass)
	}
	kind := domafip.DetermineKind(uc.seller.TaxClass, buyerClass)
	cbteTipo, err := pkgafip.VoucherCode(string(kind), pkgafip.DocFactura)
	if err != nil {
		return nil, err
	}
	docTipo, docNro, err := domafip.BuyerDocument(buyerClass, order.BuyerTaxID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	total := order.Total.Round(2)
	req := &infraafip.VoucherRequest{
		PtoVta:   uc.seller.PointOfSale,
		CbteTipo: cbteTipo,
		Concepto: order.Concept,
		DocTipo:  docTipo,
		DocNro:   docNro,
		CbteFch:  time.Now(),
		ImpTotal: total,
	}
	if order.Concept <= 0 {
		req.Concepto = 1
	}
	if req.Concepto != 1 {
		req.FchServDesde = order.ServiceFrom
		req.FchServHasta = order.ServiceTo
		due := time.Now()
		req.FchVtoPago = &due
	}

	if kind == domafip.KindC {
		// Monotributo no discrimina IVA: todo el importe es neto.
		req.ImpNeto = total
		req.ImpIVA = decimal.Zero
		return req, nil
	}

	lines := make([]domafip.TaxedLine, 0, len(order.Items))
	sum := decimal.Zero
	for _, item := range order.Items {
		lines = append(lines, domafip.TaxedLine{Gross: item.LineTotal, Rate: item.IVARate})
		sum = sum.Add(item.LineTotal)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: la orden no tiene líneas", domain.ErrInvalidInput)
	}
	if !sum.Round(2).Equal(total) {
		return nil, fmt.Errorf("%w: las líneas suman %s pero el total de la orden es %s",
			domain.ErrInvalidInput, sum.Round(2), total)
	}
	breakdown, err := domafip.BuildIVABreakdown(lines)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	net, tax, _ := domafip.SumBreakdown(breakdown)
	req.ImpNeto = net
	req.ImpIVA = tax
	req.IVA = breakdown
	return req, nil
}

func (uc *IssueInvoiceUseCase) issuedFrom(order *entity.Order, req *infraafip.VoucherRequest, cae string, caeExpiry time.Time) *entity.IssuedInvoice {
	now := time.Now()
	return &entity.IssuedInvoice{
		ID:          uuid.New().String(),
		OrderID:     order.ID,
		PointOfSale: req.PtoVta,
		VoucherType: req.CbteTipo,
		Number:      req.CbteNro,
		CAE:         cae,
		CAEExpiry:   caeExpiry,
		BuyerName:   pkgafip.NormalizeName(order.BuyerName),
		DocTipo:     req.DocTipo,
		DocNro:      req.DocNro,
		NetAmount:   req.ImpNeto,
		IVAAmount:   req.ImpIVA,
		TotalAmount: req.ImpTotal,
		IssuedAt:    now,
		CreatedAt:   now,
	}
}

// audit registra el intento fallido; una falla de auditoría se loguea pero no
// pisa el error principal que verá el caller.
func (uc *IssueInvoiceUseCase) audit(ctx context.Context, att *entity.FailedAttempt) {
	att.ID = uuid.New().String()
	if err := uc.attempts.RecordFailure(context.WithoutCancel(ctx), att); err != nil {
		uc.log.Error().Err(err).
			Str("order_id", att.OrderID).
			Msg("no se pudo registrar el intento fallido")
	}
}
