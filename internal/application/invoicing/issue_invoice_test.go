package invoicing

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiendago/facturacion-api/internal/domain"
	domafip "github.com/tiendago/facturacion-api/internal/domain/afip"
	"github.com/tiendago/facturacion-api/internal/domain/entity"
	infraafip "github.com/tiendago/facturacion-api/internal/infrastructure/afip"
	"github.com/tiendago/facturacion-api/pkg/logger"
)

// ── Fakes en memoria ──────────────────────────────────────────────────────────

type fakeOrders struct {
	mu     sync.Mutex
	orders map[string]*entity.Order
}

func (f *fakeOrders) GetByID(_ context.Context, id string) (*entity.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orders[id], nil
}

type fakeLedger struct {
	mu       sync.Mutex
	byOrder  map[string]*entity.IssuedInvoice
	failNext int // cantidad de Record que fallan antes de volver a funcionar
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{byOrder: make(map[string]*entity.IssuedInvoice)}
}

func (f *fakeLedger) Record(_ context.Context, inv *entity.IssuedInvoice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext > 0 {
		f.failNext--
		return fmt.Errorf("conexión a la base perdida")
	}
	if _, ok := f.byOrder[inv.OrderID]; ok {
		return fmt.Errorf("orden %s: %w", inv.OrderID, domain.ErrDuplicate)
	}
	f.byOrder[inv.OrderID] = inv
	return nil
}

func (f *fakeLedger) FindByOrder(_ context.Context, orderID string) (*entity.IssuedInvoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byOrder[orderID], nil
}

func (f *fakeLedger) GetByID(_ context.Context, id string) (*entity.IssuedInvoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inv := range f.byOrder {
		if inv.ID == id {
			return inv, nil
		}
	}
	return nil, nil
}

func (f *fakeLedger) FindByNumber(_ context.Context, ptoVta, cbteTipo int, nro int64) (*entity.IssuedInvoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inv := range f.byOrder {
		if inv.PointOfSale == ptoVta && inv.VoucherType == cbteTipo && inv.Number == nro {
			return inv, nil
		}
	}
	return nil, nil
}

type fakeAttempts struct {
	mu       sync.Mutex
	attempts []*entity.FailedAttempt
}

func (f *fakeAttempts) RecordFailure(_ context.Context, att *entity.FailedAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *att
	f.attempts = append(f.attempts, &cp)
	return nil
}

func (f *fakeAttempts) LastIndeterminate(_ context.Context, orderID string) (*entity.FailedAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.attempts) - 1; i >= 0; i-- {
		att := f.attempts[i]
		if att.OrderID == orderID && att.Indeterminate && att.ReconciledAt == nil {
			cp := *att
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeAttempts) MarkReconciled(_ context.Context, attemptID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, att := range f.attempts {
		if att.ID == attemptID && att.ReconciledAt == nil {
			att.ReconciledAt = &at
			return nil
		}
	}
	return nil
}

func (f *fakeAttempts) last(t *testing.T) *entity.FailedAttempt {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.attempts)
	return f.attempts[len(f.attempts)-1]
}

// stubFiscal permite guionar las respuestas de WSFE por escenario.
type stubFiscal struct {
	mu             sync.Mutex
	last           int64
	lastErr        error
	authorize      func(req *infraafip.VoucherRequest) (*infraafip.CAEResult, error)
	authorizeCalls int
	query          func(nro int64) (*infraafip.IssuedVoucher, error)
}

func (s *stubFiscal) LastAuthorized(context.Context, *infraafip.Session, int, int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.lastErr
}

func (s *stubFiscal) Authorize(_ context.Context, _ *infraafip.Session, req *infraafip.VoucherRequest) (*infraafip.CAEResult, error) {
	s.mu.Lock()
	s.authorizeCalls++
	s.mu.Unlock()
	return s.authorize(req)
}

func (s *stubFiscal) QueryVoucher(_ context.Context, _ *infraafip.Session, _, _ int, nro int64) (*infraafip.IssuedVoucher, error) {
	return s.query(nro)
}

func (s *stubFiscal) Dummy(context.Context) (*infraafip.ServiceStatus, error) {
	return &infraafip.ServiceStatus{AppServer: "OK", DbServer: "OK", AuthServer: "OK"}, nil
}

type failingSessions struct{}

func (failingSessions) EnsureSession(context.Context) (*infraafip.Session, error) {
	return nil, fmt.Errorf("%w: firmador caído", domain.ErrAuthenticationFailed)
}

func (failingSessions) Invalidate() {}

// trackedSessions registra las invalidaciones pedidas por el orquestador.
type trackedSessions struct {
	infraafip.DevSessionProvider
	invalidated int
}

func (s *trackedSessions) Invalidate() {
	s.invalidated++
	s.DevSessionProvider.Invalidate()
}

// ── Fixtures ──────────────────────────────────────────────────────────────────

var testSeller = SellerConfig{
	CUIT:        20123456786,
	PointOfSale: 1,
	TaxClass:    domafip.ResponsableInscripto,
	Name:        "Tienda SRL",
	Address:     "Av. Corrientes 1234, CABA",
}

func paidOrder(id string) *entity.Order {
	paid := time.Now()
	return &entity.Order{
		ID:            id,
		BuyerName:     "Juan Pérez",
		BuyerTaxClass: string(domafip.ConsumidorFinal),
		Total:         decimal.RequireFromString("121.00"),
		Concept:       1,
		PaidAt:        &paid,
		Items: []entity.OrderItem{{
			ID:          "item-1",
			OrderID:     id,
			Description: "Suscripción mensual",
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   decimal.RequireFromString("121.00"),
			IVARate:     decimal.RequireFromString("0.21"),
			LineTotal:   decimal.RequireFromString("121.00"),
		}},
		CreatedAt: time.Now(),
	}
}

type testEnv struct {
	uc       *IssueInvoiceUseCase
	orders   *fakeOrders
	ledger   *fakeLedger
	attempts *fakeAttempts
}

func newTestEnv(fiscal infraafip.FiscalService, orders ...*entity.Order) *testEnv {
	byID := make(map[string]*entity.Order)
	for _, o := range orders {
		byID[o.ID] = o
	}
	env := &testEnv{
		orders:   &fakeOrders{orders: byID},
		ledger:   newFakeLedger(),
		attempts: &fakeAttempts{},
	}
	env.uc = NewIssueInvoiceUseCase(
		env.orders, env.ledger, env.attempts,
		&infraafip.DevSessionProvider{}, fiscal,
		testSeller, logger.Nop(),
	)
	return env
}

// ── Emisión ───────────────────────────────────────────────────────────────────

func TestIssueInvoice_Aprobado(t *testing.T) {
	env := newTestEnv(infraafip.NewDevFiscalService(), paidOrder("ord-1"))

	inv, err := env.uc.IssueInvoice(context.Background(), "ord-1")
	require.NoError(t, err)

	// RI → consumidor final: Factura B, primer número de la secuencia.
	assert.Equal(t, 1, inv.PointOfSale)
	assert.Equal(t, 6, inv.VoucherType)
	assert.Equal(t, int64(1), inv.Number)
	assert.Equal(t, "0001-00000001", inv.FormattedNumber())
	assert.NotEmpty(t, inv.CAE)
	assert.Equal(t, 99, inv.DocTipo)
	assert.Equal(t, int64(0), inv.DocNro)
	// El nombre del receptor viaja plegado al ASCII que aceptan los WS.
	assert.Equal(t, "Juan Perez", inv.BuyerName)
	assert.True(t, inv.NetAmount.Equal(decimal.RequireFromString("100.00")))
	assert.True(t, inv.IVAAmount.Equal(decimal.RequireFromString("21.00")))
	assert.True(t, inv.TotalAmount.Equal(decimal.RequireFromString("121.00")))

	persisted, err := env.ledger.FindByOrder(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, inv.ID, persisted.ID)
}

func TestIssueInvoice_IdempotentePorOrden(t *testing.T) {
	fiscal := infraafip.NewDevFiscalService()
	env := newTestEnv(fiscal, paidOrder("ord-1"))

	first, err := env.uc.IssueInvoice(context.Background(), "ord-1")
	require.NoError(t, err)
	second, err := env.uc.IssueInvoice(context.Background(), "ord-1")
	require.NoError(t, err)

	// La segunda llamada devuelve la misma factura sin re-enviar.
	assert.Equal(t, first.ID, second.ID)
	last, _ := fiscal.LastAuthorized(context.Background(), nil, 1, 6)
	assert.Equal(t, int64(1), last)
}

func TestIssueInvoice_OrdenInexistente(t *testing.T) {
	env := newTestEnv(infraafip.NewDevFiscalService())
	_, err := env.uc.IssueInvoice(context.Background(), "no-existe")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIssueInvoice_OrdenImpaga(t *testing.T) {
	order := paidOrder("ord-1")
	order.PaidAt = nil
	env := newTestEnv(infraafip.NewDevFiscalService(), order)

	_, err := env.uc.IssueInvoice(context.Background(), "ord-1")
	assert.ErrorIs(t, err, domain.ErrOrderNotPaid)
}

func TestIssueInvoice_LineasNoSumanElTotal(t *testing.T) {
	order := paidOrder("ord-1")
	order.Total = decimal.RequireFromString("999.00")
	env := newTestEnv(infraafip.NewDevFiscalService(), order)

	_, err := env.uc.IssueInvoice(context.Background(), "ord-1")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIssueInvoice_ClaseTributariaDesconocida(t *testing.T) {
	order := paidOrder("ord-1")
	order.BuyerTaxClass = "martiano"
	env := newTestEnv(infraafip.NewDevFiscalService(), order)

	_, err := env.uc.IssueInvoice(context.Background(), "ord-1")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIssueInvoice_FacturaA_CompradorInscripto(t *testing.T) {
	order := paidOrder("ord-1")
	order.BuyerTaxClass = string(domafip.ResponsableInscripto)
	order.BuyerTaxID = "30-71513445-0"
	env := newTestEnv(infraafip.NewDevFiscalService(), order)

	inv, err := env.uc.IssueInvoice(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, 1, inv.VoucherType) // Factura A
	assert.Equal(t, 80, inv.DocTipo)    // CUIT
	assert.Equal(t, int64(30715134450), inv.DocNro)
}

func TestIssueInvoice_FacturaC_EmisorMonotributista(t *testing.T) {
	order := paidOrder("ord-1")
	env := newTestEnv(infraafip.NewDevFiscalService(), order)
	env.uc.seller.TaxClass = domafip.Monotributo

	inv, err := env.uc.IssueInvoice(context.Background(), "ord-1")
	require.NoError(t, err)

	// La familia C no discrimina IVA: todo el importe es neto.
	assert.Equal(t, 11, inv.VoucherType)
	assert.True(t, inv.NetAmount.Equal(decimal.RequireFromString("121.00")))
	assert.True(t, inv.IVAAmount.IsZero())
}

func TestIssueInvoice_FallaDeSesion(t *testing.T) {
	env := newTestEnv(infraafip.NewDevFiscalService(), paidOrder("ord-1"))
	env.uc.sessions = failingSessions{}

	_, err := env.uc.IssueInvoice(context.Background(), "ord-1")
	require.ErrorIs(t, err, domain.ErrAuthenticationFailed)

	att := env.attempts.last(t)
	assert.Equal(t, "AUTH", att.ErrorCode)
	assert.False(t, att.Indeterminate)
}

func TestIssueInvoice_Rechazo(t *testing.T) {
	fiscal := &stubFiscal{
		last: 41,
		authorize: func(*infraafip.VoucherRequest) (*infraafip.CAEResult, error) {
			return &infraafip.CAEResult{
				Outcome: infraafip.OutcomeRejected,
				Code:    "10048",
				Message: "DocNro invalido para DocTipo",
			}, nil
		},
		query: func(int64) (*infraafip.IssuedVoucher, error) { return nil, domain.ErrNotFound },
	}
	env := newTestEnv(fiscal, paidOrder("ord-1"))

	_, err := env.uc.IssueInvoice(context.Background(), "ord-1")

	var rej *domain.RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "10048", rej.Code)

	// El rechazo queda auditado como intento no indeterminado y nada llega
	// al libro: el número 42 sigue disponible para el reintento.
	att := env.attempts.last(t)
	assert.Equal(t, int64(42), att.AttemptedNumber)
	assert.Equal(t, "10048", att.ErrorCode)
	assert.False(t, att.Indeterminate)

	inv, _ := env.ledger.FindByOrder(context.Background(), "ord-1")
	assert.Nil(t, inv)
}

func TestIssueInvoice_Indeterminado(t *testing.T) {
	fiscal := &stubFiscal{
		last: 9,
		authorize: func(*infraafip.VoucherRequest) (*infraafip.CAEResult, error) {
			return &infraafip.CAEResult{
				Outcome: infraafip.OutcomeIndeterminate,
				Cause:   fmt.Errorf("timeout esperando la respuesta"),
			}, nil
		},
	}
	env := newTestEnv(fiscal, paidOrder("ord-1"))

	_, err := env.uc.IssueInvoice(context.Background(), "ord-1")
	require.ErrorIs(t, err, domain.ErrMustReconcile)

	att := env.attempts.last(t)
	assert.True(t, att.Indeterminate)
	assert.Equal(t, int64(10), att.AttemptedNumber)
	assert.Nil(t, att.ReconciledAt)

	inv, _ := env.ledger.FindByOrder(context.Background(), "ord-1")
	assert.Nil(t, inv)
}

func TestIssueInvoice_RechazoPorTokenInvalidoDescartaLaSesion(t *testing.T) {
	fiscal := &stubFiscal{
		last: 9,
		authorize: func(*infraafip.VoucherRequest) (*infraafip.CAEResult, error) {
			return &infraafip.CAEResult{
				Outcome: infraafip.OutcomeRejected,
				Code:    "600",
				Message: "ValidacionDeToken: token invalido",
			}, nil
		},
	}
	env := newTestEnv(fiscal, paidOrder("ord-1"))
	sessions := &trackedSessions{}
	env.uc.sessions = sessions

	_, err := env.uc.IssueInvoice(context.Background(), "ord-1")

	var rej *domain.RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, 1, sessions.invalidated)
}

func TestIssueInvoice_RechazoComunNoDescartaLaSesion(t *testing.T) {
	fiscal := &stubFiscal{
		last: 9,
		authorize: func(*infraafip.VoucherRequest) (*infraafip.CAEResult, error) {
			return &infraafip.CAEResult{
				Outcome: infraafip.OutcomeRejected,
				Code:    "10048",
				Message: "DocNro invalido para DocTipo",
			}, nil
		},
	}
	env := newTestEnv(fiscal, paidOrder("ord-1"))
	sessions := &trackedSessions{}
	env.uc.sessions = sessions

	_, err := env.uc.IssueInvoice(context.Background(), "ord-1")

	var rej *domain.RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, 0, sessions.invalidated)
}

func TestIssueInvoice_RegistroFallaTrasAprobacion_NoQuemaUnSegundoCAE(t *testing.T) {
	fiscal := infraafip.NewDevFiscalService()
	env := newTestEnv(fiscal, paidOrder("ord-1"))
	env.ledger.failNext = 1

	// AFIP autorizó pero el libro no pudo persistir: el error vuelve al
	// caller y el intento queda pendiente de conciliación.
	_, err := env.uc.IssueInvoice(context.Background(), "ord-1")
	require.Error(t, err)

	att := env.attempts.last(t)
	assert.True(t, att.Indeterminate)
	assert.Equal(t, "LEDGER", att.ErrorCode)
	assert.Equal(t, int64(1), att.AttemptedNumber)
	assert.Nil(t, att.ReconciledAt)

	// La próxima emisión concilia y recupera el CAE ya consumido en lugar
	// de enviar un segundo comprobante para la misma orden.
	inv, err := env.uc.IssueInvoice(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), inv.Number)

	last, _ := fiscal.LastAuthorized(context.Background(), nil, 1, 6)
	assert.Equal(t, int64(1), last, "AFIP no debe consumir un segundo número")
}

// ── Conciliación ──────────────────────────────────────────────────────────────

func seedIndeterminate(env *testEnv, orderID string, nro int64) {
	env.attempts.attempts = append(env.attempts.attempts, &entity.FailedAttempt{
		ID:              "att-1",
		OrderID:         orderID,
		PointOfSale:     1,
		VoucherType:     6,
		AttemptedNumber: nro,
		ErrorCode:       "INDETERMINATE",
		Indeterminate:   true,
		AttemptedAt:     time.Now().Add(-time.Minute),
	})
}

func TestIssueInvoice_ConciliacionRecuperaCAE(t *testing.T) {
	fiscal := &stubFiscal{
		last: 42, // AFIP sí registró el número intentado
		query: func(nro int64) (*infraafip.IssuedVoucher, error) {
			return &infraafip.IssuedVoucher{
				PtoVta:    1,
				CbteTipo:  6,
				CbteNro:   nro,
				DocTipo:   99,
				DocNro:    0,
				ImpTotal:  decimal.RequireFromString("121.00"),
				CAE:       "74123456789012",
				CAEExpiry: time.Now().AddDate(0, 0, 10),
			}, nil
		},
	}
	env := newTestEnv(fiscal, paidOrder("ord-1"))
	seedIndeterminate(env, "ord-1", 42)

	inv, err := env.uc.IssueInvoice(context.Background(), "ord-1")
	require.NoError(t, err)

	// El envío "perdido" había sido autorizado: se recupera sin re-emitir.
	assert.Equal(t, int64(42), inv.Number)
	assert.Equal(t, "74123456789012", inv.CAE)
	assert.Equal(t, 0, fiscal.authorizeCalls)
	assert.NotNil(t, env.attempts.attempts[0].ReconciledAt)
}

func TestIssueInvoice_ConciliacionNoCierraElIntentoSiElRegistroFalla(t *testing.T) {
	fiscal := &stubFiscal{
		last: 42,
		query: func(nro int64) (*infraafip.IssuedVoucher, error) {
			return &infraafip.IssuedVoucher{
				PtoVta:    1,
				CbteTipo:  6,
				CbteNro:   nro,
				DocTipo:   99,
				DocNro:    0,
				ImpTotal:  decimal.RequireFromString("121.00"),
				CAE:       "74123456789012",
				CAEExpiry: time.Now().AddDate(0, 0, 10),
			}, nil
		},
	}
	env := newTestEnv(fiscal, paidOrder("ord-1"))
	seedIndeterminate(env, "ord-1", 42)
	env.ledger.failNext = 1

	_, err := env.uc.IssueInvoice(context.Background(), "ord-1")
	require.Error(t, err)

	// El intento sigue abierto: la próxima emisión vuelve a conciliar y
	// recupera el mismo CAE en vez de resolver un número nuevo.
	assert.Nil(t, env.attempts.attempts[0].ReconciledAt)

	inv, err := env.uc.IssueInvoice(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), inv.Number)
	assert.Equal(t, "74123456789012", inv.CAE)
	assert.Equal(t, 0, fiscal.authorizeCalls)
	assert.NotNil(t, env.attempts.attempts[0].ReconciledAt)
}

func TestIssueInvoice_ConciliacionNumeroNoConsumido(t *testing.T) {
	fiscal := &stubFiscal{
		last: 4, // el 5 intentado nunca llegó a AFIP
		authorize: func(req *infraafip.VoucherRequest) (*infraafip.CAEResult, error) {
			return &infraafip.CAEResult{
				Outcome:   infraafip.OutcomeApproved,
				CAE:       "75000011112222",
				CAEExpiry: time.Now().AddDate(0, 0, 10),
			}, nil
		},
	}
	env := newTestEnv(fiscal, paidOrder("ord-1"))
	seedIndeterminate(env, "ord-1", 5)

	inv, err := env.uc.IssueInvoice(context.Background(), "ord-1")
	require.NoError(t, err)

	// Conciliado y re-emitido con resolución fresca (4 + 1).
	assert.Equal(t, int64(5), inv.Number)
	assert.Equal(t, 1, fiscal.authorizeCalls)
	assert.NotNil(t, env.attempts.attempts[0].ReconciledAt)
}

func TestIssueInvoice_ConciliacionNumeroDeOtroComprobante(t *testing.T) {
	fiscal := &stubFiscal{
		last: 42,
		query: func(nro int64) (*infraafip.IssuedVoucher, error) {
			// El número existe pero pertenece a otra operación.
			return &infraafip.IssuedVoucher{
				PtoVta:   1,
				CbteTipo: 6,
				CbteNro:  nro,
				DocNro:   20304050607,
				ImpTotal: decimal.RequireFromString("5000.00"),
				CAE:      "79999999999999",
			}, nil
		},
		authorize: func(req *infraafip.VoucherRequest) (*infraafip.CAEResult, error) {
			return &infraafip.CAEResult{
				Outcome:   infraafip.OutcomeApproved,
				CAE:       "75000099998888",
				CAEExpiry: time.Now().AddDate(0, 0, 10),
			}, nil
		},
	}
	env := newTestEnv(fiscal, paidOrder("ord-1"))
	seedIndeterminate(env, "ord-1", 42)

	inv, err := env.uc.IssueInvoice(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, int64(43), inv.Number)
	assert.Equal(t, "75000099998888", inv.CAE)
	assert.NotNil(t, env.attempts.attempts[0].ReconciledAt)
}

func TestIssueInvoice_ConciliacionConsultaFalla(t *testing.T) {
	fiscal := &stubFiscal{
		last: 42,
		query: func(int64) (*infraafip.IssuedVoucher, error) {
			return nil, fmt.Errorf("timeout consultando el comprobante")
		},
	}
	env := newTestEnv(fiscal, paidOrder("ord-1"))
	seedIndeterminate(env, "ord-1", 42)

	_, err := env.uc.IssueInvoice(context.Background(), "ord-1")
	require.ErrorIs(t, err, domain.ErrMustReconcile)

	// El intento sigue pendiente: la próxima emisión vuelve a conciliar.
	assert.Nil(t, env.attempts.attempts[0].ReconciledAt)
}

// ── Concurrencia ──────────────────────────────────────────────────────────────

func TestIssueInvoice_EmisionesConcurrentesNumeranSinHuecos(t *testing.T) {
	const n = 8
	orders := make([]*entity.Order, 0, n)
	for i := 0; i < n; i++ {
		orders = append(orders, paidOrder(fmt.Sprintf("ord-%d", i)))
	}
	env := newTestEnv(infraafip.NewDevFiscalService(), orders...)

	var wg sync.WaitGroup
	results := make([]*entity.IssuedInvoice, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			inv, err := env.uc.IssueInvoice(context.Background(), fmt.Sprintf("ord-%d", i))
			assert.NoError(t, err)
			results[i] = inv
		}(i)
	}
	wg.Wait()

	// Los números asignados son exactamente 1..n, sin repetidos ni huecos.
	seen := make(map[int64]bool, n)
	for _, inv := range results {
		require.NotNil(t, inv)
		assert.False(t, seen[inv.Number], "número repetido: %d", inv.Number)
		seen[inv.Number] = true
	}
	for nro := int64(1); nro <= n; nro++ {
		assert.True(t, seen[nro], "falta el número %d", nro)
	}
}

func TestIssueInvoice_MismaOrdenConcurrenteEmiteUnaSola(t *testing.T) {
	fiscal := infraafip.NewDevFiscalService()
	env := newTestEnv(fiscal, paidOrder("ord-1"))

	var wg sync.WaitGroup
	invoices := make([]*entity.IssuedInvoice, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			inv, err := env.uc.IssueInvoice(context.Background(), "ord-1")
			assert.NoError(t, err)
			invoices[i] = inv
		}(i)
	}
	wg.Wait()

	for _, inv := range invoices {
		require.NotNil(t, inv)
		assert.Equal(t, invoices[0].ID, inv.ID)
	}
	last, _ := fiscal.LastAuthorized(context.Background(), nil, 1, 6)
	assert.Equal(t, int64(1), last)
}

// ── Consulta ──────────────────────────────────────────────────────────────────

func TestGetInvoiceForOrder(t *testing.T) {
	env := newTestEnv(infraafip.NewDevFiscalService(), paidOrder("ord-1"))

	_, err := env.uc.GetInvoiceForOrder(context.Background(), "ord-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	issued, err := env.uc.IssueInvoice(context.Background(), "ord-1")
	require.NoError(t, err)

	found, err := env.uc.GetInvoiceForOrder(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, issued.ID, found.ID)
}
