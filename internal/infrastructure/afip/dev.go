// Modo dev: firma simulada y autorización en memoria, sin tocar los WS AFIP.
// Replica el contrato completo de los puertos para poder ejercitar el
// orquestador de punta a punta en desarrollo.

package afip

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/tiendago/facturacion-api/internal/domain"
	pkgafip "github.com/tiendago/facturacion-api/pkg/afip"
)

// ── Firmador simulado ─────────────────────────────────────────────────────────

// DevSigner devuelve el TRA en Base64 sin firmar. Solo válido en el ambiente
// dev: WSAA real rechaza cualquier cosa que no sea un CMS firmado por el
// certificado del contribuyente.
type DevSigner struct{}

var _ pkgafip.Signer = (*DevSigner)(nil)

func (DevSigner) Sign(_ context.Context, tra []byte, _ tls.Certificate) ([]byte, error) {
	return []byte(base64.StdEncoding.EncodeToString(tra)), nil
}

// ── Proveedor de sesión simulado ──────────────────────────────────────────────

// DevSessionProvider entrega una sesión sintética de 12 horas.
type DevSessionProvider struct {
	mu      sync.Mutex
	session *Session
}

var _ SessionProvider = (*DevSessionProvider)(nil)

func (p *DevSessionProvider) EnsureSession(_ context.Context) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	if p.session.Usable(now, time.Minute) {
		return p.session, nil
	}
	p.session = &Session{
		Token:     "dev-token",
		Sign:      "dev-sign",
		IssuedAt:  now,
		ExpiresAt: now.Add(12 * time.Hour),
	}
	return p.session, nil
}

func (p *DevSessionProvider) Invalidate() {
	p.mu.Lock()
	p.session = nil
	p.mu.Unlock()
}

// ── Servicio fiscal simulado ──────────────────────────────────────────────────

// DevFiscalService aprueba todo comprobante y mantiene la numeración por
// (ptoVta, cbteTipo) en memoria, respetando el contrato de WSFE: el último
// autorizado solo avanza con aprobaciones.
type DevFiscalService struct {
	mu       sync.Mutex
	last     map[string]int64
	vouchers map[string]*IssuedVoucher
	seq      int64
}

var _ FiscalService = (*DevFiscalService)(nil)

// NewDevFiscalService construye el servicio simulado.
func NewDevFiscalService() *DevFiscalService {
	return &DevFiscalService{
		last:     make(map[string]int64),
		vouchers: make(map[string]*IssuedVoucher),
	}
}

func devKey(ptoVta, cbteTipo int) string { return fmt.Sprintf("%d-%d", ptoVta, cbteTipo) }

func (s *DevFiscalService) LastAuthorized(_ context.Context, _ *Session, ptoVta, cbteTipo int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last[devKey(ptoVta, cbteTipo)], nil
}

func (s *DevFiscalService) Authorize(_ context.Context, _ *Session, req *VoucherRequest) (*CAEResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := devKey(req.PtoVta, req.CbteTipo)
	if req.CbteNro != s.last[key]+1 {
		return &CAEResult{
			Outcome: OutcomeRejected,
			Code:    "10016",
			Message: fmt.Sprintf("número %d fuera de secuencia (esperado %d)", req.CbteNro, s.last[key]+1),
		}, nil
	}
	s.seq++
	cae := fmt.Sprintf("%014d", s.seq)
	expiry := time.Now().AddDate(0, 0, 10)
	s.last[key] = req.CbteNro
	s.vouchers[fmt.Sprintf("%s-%d", key, req.CbteNro)] = &IssuedVoucher{
		PtoVta:    req.PtoVta,
		CbteTipo:  req.CbteTipo,
		CbteNro:   req.CbteNro,
		DocTipo:   req.DocTipo,
		DocNro:    req.DocNro,
		ImpTotal:  req.ImpTotal,
		CAE:       cae,
		CAEExpiry: expiry,
		CbteFch:   req.CbteFch,
	}
	return &CAEResult{Outcome: OutcomeApproved, CAE: cae, CAEExpiry: expiry}, nil
}

func (s *DevFiscalService) QueryVoucher(_ context.Context, _ *Session, ptoVta, cbteTipo int, nro int64) (*IssuedVoucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vouchers[fmt.Sprintf("%s-%d", devKey(ptoVta, cbteTipo), nro)]
	if !ok {
		return nil, fmt.Errorf("dev: comprobante %d-%d nro %d no registrado: %w",
			ptoVta, cbteTipo, nro, domain.ErrNotFound)
	}
	return v, nil
}

func (s *DevFiscalService) Dummy(_ context.Context) (*ServiceStatus, error) {
	return &ServiceStatus{AppServer: "OK", DbServer: "OK", AuthServer: "OK"}, nil
}
