package afip

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tiendago/facturacion-api/internal/domain"
	pkgafip "github.com/tiendago/facturacion-api/pkg/afip"
	"github.com/tiendago/facturacion-api/pkg/logger"
)

// ── Constantes WSAA ───────────────────────────────────────────────────────────

const (
	wsaaURLHomo = "https://wsaahomo.afip.gov.ar/ws/services/LoginCms"
	wsaaURLProd = "https://wsaa.afip.gov.ar/ws/services/LoginCms"

	wsaaNS = "http://wsaa.view.sua.dvadac.desein.afip.gov"
	soapNS = "http://schemas.xmlsoap.org/soap/envelope/"

	// wsaaService: nombre del WS para el que se pide el ticket.
	wsaaService = "wsfe"

	// traLifetime: vigencia solicitada del ticket. WSAA permite hasta 24 h;
	// se piden 12 h como el flujo original.
	traLifetime = 12 * time.Hour
)

// WSAAConfig parámetros del manager de sesión.
type WSAAConfig struct {
	Environment  string        // "homo" | "prod"
	SafetyMargin time.Duration // margen antes del vencimiento para renovar (default 10 min)
	Timeout      time.Duration // timeout de la llamada de login (default 30 s)
}

// WSAAClient obtiene y cachea el par token/sign de WSAA. La sesión cacheada es
// estado mutable de proceso: se protege con RWMutex y las renovaciones
// concurrentes comparten un único login en vuelo (singleflight), porque AFIP
// limita e invalida logins paralelos del mismo certificado.
type WSAAClient struct {
	httpClient *http.Client
	url        string
	signer     pkgafip.Signer
	cert       tls.Certificate
	margin     time.Duration
	log        *logger.Logger

	mu      sync.RWMutex
	session *Session

	sf singleflight.Group

	uidMu   sync.Mutex
	lastUID int64
}

var _ SessionProvider = (*WSAAClient)(nil)

// NewWSAAClient construye el manager. signer es la capacidad externa de firma
// CMS; cert el certificado emitido por AFIP para el servicio.
func NewWSAAClient(cfg WSAAConfig, signer pkgafip.Signer, cert tls.Certificate, log *logger.Logger) (*WSAAClient, error) {
	var url string
	switch cfg.Environment {
	case pkgafip.EnvProd:
		url = wsaaURLProd
	case pkgafip.EnvHomo:
		url = wsaaURLHomo
	default:
		return nil, fmt.Errorf("wsaa: ambiente desconocido %q (usar 'homo' o 'prod')", cfg.Environment)
	}
	margin := cfg.SafetyMargin
	if margin <= 0 {
		margin = 10 * time.Minute
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WSAAClient{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
		signer:     signer,
		cert:       cert,
		margin:     margin,
		log:        log,
	}, nil
}

// EnsureSession devuelve la sesión cacheada mientras siga vigente (con margen)
// y dispara un único login compartido cuando hay que renovar. Nunca cachea una
// sesión parcial: ante cualquier falla la caché queda intacta.
func (c *WSAAClient) EnsureSession(ctx context.Context) (*Session, error) {
	c.mu.RLock()
	sess := c.session
	c.mu.RUnlock()
	if sess.Usable(time.Now(), c.margin) {
		return sess, nil
	}

	v, err, _ := c.sf.Do("login", func() (interface{}, error) {
		// Releer bajo el lock: otro caller pudo haber renovado mientras
		// esperábamos el turno del singleflight.
		c.mu.RLock()
		cur := c.session
		c.mu.RUnlock()
		if cur.Usable(time.Now(), c.margin) {
			return cur, nil
		}
		fresh, loginErr := c.login(ctx)
		if loginErr != nil {
			return nil, loginErr
		}
		c.mu.Lock()
		c.session = fresh
		c.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAuthenticationFailed, err)
	}
	return v.(*Session), nil
}

// Invalidate descarta la sesión cacheada (p.ej. si WSFE reporta token vencido).
func (c *WSAAClient) Invalidate() {
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
}

// ── Intercambio de login ──────────────────────────────────────────────────────

// login arma el TRA, lo firma con la capacidad externa y lo presenta a WSAA.
func (c *WSAAClient) login(ctx context.Context) (*Session, error) {
	now := time.Now()
	tra, err := BuildLoginTicketRequest(c.nextUniqueID(now), now.Add(-c.margin), now.Add(traLifetime), wsaaService)
	if err != nil {
		return nil, err
	}

	cms, err := c.signer.Sign(ctx, tra, c.cert)
	if err != nil {
		return nil, fmt.Errorf("wsaa: firmar TRA: %w", err)
	}

	envelope := loginEnvelope{
		XmlnsSoap: soapNS,
		XmlnsWsaa: wsaaNS,
		Body: loginBody{
			LoginCms: loginCms{In0: base64.StdEncoding.EncodeToString(cms)},
		},
	}
	payload, err := xml.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("wsaa: serializar envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("wsaa: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wsaa: llamada HTTP fallida: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // max 1 MB
	if err != nil {
		return nil, fmt.Errorf("wsaa: leer respuesta: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusInternalServerError {
		// WSAA devuelve los SOAP Fault con 500; cualquier otro código es anómalo.
		return nil, fmt.Errorf("wsaa: HTTP %d: %s", resp.StatusCode, truncate(rawBody, 200))
	}

	var envResp loginResponseEnvelope
	if err := xml.Unmarshal(rawBody, &envResp); err != nil {
		return nil, fmt.Errorf("wsaa: parsear respuesta SOAP: %w", err)
	}
	if envResp.Body.Fault != nil {
		return nil, fmt.Errorf("wsaa: SOAP Fault [%s]: %s", envResp.Body.Fault.FaultCode, envResp.Body.Fault.FaultString)
	}
	if envResp.Body.Response == nil || envResp.Body.Response.Return == "" {
		return nil, fmt.Errorf("wsaa: respuesta SOAP vacía o inesperada")
	}

	sess, err := ParseLoginTicketResponse([]byte(envResp.Body.Response.Return))
	if err != nil {
		return nil, err
	}
	if c.log != nil {
		c.log.Info().
			Time("expires_at", sess.ExpiresAt).
			Msg("sesión WSAA renovada")
	}
	return sess, nil
}

// nextUniqueID genera el uniqueId del TRA: epoch en segundos, forzado a ser
// estrictamente creciente dentro del proceso (WSAA rechaza repetidos).
func (c *WSAAClient) nextUniqueID(now time.Time) int64 {
	c.uidMu.Lock()
	defer c.uidMu.Unlock()
	uid := now.Unix()
	if uid <= c.lastUID {
		uid = c.lastUID + 1
	}
	c.lastUID = uid
	return uid
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// ── Estructuras SOAP de WSAA ──────────────────────────────────────────────────

type loginEnvelope struct {
	XMLName   xml.Name  `xml:"soapenv:Envelope"`
	XmlnsSoap string    `xml:"xmlns:soapenv,attr"`
	XmlnsWsaa string    `xml:"xmlns:wsaa,attr"`
	Body      loginBody `xml:"soapenv:Body"`
}

type loginBody struct {
	LoginCms loginCms `xml:"wsaa:loginCms"`
}

type loginCms struct {
	In0 string `xml:"wsaa:in0"` // CMS firmado, en Base64
}

type loginResponseEnvelope struct {
	Body loginResponseBody `xml:"Body"`
}

type loginResponseBody struct {
	Response *loginCmsResponse `xml:"loginCmsResponse"`
	Fault    *soapFault        `xml:"Fault"`
}

type loginCmsResponse struct {
	Return string `xml:"loginCmsReturn"` // loginTicketResponse, XML escapado
}

type soapFault struct {
	FaultCode   string `xml:"faultcode"`
	FaultString string `xml:"faultstring"`
}
