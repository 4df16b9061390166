package afip

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tiendago/facturacion-api/internal/domain"
	pkgafip "github.com/tiendago/facturacion-api/pkg/afip"
	"github.com/tiendago/facturacion-api/pkg/logger"
)

// ── Constantes WSFE ───────────────────────────────────────────────────────────

const (
	wsfeURLHomo = "https://wswhomo.afip.gov.ar/wsfev1/service.asmx"
	wsfeURLProd = "https://servicios1.afip.gov.ar/wsfev1/service.asmx"

	wsfeNS = "http://ar.gov.afip.dif.FEV1/"

	// cbteFchFormat: WSFE informa las fechas de comprobante como yyyymmdd.
	cbteFchFormat = "20060102"

	// err602: "No existen datos en nuestros registros" (FECompConsultar).
	err602 = 602
)

// WSFEConfig parámetros del cliente WSFEv1.
type WSFEConfig struct {
	Environment string        // "homo" | "prod"
	CUIT        int64         // CUIT del emisor (campo Cuit del Auth)
	Timeout     time.Duration // timeout por llamada (default 30 s)
}

// WSFEClient implementa FiscalService contra el WS SOAP WSFEv1.
type WSFEClient struct {
	httpClient *http.Client
	url        string
	cuit       int64
	log        *logger.Logger
}

var _ FiscalService = (*WSFEClient)(nil)

// NewWSFEClient construye el cliente SOAP. El timeout por llamada acota el
// tiempo que un intento puede retener el lock de numeración.
func NewWSFEClient(cfg WSFEConfig, log *logger.Logger) (*WSFEClient, error) {
	var url string
	switch cfg.Environment {
	case pkgafip.EnvProd:
		url = wsfeURLProd
	case pkgafip.EnvHomo:
		url = wsfeURLHomo
	default:
		return nil, fmt.Errorf("wsfe: ambiente desconocido %q (usar 'homo' o 'prod')", cfg.Environment)
	}
	if cfg.CUIT <= 0 {
		return nil, fmt.Errorf("wsfe: CUIT del emisor no configurado")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WSFEClient{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
		cuit:       cfg.CUIT,
		log:        log,
	}, nil
}

// ── LastAuthorized ────────────────────────────────────────────────────────────

// LastAuthorized consulta FECompUltimoAutorizado. La llamada no tiene efectos
// en AFIP y es segura de reintentar; cualquier falla se devuelve como error
// (el caller decide si reintenta).
func (c *WSFEClient) LastAuthorized(ctx context.Context, sess *Session, ptoVta, cbteTipo int) (int64, error) {
	body := feCompUltimoBody{
		Xmlns:    wsfeNS,
		Auth:     c.auth(sess),
		PtoVta:   ptoVta,
		CbteTipo: cbteTipo,
	}
	raw, err := c.call(ctx, "FECompUltimoAutorizado", body)
	if err != nil {
		return 0, fmt.Errorf("wsfe: FECompUltimoAutorizado: %w", err)
	}

	var envResp wsfeResponseEnvelope
	if err := xml.Unmarshal(raw, &envResp); err != nil {
		return 0, fmt.Errorf("wsfe: parsear FECompUltimoAutorizado: %w", err)
	}
	if envResp.Body.Fault != nil {
		return 0, fmt.Errorf("wsfe: SOAP Fault [%s]: %s", envResp.Body.Fault.FaultCode, envResp.Body.Fault.FaultString)
	}
	result := envResp.Body.UltimoResp
	if result == nil {
		return 0, fmt.Errorf("wsfe: respuesta vacía de FECompUltimoAutorizado")
	}
	if msg := result.Result.Errors.joined(); msg != "" {
		return 0, fmt.Errorf("wsfe: FECompUltimoAutorizado rechazado: %s", msg)
	}
	return result.Result.CbteNro, nil
}

// ── Authorize ─────────────────────────────────────────────────────────────────

// Authorize envía FECAESolicitar con un lote de un solo comprobante (el número
// reservado como CbteDesde y CbteHasta) y clasifica la respuesta. Una vez que
// el request salió a la red, toda falla es OutcomeIndeterminate: AFIP pudo
// haber consumido el número aunque la respuesta no haya llegado.
func (c *WSFEClient) Authorize(ctx context.Context, sess *Session, req *VoucherRequest) (*CAEResult, error) {
	det := feCAEDetRequest{
		Concepto:   req.Concepto,
		DocTipo:    req.DocTipo,
		DocNro:     req.DocNro,
		CbteDesde:  req.CbteNro,
		CbteHasta:  req.CbteNro,
		CbteFch:    req.CbteFch.Format(cbteFchFormat),
		ImpTotal:   req.ImpTotal.StringFixed(2),
		ImpTotConc: req.ImpTotConc.StringFixed(2),
		ImpNeto:    req.ImpNeto.StringFixed(2),
		ImpOpEx:    req.ImpOpEx.StringFixed(2),
		ImpTrib:    req.ImpTrib.StringFixed(2),
		ImpIVA:     req.ImpIVA.StringFixed(2),
		MonID:      pkgafip.MonedaPesos,
		MonCotiz:   "1",
	}
	if pkgafip.ConceptRequiresServiceDates(req.Concepto) {
		if req.FchServDesde == nil || req.FchServHasta == nil || req.FchVtoPago == nil {
			return nil, fmt.Errorf("wsfe: concepto %d requiere fechas de servicio y vencimiento de pago", req.Concepto)
		}
		det.FchServDesde = req.FchServDesde.Format(cbteFchFormat)
		det.FchServHasta = req.FchServHasta.Format(cbteFchFormat)
		det.FchVtoPago = req.FchVtoPago.Format(cbteFchFormat)
	}
	// La familia C no discrimina IVA: el array de alícuotas se omite.
	if !pkgafip.IsCFamily(req.CbteTipo) && len(req.IVA) > 0 {
		arr := &feIvaArray{}
		for _, e := range req.IVA {
			arr.AlicIva = append(arr.AlicIva, feAlicIva{
				ID:      e.RateID,
				BaseImp: e.Base.StringFixed(2),
				Importe: e.Amount.StringFixed(2),
			})
		}
		det.Iva = arr
	}

	body := feCAESolicitarBody{
		Xmlns: wsfeNS,
		Auth:  c.auth(sess),
		FeCAEReq: feCAEReq{
			FeCabReq: feCabReq{CantReg: 1, PtoVta: req.PtoVta, CbteTipo: req.CbteTipo},
			FeDetReq: feDetReq{Det: []feCAEDetRequest{det}},
		},
	}

	raw, err := c.call(ctx, "FECAESolicitar", body)
	if err != nil {
		// El request salió (o pudo salir) a la red: indeterminado.
		return &CAEResult{Outcome: OutcomeIndeterminate, Cause: err}, nil
	}

	return c.parseCAEResponse(raw), nil
}

// parseCAEResponse clasifica la respuesta de FECAESolicitar en el resultado
// tipificado. Nada aguas abajo inspecciona el XML crudo.
func (c *WSFEClient) parseCAEResponse(raw []byte) *CAEResult {
	var envResp wsfeResponseEnvelope
	if err := xml.Unmarshal(raw, &envResp); err != nil {
		return &CAEResult{Outcome: OutcomeIndeterminate, Cause: fmt.Errorf("respuesta ilegible: %w", err)}
	}
	if envResp.Body.Fault != nil {
		// Un Fault no garantiza que el lote no se haya procesado.
		return &CAEResult{
			Outcome: OutcomeIndeterminate,
			Cause:   fmt.Errorf("SOAP Fault [%s]: %s", envResp.Body.Fault.FaultCode, envResp.Body.Fault.FaultString),
		}
	}
	resp := envResp.Body.CAEResp
	if resp == nil {
		return &CAEResult{Outcome: OutcomeIndeterminate, Cause: fmt.Errorf("respuesta SOAP vacía o inesperada")}
	}
	result := &resp.Result

	// Errores de lote (auth vencida, número fuera de secuencia, etc.): el
	// lote no fue procesado, es un rechazo explícito.
	if len(result.Errors.Err) > 0 {
		first := result.Errors.Err[0]
		return &CAEResult{
			Outcome: OutcomeRejected,
			Code:    fmt.Sprintf("%d", first.Code),
			Message: result.Errors.joined(),
		}
	}
	if len(result.FeDetResp.Det) == 0 {
		return &CAEResult{Outcome: OutcomeIndeterminate, Cause: fmt.Errorf("FECAESolicitar sin detalle en la respuesta")}
	}

	det := result.FeDetResp.Det[0]
	if det.Resultado == pkgafip.ResultadoAprobado && det.CAE != "" {
		expiry, err := time.Parse(cbteFchFormat, det.CAEFchVto)
		if err != nil {
			return &CAEResult{Outcome: OutcomeIndeterminate, Cause: fmt.Errorf("CAEFchVto ilegible %q: %w", det.CAEFchVto, err)}
		}
		return &CAEResult{Outcome: OutcomeApproved, CAE: det.CAE, CAEExpiry: expiry}
	}

	// Rechazado o CAE ausente: extraer código y mensaje de las observaciones.
	code, msg := "", "sin observaciones"
	if det.Observaciones != nil && len(det.Observaciones.Obs) > 0 {
		var msgs []string
		for _, o := range det.Observaciones.Obs {
			msgs = append(msgs, fmt.Sprintf("[%d] %s", o.Code, o.Msg))
		}
		code = fmt.Sprintf("%d", det.Observaciones.Obs[0].Code)
		msg = strings.Join(msgs, "; ")
	}
	return &CAEResult{Outcome: OutcomeRejected, Code: code, Message: msg}
}

// ── QueryVoucher ──────────────────────────────────────────────────────────────

// QueryVoucher consulta FECompConsultar para un comprobante puntual; se usa en
// la conciliación de intentos indeterminados. Devuelve domain.ErrNotFound
// envuelto si AFIP no registra el comprobante (error 602).
func (c *WSFEClient) QueryVoucher(ctx context.Context, sess *Session, ptoVta, cbteTipo int, nro int64) (*IssuedVoucher, error) {
	body := feCompConsultarBody{
		Xmlns: wsfeNS,
		Auth:  c.auth(sess),
		FeCompConsReq: feCompConsReq{
			CbteTipo: cbteTipo,
			CbteNro:  nro,
			PtoVta:   ptoVta,
		},
	}
	raw, err := c.call(ctx, "FECompConsultar", body)
	if err != nil {
		return nil, fmt.Errorf("wsfe: FECompConsultar: %w", err)
	}

	var envResp wsfeResponseEnvelope
	if err := xml.Unmarshal(raw, &envResp); err != nil {
		return nil, fmt.Errorf("wsfe: parsear FECompConsultar: %w", err)
	}
	if envResp.Body.Fault != nil {
		return nil, fmt.Errorf("wsfe: SOAP Fault [%s]: %s", envResp.Body.Fault.FaultCode, envResp.Body.Fault.FaultString)
	}
	resp := envResp.Body.ConsultarResp
	if resp == nil {
		return nil, fmt.Errorf("wsfe: respuesta vacía de FECompConsultar")
	}
	for _, e := range resp.Result.Errors.Err {
		if e.Code == err602 {
			return nil, fmt.Errorf("wsfe: comprobante %d-%d nro %d: %w", ptoVta, cbteTipo, nro, domain.ErrNotFound)
		}
	}
	if msg := resp.Result.Errors.joined(); msg != "" {
		return nil, fmt.Errorf("wsfe: FECompConsultar rechazado: %s", msg)
	}
	det := resp.Result.ResultGet
	total, err := decimal.NewFromString(det.ImpTotal)
	if err != nil {
		return nil, fmt.Errorf("wsfe: ImpTotal ilegible %q: %w", det.ImpTotal, err)
	}
	voucher := &IssuedVoucher{
		PtoVta:   det.PtoVta,
		CbteTipo: det.CbteTipo,
		CbteNro:  det.CbteDesde,
		DocTipo:  det.DocTipo,
		DocNro:   det.DocNro,
		ImpTotal: total,
		CAE:      det.CodAutorizacion,
	}
	if t, err := time.Parse(cbteFchFormat, det.FchVto); err == nil {
		voucher.CAEExpiry = t
	}
	if t, err := time.Parse(cbteFchFormat, det.CbteFch); err == nil {
		voucher.CbteFch = t
	}
	return voucher, nil
}

// ── Dummy ─────────────────────────────────────────────────────────────────────

// Dummy consulta FEDummy (salud de los servidores de WSFE). No requiere sesión.
func (c *WSFEClient) Dummy(ctx context.Context) (*ServiceStatus, error) {
	raw, err := c.call(ctx, "FEDummy", feDummyBody{Xmlns: wsfeNS})
	if err != nil {
		return nil, fmt.Errorf("wsfe: FEDummy: %w", err)
	}
	var envResp wsfeResponseEnvelope
	if err := xml.Unmarshal(raw, &envResp); err != nil {
		return nil, fmt.Errorf("wsfe: parsear FEDummy: %w", err)
	}
	if envResp.Body.DummyResp == nil {
		return nil, fmt.Errorf("wsfe: respuesta vacía de FEDummy")
	}
	r := envResp.Body.DummyResp.Result
	return &ServiceStatus{AppServer: r.AppServer, DbServer: r.DbServer, AuthServer: r.AuthServer}, nil
}

// ── Transporte ────────────────────────────────────────────────────────────────

func (c *WSFEClient) auth(sess *Session) feAuth {
	return feAuth{Token: sess.Token, Sign: sess.Sign, Cuit: c.cuit}
}

// call serializa el body en un envelope SOAP 1.1, lo envía y devuelve el
// cuerpo crudo de la respuesta. El error cubre transporte y códigos no 200.
func (c *WSFEClient) call(ctx context.Context, operation string, body interface{}) ([]byte, error) {
	envelope := wsfeEnvelope{
		XmlnsS: soapNS,
		Body:   wsfeBody{Content: body},
	}
	payload, err := xml.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serializar envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("crear request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", wsfeNS+operation)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("timeout o cancelación: %w", ctx.Err())
		}
		return nil, fmt.Errorf("llamada HTTP fallida: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // max 1 MB
	if err != nil {
		return nil, fmt.Errorf("leer respuesta: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusInternalServerError {
		// Los SOAP Fault llegan con 500 y se clasifican arriba; otros códigos
		// son fallas de transporte.
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(rawBody, 200))
	}
	return rawBody, nil
}

// ── Estructuras SOAP de request ───────────────────────────────────────────────

type wsfeEnvelope struct {
	XMLName xml.Name `xml:"s:Envelope"`
	XmlnsS  string   `xml:"xmlns:s,attr"`
	Body    wsfeBody `xml:"s:Body"`
}

type wsfeBody struct {
	Content interface{}
}

func (b wsfeBody) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name.Local = "s:Body"
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := e.Encode(b.Content); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

type feAuth struct {
	Token string `xml:"Token"`
	Sign  string `xml:"Sign"`
	Cuit  int64  `xml:"Cuit"`
}

type feCompUltimoBody struct {
	XMLName  xml.Name `xml:"FECompUltimoAutorizado"`
	Xmlns    string   `xml:"xmlns,attr"`
	Auth     feAuth   `xml:"Auth"`
	PtoVta   int      `xml:"PtoVta"`
	CbteTipo int      `xml:"CbteTipo"`
}

type feCAESolicitarBody struct {
	XMLName  xml.Name `xml:"FECAESolicitar"`
	Xmlns    string   `xml:"xmlns,attr"`
	Auth     feAuth   `xml:"Auth"`
	FeCAEReq feCAEReq `xml:"FeCAEReq"`
}

type feCAEReq struct {
	FeCabReq feCabReq `xml:"FeCabReq"`
	FeDetReq feDetReq `xml:"FeDetReq"`
}

type feCabReq struct {
	CantReg  int `xml:"CantReg"`
	PtoVta   int `xml:"PtoVta"`
	CbteTipo int `xml:"CbteTipo"`
}

type feDetReq struct {
	Det []feCAEDetRequest `xml:"FECAEDetRequest"`
}

type feCAEDetRequest struct {
	Concepto     int    `xml:"Concepto"`
	DocTipo      int    `xml:"DocTipo"`
	DocNro       int64  `xml:"DocNro"`
	CbteDesde    int64  `xml:"CbteDesde"`
	CbteHasta    int64  `xml:"CbteHasta"`
	CbteFch      string `xml:"CbteFch"`
	ImpTotal     string `xml:"ImpTotal"`
	ImpTotConc   string `xml:"ImpTotConc"`
	ImpNeto      string `xml:"ImpNeto"`
	ImpOpEx      string `xml:"ImpOpEx"`
	ImpTrib      string `xml:"ImpTrib"`
	ImpIVA       string `xml:"ImpIVA"`
	FchServDesde string `xml:"FchServDesde,omitempty"`
	FchServHasta string `xml:"FchServHasta,omitempty"`
	FchVtoPago   string `xml:"FchVtoPago,omitempty"`
	MonID        string `xml:"MonId"`
	MonCotiz     string `xml:"MonCotiz"`
	Iva          *feIvaArray `xml:"Iva,omitempty"`
}

type feIvaArray struct {
	AlicIva []feAlicIva `xml:"AlicIva"`
}

type feAlicIva struct {
	ID      int    `xml:"Id"`
	BaseImp string `xml:"BaseImp"`
	Importe string `xml:"Importe"`
}

type feCompConsultarBody struct {
	XMLName       xml.Name      `xml:"FECompConsultar"`
	Xmlns         string        `xml:"xmlns,attr"`
	Auth          feAuth        `xml:"Auth"`
	FeCompConsReq feCompConsReq `xml:"FeCompConsReq"`
}

type feCompConsReq struct {
	CbteTipo int   `xml:"CbteTipo"`
	CbteNro  int64 `xml:"CbteNro"`
	PtoVta   int   `xml:"PtoVta"`
}

type feDummyBody struct {
	XMLName xml.Name `xml:"FEDummy"`
	Xmlns   string   `xml:"xmlns,attr"`
}

// ── Estructuras SOAP de respuesta ─────────────────────────────────────────────

type wsfeResponseEnvelope struct {
	Body wsfeResponseBody `xml:"Body"`
}

type wsfeResponseBody struct {
	CAEResp       *feCAESolicitarResponse  `xml:"FECAESolicitarResponse"`
	UltimoResp    *feCompUltimoResponse    `xml:"FECompUltimoAutorizadoResponse"`
	ConsultarResp *feCompConsultarResponse `xml:"FECompConsultarResponse"`
	DummyResp     *feDummyResponse         `xml:"FEDummyResponse"`
	Fault         *soapFault               `xml:"Fault"`
}

type feCAESolicitarResponse struct {
	Result feCAESolicitarResult `xml:"FECAESolicitarResult"`
}

type feCAESolicitarResult struct {
	FeCabResp feCabResp    `xml:"FeCabResp"`
	FeDetResp feDetResp2   `xml:"FeDetResp"`
	Errors    feErrorArray `xml:"Errors"`
}

type feCabResp struct {
	Cuit      int64  `xml:"Cuit"`
	PtoVta    int    `xml:"PtoVta"`
	CbteTipo  int    `xml:"CbteTipo"`
	Resultado string `xml:"Resultado"`
}

type feDetResp2 struct {
	Det []feCAEDetResponse `xml:"FECAEDetResponse"`
}

type feCAEDetResponse struct {
	Concepto      int          `xml:"Concepto"`
	DocTipo       int          `xml:"DocTipo"`
	DocNro        int64        `xml:"DocNro"`
	CbteDesde     int64        `xml:"CbteDesde"`
	CbteHasta     int64        `xml:"CbteHasta"`
	Resultado     string       `xml:"Resultado"`
	CAE           string       `xml:"CAE"`
	CAEFchVto     string       `xml:"CAEFchVto"`
	Observaciones *feObsArray  `xml:"Observaciones"`
}

type feObsArray struct {
	Obs []feObs `xml:"Obs"`
}

type feObs struct {
	Code int    `xml:"Code"`
	Msg  string `xml:"Msg"`
}

type feErrorArray struct {
	Err []feErr `xml:"Err"`
}

func (a feErrorArray) joined() string {
	if len(a.Err) == 0 {
		return ""
	}
	var msgs []string
	for _, e := range a.Err {
		msgs = append(msgs, fmt.Sprintf("[%d] %s", e.Code, e.Msg))
	}
	return strings.Join(msgs, "; ")
}

type feErr struct {
	Code int    `xml:"Code"`
	Msg  string `xml:"Msg"`
}

type feCompUltimoResponse struct {
	Result feCompUltimoResult `xml:"FECompUltimoAutorizadoResult"`
}

type feCompUltimoResult struct {
	PtoVta   int          `xml:"PtoVta"`
	CbteTipo int          `xml:"CbteTipo"`
	CbteNro  int64        `xml:"CbteNro"`
	Errors   feErrorArray `xml:"Errors"`
}

type feCompConsultarResponse struct {
	Result feCompConsultarResult `xml:"FECompConsultarResult"`
}

type feCompConsultarResult struct {
	ResultGet feCompConsultarGet `xml:"ResultGet"`
	Errors    feErrorArray       `xml:"Errors"`
}

type feCompConsultarGet struct {
	Concepto        int    `xml:"Concepto"`
	DocTipo         int    `xml:"DocTipo"`
	DocNro          int64  `xml:"DocNro"`
	CbteDesde       int64  `xml:"CbteDesde"`
	CbteHasta       int64  `xml:"CbteHasta"`
	CbteFch         string `xml:"CbteFch"`
	ImpTotal        string `xml:"ImpTotal"`
	PtoVta          int    `xml:"PtoVta"`
	CbteTipo        int    `xml:"CbteTipo"`
	CodAutorizacion string `xml:"CodAutorizacion"`
	FchVto          string `xml:"FchVto"`
	Resultado       string `xml:"Resultado"`
}

type feDummyResponse struct {
	Result feDummyResult `xml:"FEDummyResult"`
}

type feDummyResult struct {
	AppServer  string `xml:"AppServer"`
	DbServer   string `xml:"DbServer"`
	AuthServer string `xml:"AuthServer"`
}
