package afip

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// qrBaseURL URL del validador de comprobantes de AFIP (RG 4892, código QR).
const qrBaseURL = "https://www.afip.gob.ar/fe/qr/?p="

// QRPayload es el JSON que la RG 4892 exige embeber (en Base64) en el QR de la
// representación impresa del comprobante.
type QRPayload struct {
	Ver        int     `json:"ver"`        // versión del formato (1)
	Fecha      string  `json:"fecha"`      // fecha del comprobante, "2006-01-02"
	CUIT       int64   `json:"cuit"`       // CUIT del emisor
	PtoVta     int     `json:"ptoVta"`     // punto de venta
	TipoCmp    int     `json:"tipoCmp"`    // código de tipo de comprobante
	NroCmp     int64   `json:"nroCmp"`     // número de comprobante
	Importe    float64 `json:"importe"`    // importe total
	Moneda     string  `json:"moneda"`     // "PES"
	Ctz        float64 `json:"ctz"`        // cotización (1 para pesos)
	TipoDocRec int     `json:"tipoDocRec"` // tipo de documento del receptor
	NroDocRec  int64   `json:"nroDocRec"`  // número de documento del receptor
	TipoCodAut string  `json:"tipoCodAut"` // "E" = CAE
	CodAut     int64   `json:"codAut"`     // CAE como entero
}

// BuildQRURL arma la URL del QR para un comprobante autorizado.
func BuildQRURL(issuerCUIT int64, ptoVta, tipoCmp int, nroCmp int64, fecha time.Time,
	total decimal.Decimal, docTipo int, docNro int64, cae string) (string, error) {

	var codAut int64
	if _, err := fmt.Sscanf(cae, "%d", &codAut); err != nil {
		return "", fmt.Errorf("afip: CAE no numérico %q: %w", cae, err)
	}
	payload := QRPayload{
		Ver:        1,
		Fecha:      fecha.Format("2006-01-02"),
		CUIT:       issuerCUIT,
		PtoVta:     ptoVta,
		TipoCmp:    tipoCmp,
		NroCmp:     nroCmp,
		Importe:    total.Round(2).InexactFloat64(),
		Moneda:     MonedaPesos,
		Ctz:        1,
		TipoDocRec: docTipo,
		NroDocRec:  docNro,
		TipoCodAut: "E",
		CodAut:     codAut,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("afip: serializar payload QR: %w", err)
	}
	return qrBaseURL + base64.StdEncoding.EncodeToString(raw), nil
}
