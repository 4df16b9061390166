// Package afip contiene catálogos y validaciones alineados a la RG 4291 y al
// manual del desarrollador de WSFEv1 (Factura Electrónica AFIP, Argentina).
package afip

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// Ambientes de los web services AFIP
// =============================================================================

const (
	// EnvDev no llama a los WS: firma simulada y autorización en memoria.
	EnvDev = "dev"
	// EnvHomo apunta a los ambientes de homologación (wsaahomo / wswhomo).
	EnvHomo = "homo"
	// EnvProd apunta a los ambientes productivos de AFIP.
	EnvProd = "prod"
)

// =============================================================================
// Tipos de comprobante (tabla de WSFEv1, campo CbteTipo)
// Cada letra de comprobante tiene variantes factura / nota de débito / nota de crédito.
// =============================================================================

const (
	CbteFacturaA     = 1
	CbteNotaDebitoA  = 2
	CbteNotaCreditoA = 3
	CbteFacturaB     = 6
	CbteNotaDebitoB  = 7
	CbteNotaCreditoB = 8
	CbteFacturaC     = 11
	CbteNotaDebitoC  = 12
	CbteNotaCreditoC = 13
)

// DocumentKind distingue factura, nota de débito y nota de crédito dentro de una familia.
type DocumentKind string

const (
	DocFactura     DocumentKind = "factura"
	DocNotaDebito  DocumentKind = "nota_debito"
	DocNotaCredito DocumentKind = "nota_credito"
)

var voucherCodes = map[string]map[DocumentKind]int{
	"A": {DocFactura: CbteFacturaA, DocNotaDebito: CbteNotaDebitoA, DocNotaCredito: CbteNotaCreditoA},
	"B": {DocFactura: CbteFacturaB, DocNotaDebito: CbteNotaDebitoB, DocNotaCredito: CbteNotaCreditoB},
	"C": {DocFactura: CbteFacturaC, DocNotaDebito: CbteNotaDebitoC, DocNotaCredito: CbteNotaCreditoC},
}

// VoucherCode devuelve el código de comprobante WSFE para una letra ("A", "B", "C")
// y una clase de documento (factura, ND, NC).
func VoucherCode(letter string, kind DocumentKind) (int, error) {
	family, ok := voucherCodes[letter]
	if !ok {
		return 0, fmt.Errorf("afip: letra de comprobante desconocida %q", letter)
	}
	code, ok := family[kind]
	if !ok {
		return 0, fmt.Errorf("afip: clase de documento desconocida %q", kind)
	}
	return code, nil
}

// VoucherLetter devuelve la letra ("A", "B" o "C") de un código de comprobante WSFE.
func VoucherLetter(code int) string {
	switch code {
	case CbteFacturaA, CbteNotaDebitoA, CbteNotaCreditoA:
		return "A"
	case CbteFacturaB, CbteNotaDebitoB, CbteNotaCreditoB:
		return "B"
	case CbteFacturaC, CbteNotaDebitoC, CbteNotaCreditoC:
		return "C"
	}
	return ""
}

// IsCFamily indica si el comprobante pertenece a la familia C (monotributo):
// no discrimina IVA y el detalle se presenta sin array de alícuotas.
func IsCFamily(code int) bool { return VoucherLetter(code) == "C" }

// =============================================================================
// Tipos de documento del receptor (tabla FEParamGetTiposDoc)
// =============================================================================

const (
	DocTipoCUIT            = 80
	DocTipoCUIL            = 86
	DocTipoDNI             = 96
	DocTipoConsumidorFinal = 99 // DocNro debe ser 0
)

// =============================================================================
// Conceptos del comprobante (campo Concepto)
// =============================================================================

const (
	ConceptoProductos = 1
	ConceptoServicios = 2
	ConceptoAmbos     = 3
)

// ConceptRequiresServiceDates indica si el concepto obliga a informar
// FchServDesde, FchServHasta y FchVtoPago.
func ConceptRequiresServiceDates(concepto int) bool {
	return concepto == ConceptoServicios || concepto == ConceptoAmbos
}

// =============================================================================
// Alícuotas de IVA (tabla FEParamGetTiposIva, campo Id del array AlicIva)
// =============================================================================

const (
	AlicuotaID0    = 3 // 0%
	AlicuotaID10_5 = 4 // 10,5%
	AlicuotaID21   = 5 // 21%
	AlicuotaID27   = 6 // 27%
	AlicuotaID5    = 8 // 5%
	AlicuotaID2_5  = 9 // 2,5%
)

// alicuotaIDs mapea la tasa (como string canónico de decimal) al Id AFIP.
var alicuotaIDs = map[string]int{
	"0":     AlicuotaID0,
	"0.025": AlicuotaID2_5,
	"0.05":  AlicuotaID5,
	"0.105": AlicuotaID10_5,
	"0.21":  AlicuotaID21,
	"0.27":  AlicuotaID27,
}

// AlicuotaID devuelve el Id AFIP de una tasa de IVA expresada como fracción
// (0.21 para 21%). Tasas fuera de la tabla oficial son un error de datos.
func AlicuotaID(rate decimal.Decimal) (int, error) {
	id, ok := alicuotaIDs[rate.String()]
	if !ok {
		return 0, fmt.Errorf("afip: alícuota de IVA no catalogada: %s", rate.String())
	}
	return id, nil
}

// =============================================================================
// Moneda y resultado
// =============================================================================

const (
	// MonedaPesos código de moneda para comprobantes en pesos argentinos.
	MonedaPesos = "PES"

	// ResultadoAprobado / ResultadoRechazado / ResultadoParcial: campo Resultado
	// de FECAESolicitar. "P" solo aparece en lotes multi-comprobante.
	ResultadoAprobado  = "A"
	ResultadoRechazado = "R"
	ResultadoParcial   = "P"
)
