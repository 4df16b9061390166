// Package afip: reglas fiscales puras de emisión — determinación de la letra
// del comprobante según condición frente al IVA de emisor y receptor, y
// desagregado de importes neto/IVA por alícuota.
//
// Todo en este paquete es determinista y sin efectos: los montos entran y
// salen como decimal y la selección de letra es una función total sobre las
// clases de registro tributario.
package afip

import (
	"fmt"

	"github.com/shopspring/decimal"
	pkgafip "github.com/tiendago/facturacion-api/pkg/afip"
)

// TaxClass es la condición frente al IVA de un contribuyente.
type TaxClass string

const (
	// ResponsableInscripto: inscripto en IVA con derecho a crédito fiscal.
	ResponsableInscripto TaxClass = "responsable_inscripto"
	// Monotributo: régimen simplificado; emite siempre comprobantes C.
	Monotributo TaxClass = "monotributo"
	// Exento: exento de IVA.
	Exento TaxClass = "exento"
	// ConsumidorFinal: sin inscripción; receptor típico de comprobantes B.
	ConsumidorFinal TaxClass = "consumidor_final"
)

// Valid indica si la clase pertenece al catálogo.
func (c TaxClass) Valid() bool {
	switch c {
	case ResponsableInscripto, Monotributo, Exento, ConsumidorFinal:
		return true
	}
	return false
}

// Kind es la letra de comprobante derivada del par (emisor, receptor).
type Kind string

const (
	KindA Kind = "A"
	KindB Kind = "B"
	KindC Kind = "C"
)

// DetermineKind deriva la letra del comprobante a partir de las clases
// tributarias de emisor y receptor. La función es total: cualquier par de
// clases válidas produce exactamente una letra.
//
//   - Emisor monotributista → C, sin importar el receptor.
//   - Emisor responsable inscripto → A solo si el receptor también lo es;
//     cualquier otro receptor → B.
//   - Cualquier otro emisor → B.
func DetermineKind(seller, buyer TaxClass) Kind {
	switch seller {
	case Monotributo:
		return KindC
	case ResponsableInscripto:
		if buyer == ResponsableInscripto {
			return KindA
		}
		return KindB
	default:
		return KindB
	}
}

// Amounts es el desagregado neto/IVA/bruto de un importe final.
type Amounts struct {
	Net   decimal.Decimal
	Tax   decimal.Decimal
	Gross decimal.Decimal
}

var one = decimal.NewFromInt(1)

// SplitTax desagrega un importe bruto (IVA incluido) a la tasa dada:
// net = gross / (1 + rate) redondeado a 2 decimales (mitad hacia arriba),
// tax = gross − net. El bruto se devuelve sin modificar, de modo que aplicar
// SplitTax sobre su propio Gross es un punto fijo y net + tax == gross exacto.
func SplitTax(gross, rate decimal.Decimal) Amounts {
	net := gross.Div(one.Add(rate)).Round(2)
	return Amounts{
		Net:   net,
		Tax:   gross.Sub(net),
		Gross: gross,
	}
}

// TaxedLine es una línea con su importe bruto y la tasa de IVA que la grava.
type TaxedLine struct {
	Gross decimal.Decimal
	Rate  decimal.Decimal // fracción: 0.21 para 21%
}

// IVAEntry es una entrada del array de alícuotas de WSFE: base imponible e
// importe de IVA para una tasa.
type IVAEntry struct {
	RateID int             // Id AFIP de la alícuota
	Rate   decimal.Decimal // fracción
	Base   decimal.Decimal // base imponible (neto) de la alícuota
	Amount decimal.Decimal // importe de IVA de la alícuota
}

// BuildIVABreakdown agrupa las líneas por tasa y desagrega cada grupo con
// SplitTax sobre el bruto acumulado (sumar antes de dividir evita la deriva
// de redondeo por línea). El orden de salida sigue la primera aparición de
// cada tasa. Los comprobantes C no llevan desagregado: el caller no debe
// invocar esta función para esa familia.
func BuildIVABreakdown(lines []TaxedLine) ([]IVAEntry, error) {
	grouped := make(map[string]*IVAEntry)
	var order []string
	for _, l := range lines {
		key := l.Rate.String()
		e, ok := grouped[key]
		if !ok {
			id, err := pkgafip.AlicuotaID(l.Rate)
			if err != nil {
				return nil, err
			}
			e = &IVAEntry{RateID: id, Rate: l.Rate}
			grouped[key] = e
			order = append(order, key)
		}
		e.Base = e.Base.Add(l.Gross) // bruto acumulado; se desagrega al final
	}
	out := make([]IVAEntry, 0, len(order))
	for _, key := range order {
		e := grouped[key]
		amounts := SplitTax(e.Base, e.Rate)
		e.Base = amounts.Net
		e.Amount = amounts.Tax
		out = append(out, *e)
	}
	return out, nil
}

// SumBreakdown devuelve neto, IVA y bruto totales de un desagregado.
func SumBreakdown(entries []IVAEntry) (net, tax, gross decimal.Decimal) {
	for _, e := range entries {
		net = net.Add(e.Base)
		tax = tax.Add(e.Amount)
	}
	return net, tax, net.Add(tax)
}

// BuyerDocument deriva el tipo y número de documento del receptor para WSFE.
// Consumidor final se informa con DocTipo 99 y DocNro 0; un CUIT válido con
// DocTipo 80; cualquier otro identificador numérico se asume DNI (96).
func BuyerDocument(buyerClass TaxClass, taxID string) (docTipo int, docNro int64, err error) {
	if buyerClass == ConsumidorFinal || taxID == "" {
		return pkgafip.DocTipoConsumidorFinal, 0, nil
	}
	if n, cuitErr := pkgafip.CUITNumber(taxID); cuitErr == nil {
		return pkgafip.DocTipoCUIT, n, nil
	}
	var dni int64
	if _, scanErr := fmt.Sscanf(taxID, "%d", &dni); scanErr != nil || dni <= 0 {
		return 0, 0, fmt.Errorf("afip: documento del receptor ilegible %q", taxID)
	}
	return pkgafip.DocTipoDNI, dni, nil
}
