// Package pdf implementa la representación gráfica del comprobante electrónico
// AFIP (RG 4892, QR obligatorio en la impresión).
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Letra (A/B/C) │ Razón Social + CUIT │ N° + Fecha   │
//	│  ─────────────────────────────────────────────────────────  │
//	│  EMISOR: Domicilio / Condición IVA                           │
//	│  RECEPTOR: Nombre + CUIT/DNI + condición                     │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: Cant | Descripción | P.Unit | IVA | Importe          │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TOTALES: Neto / IVA / TOTAL (solo total en letra C)         │
//	│  ─────────────────────────────────────────────────────────  │
//	│  FOOTER AFIP: CAE + Vencimiento + QR                         │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	"github.com/tiendago/facturacion-api/internal/application/invoicing"
	"github.com/tiendago/facturacion-api/internal/domain/entity"
	pkgafip "github.com/tiendago/facturacion-api/pkg/afip"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 20, Green: 60, Blue: 110}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}

	decimalHundred = decimal.NewFromInt(100)
)

// ── Generator ─────────────────────────────────────────────────────────────────

var _ invoicing.InvoicePDFGenerator = (*MarotoInvoiceGenerator)(nil)

// MarotoInvoiceGenerator implementa invoicing.InvoicePDFGenerator usando Maroto v2.
type MarotoInvoiceGenerator struct{}

// NewMarotoInvoiceGenerator construye el generador.
func NewMarotoInvoiceGenerator() *MarotoInvoiceGenerator { return &MarotoInvoiceGenerator{} }

// GenerateInvoicePDF genera el PDF y devuelve sus bytes.
func (g *MarotoInvoiceGenerator) GenerateInvoicePDF(
	_ context.Context,
	inv *entity.IssuedInvoice,
	order *entity.Order,
	seller invoicing.SellerConfig,
) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Factura Electrónica "+inv.FormattedNumber(), true).
		WithAuthor(seller.Name, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(inv, seller))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(emisorRow(seller))
	m.AddRows(receptorRow(inv, order))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	for _, r := range tableItemRows(order.Items) {
		m.AddRows(r)
	}

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(totalsRow(inv))

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	footer, err := afipFooterRows(inv, seller)
	if err != nil {
		return nil, err
	}
	for _, r := range footer {
		m.AddRows(r)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

// headerRow: letra en recuadro central, razón social a la izquierda, número y
// fecha a la derecha.
func headerRow(inv *entity.IssuedInvoice, seller invoicing.SellerConfig) core.Row {
	letter := pkgafip.VoucherLetter(inv.VoucherType)
	fecha := inv.IssuedAt.Format("02/01/2006")

	return row.New(20).Add(
		col.New(5).Add(
			text.New(seller.Name, props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New(fmt.Sprintf("CUIT: %d", seller.CUIT), props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(2).Add(
			text.New(letter, props.Text{
				Style: fontstyle.Bold, Size: 26, Align: align.Center, Top: 1,
			}),
			text.New(fmt.Sprintf("COD. %02d", inv.VoucherType), props.Text{
				Size: 7, Align: align.Center, Top: 14, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New("FACTURA ELECTRÓNICA", props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right,
				Color: colorPrimary, Top: 1,
			}),
			text.New(inv.FormattedNumber(), props.Text{
				Style: fontstyle.Bold, Size: 12, Align: align.Right, Top: 7,
			}),
			text.New("Fecha: "+fecha, props.Text{
				Size: 8, Align: align.Right, Top: 14, Color: colorGray,
			}),
		),
	)
}

// emisorRow: datos del emisor.
func emisorRow(seller invoicing.SellerConfig) core.Row {
	condicion := "IVA Responsable Inscripto"
	if seller.TaxClass == "monotributo" {
		condicion = "Responsable Monotributo"
	}
	return row.New(12).Add(
		col.New(12).Add(
			text.New("DATOS DEL EMISOR", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(fmt.Sprintf("Domicilio: %s   |   %s",
				nonEmpty(seller.Address, "—"), condicion,
			), props.Text{Size: 8, Top: 7, Color: colorGray}),
		),
	)
}

// receptorRow: datos del comprador.
func receptorRow(inv *entity.IssuedInvoice, order *entity.Order) core.Row {
	doc := "Consumidor Final"
	if inv.DocTipo != pkgafip.DocTipoConsumidorFinal {
		label := "DNI"
		if inv.DocTipo == pkgafip.DocTipoCUIT {
			label = "CUIT"
		}
		doc = fmt.Sprintf("%s: %d", label, inv.DocNro)
	}
	return row.New(14).Add(
		col.New(12).Add(
			text.New("RECEPTOR", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(nonEmpty(inv.BuyerName, "Consumidor Final"), props.Text{
				Style: fontstyle.Bold, Size: 10, Top: 6,
			}),
			text.New(fmt.Sprintf("%s   |   Condición: %s", doc, order.BuyerTaxClass),
				props.Text{Size: 8, Top: 12, Color: colorGray}),
		),
	)
}

// tableHeaderRow: cabecera de la tabla de ítems.
func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Cant.", 1, align.Center),
		h("Descripción", 5, align.Left),
		h("Precio Unit.", 2, align.Right),
		h("IVA%", 1, align.Center),
		h("Importe", 3, align.Right),
	)
}

// tableItemRows: una fila por línea de la orden.
func tableItemRows(items []entity.OrderItem) []core.Row {
	result := make([]core.Row, 0, len(items))
	for _, it := range items {
		ratePct := it.IVARate.Mul(decimalHundred).StringFixed(1)
		result = append(result, row.New(7).Add(
			col.New(1).Add(text.New(
				it.Quantity.StringFixed(0),
				props.Text{Size: 8, Align: align.Center, Top: 1},
			)),
			col.New(5).Add(text.New(
				it.Description,
				props.Text{Size: 8, Align: align.Left, Top: 1, Left: 1},
			)),
			col.New(2).Add(text.New(
				"$"+it.UnitPrice.StringFixed(2),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
			col.New(1).Add(text.New(
				ratePct,
				props.Text{Size: 8, Align: align.Center, Top: 1},
			)),
			col.New(3).Add(text.New(
				"$"+it.LineTotal.StringFixed(2),
				props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1},
			)),
		))
	}
	return result
}

// totalsRow: bloque de totales alineado a la derecha. La letra C no discrimina
// IVA, así que solo muestra el total.
func totalsRow(inv *entity.IssuedInvoice) core.Row {
	label := func(s string) core.Component {
		return text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2,
		})
	}
	value := func(s string) core.Component {
		return text.New(s, props.Text{Size: 9, Align: align.Right, Right: 1})
	}
	grandLabel := text.New("TOTAL:", props.Text{
		Style: fontstyle.Bold, Size: 10, Align: align.Right,
		Color: colorPrimary, Right: 2,
	})
	grandValue := text.New("$"+inv.TotalAmount.StringFixed(2), props.Text{
		Style: fontstyle.Bold, Size: 10, Align: align.Right,
		Color: colorPrimary, Right: 1,
	})

	if pkgafip.IsCFamily(inv.VoucherType) {
		return row.New(12).Add(
			col.New(6),
			col.New(3).Add(grandLabel),
			col.New(3).Add(grandValue),
		)
	}
	return row.New(26).Add(
		col.New(3),
		col.New(3).Add(
			label("Neto gravado:"),
			label("IVA:"),
			grandLabel,
		),
		col.New(3).Add(
			value("$"+inv.NetAmount.StringFixed(2)),
			value("$"+inv.IVAAmount.StringFixed(2)),
			grandValue,
		),
		col.New(3),
	)
}

// afipFooterRows: CAE + vencimiento + código QR de validación.
func afipFooterRows(inv *entity.IssuedInvoice, seller invoicing.SellerConfig) ([]core.Row, error) {
	qrURL, err := pkgafip.BuildQRURL(
		seller.CUIT, inv.PointOfSale, inv.VoucherType, inv.Number,
		inv.IssuedAt, inv.TotalAmount, inv.DocTipo, inv.DocNro, inv.CAE,
	)
	if err != nil {
		return nil, fmt.Errorf("pdf: armar QR: %w", err)
	}

	rows := []core.Row{
		row.New(6).Add(col.New(12).Add(
			text.New("COMPROBANTE AUTORIZADO POR AFIP", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
		)),
		row.New(40).Add(
			col.New(4).Add(code.NewQr(qrURL, props.Rect{
				Percent: 95,
				Center:  true,
			})),
			col.New(8).Add(
				text.New("CAE: "+inv.CAE, props.Text{
					Style: fontstyle.Bold, Size: 10, Top: 6, Left: 3,
				}),
				text.New("Vencimiento CAE: "+inv.CAEExpiry.Format("02/01/2006"), props.Text{
					Size: 9, Top: 14, Left: 3, Color: colorGray,
				}),
				text.New("Escanee el código QR para validar este\ncomprobante en el sitio de AFIP.", props.Text{
					Size: 8, Top: 24, Left: 3, Color: colorGray,
				}),
			),
		),
	}

	rows = append(rows, row.New(8).Add(col.New(12).Add(
		text.New(
			"Comprobante autorizado conforme a la RG 4291/2018 y RG 4892/2020. "+
				"Conserve este documento como soporte fiscal.",
			props.Text{Size: 6.5, Color: colorGray, Top: 2},
		),
	)))

	return rows, nil
}

// ── helpers ───────────────────────────────────────────────────────────────────

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
