package afip_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tiendago/facturacion-api/internal/domain/afip"
)

// ──────────────────────────────────────────────────────────────────────────────
// DetermineKind — la letra es una función total del par (emisor, receptor)
// ──────────────────────────────────────────────────────────────────────────────

func TestDetermineKind_TablaCompleta(t *testing.T) {
	classes := []afip.TaxClass{
		afip.ResponsableInscripto,
		afip.Monotributo,
		afip.Exento,
		afip.ConsumidorFinal,
	}

	for _, seller := range classes {
		for _, buyer := range classes {
			kind := afip.DetermineKind(seller, buyer)

			switch {
			case seller == afip.Monotributo:
				assert.Equal(t, afip.KindC, kind,
					"monotributista emite C sin importar el receptor (%s)", buyer)
			case seller == afip.ResponsableInscripto && buyer == afip.ResponsableInscripto:
				assert.Equal(t, afip.KindA, kind,
					"RI a RI debe ser A")
			default:
				assert.Equal(t, afip.KindB, kind,
					"par (%s, %s) debe caer en B", seller, buyer)
			}
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// SplitTax — desagregado neto/IVA con redondeo a 2 decimales
// ──────────────────────────────────────────────────────────────────────────────

func TestSplitTax_SumaExacta(t *testing.T) {
	rate21 := decimal.NewFromFloat(0.21)

	cases := []struct {
		gross string
		net   string
		tax   string
	}{
		{"121.00", "100.00", "21.00"},
		{"1210.00", "1000.00", "210.00"},
		{"100.00", "82.64", "17.36"},   // 100/1.21 = 82.6446... → 82.64
		{"0.01", "0.01", "0.00"},       // importe mínimo
		{"33.33", "27.55", "5.78"},     // 33.33/1.21 = 27.5454... → 27.55
		{"999999.99", "826446.27", "173553.72"},
	}

	for _, tc := range cases {
		gross := decimal.RequireFromString(tc.gross)
		got := afip.SplitTax(gross, rate21)

		assert.Equal(t, tc.net, got.Net.StringFixed(2), "neto de %s", tc.gross)
		assert.Equal(t, tc.tax, got.Tax.StringFixed(2), "IVA de %s", tc.gross)
		// Invariante estructural: el desagregado nunca pierde ni inventa centavos.
		assert.True(t, got.Net.Add(got.Tax).Equal(gross),
			"net+tax debe reconstruir el bruto exacto para %s", tc.gross)
	}
}

func TestSplitTax_RedondeoMitadHaciaArriba(t *testing.T) {
	// 24.20/1.21 = 20.0000; 24.21/1.21 = 20.00826... → 20.01
	got := afip.SplitTax(decimal.RequireFromString("24.21"), decimal.NewFromFloat(0.21))
	assert.Equal(t, "20.01", got.Net.StringFixed(2))
	assert.Equal(t, "4.20", got.Tax.StringFixed(2))
}

func TestSplitTax_PuntoFijo(t *testing.T) {
	// Re-desagregar el propio Gross produce exactamente el mismo resultado.
	rate := decimal.NewFromFloat(0.105)
	first := afip.SplitTax(decimal.RequireFromString("777.77"), rate)
	second := afip.SplitTax(first.Gross, rate)

	assert.True(t, first.Net.Equal(second.Net))
	assert.True(t, first.Tax.Equal(second.Tax))
	assert.True(t, first.Gross.Equal(second.Gross))
}

func TestSplitTax_TasaCero(t *testing.T) {
	got := afip.SplitTax(decimal.RequireFromString("150.00"), decimal.Zero)
	assert.Equal(t, "150.00", got.Net.StringFixed(2))
	assert.True(t, got.Tax.IsZero())
}

// ──────────────────────────────────────────────────────────────────────────────
// BuildIVABreakdown — agrupación por alícuota, suma antes de dividir
// ──────────────────────────────────────────────────────────────────────────────

func TestBuildIVABreakdown_AgrupaPorTasa(t *testing.T) {
	rate21 := decimal.NewFromFloat(0.21)
	rate105 := decimal.NewFromFloat(0.105)

	lines := []afip.TaxedLine{
		{Gross: decimal.RequireFromString("121.00"), Rate: rate21},
		{Gross: decimal.RequireFromString("60.50"), Rate: rate21},
		{Gross: decimal.RequireFromString("110.50"), Rate: rate105},
	}

	entries, err := afip.BuildIVABreakdown(lines)
	require.NoError(t, err)
	require.Len(t, entries, 2, "dos tasas distintas producen dos entradas")

	// El orden sigue la primera aparición de cada tasa.
	assert.Equal(t, 5, entries[0].RateID, "21% es Id 5 en la tabla AFIP")
	assert.Equal(t, "150.00", entries[0].Base.StringFixed(2), "181.50/1.21")
	assert.Equal(t, "31.50", entries[0].Amount.StringFixed(2))

	assert.Equal(t, 4, entries[1].RateID, "10,5% es Id 4 en la tabla AFIP")
	assert.Equal(t, "100.00", entries[1].Base.StringFixed(2), "110.50/1.105")
	assert.Equal(t, "10.50", entries[1].Amount.StringFixed(2))

	net, tax, gross := afip.SumBreakdown(entries)
	assert.Equal(t, "250.00", net.StringFixed(2))
	assert.Equal(t, "42.00", tax.StringFixed(2))
	assert.Equal(t, "292.00", gross.StringFixed(2))
}

func TestBuildIVABreakdown_SumarAntesDeDividir(t *testing.T) {
	// Tres líneas de 0.35 al 21%: desagregar línea por línea daría
	// 3 × (0.29 + 0.06); sumar primero da el desagregado de 1.05.
	rate := decimal.NewFromFloat(0.21)
	lines := []afip.TaxedLine{
		{Gross: decimal.RequireFromString("0.35"), Rate: rate},
		{Gross: decimal.RequireFromString("0.35"), Rate: rate},
		{Gross: decimal.RequireFromString("0.35"), Rate: rate},
	}

	entries, err := afip.BuildIVABreakdown(lines)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.Equal(t, "0.87", entries[0].Base.StringFixed(2), "1.05/1.21 = 0.8677... → 0.87")
	assert.Equal(t, "0.18", entries[0].Amount.StringFixed(2))
	assert.True(t, entries[0].Base.Add(entries[0].Amount).Equal(decimal.RequireFromString("1.05")))
}

func TestBuildIVABreakdown_TasaNoCatalogada(t *testing.T) {
	lines := []afip.TaxedLine{
		{Gross: decimal.RequireFromString("100.00"), Rate: decimal.NewFromFloat(0.19)},
	}
	_, err := afip.BuildIVABreakdown(lines)
	assert.Error(t, err, "19% no existe en la tabla de alícuotas AFIP")
}

// ──────────────────────────────────────────────────────────────────────────────
// BuyerDocument — derivación del documento del receptor
// ──────────────────────────────────────────────────────────────────────────────

func TestBuyerDocument_ConsumidorFinal(t *testing.T) {
	docTipo, docNro, err := afip.BuyerDocument(afip.ConsumidorFinal, "")
	require.NoError(t, err)
	assert.Equal(t, 99, docTipo)
	assert.Equal(t, int64(0), docNro, "consumidor final se informa con DocNro 0")

	// Aunque traiga documento, consumidor final va como 99/0.
	docTipo, docNro, err = afip.BuyerDocument(afip.ConsumidorFinal, "20123456786")
	require.NoError(t, err)
	assert.Equal(t, 99, docTipo)
	assert.Equal(t, int64(0), docNro)
}

func TestBuyerDocument_CUITValido(t *testing.T) {
	docTipo, docNro, err := afip.BuyerDocument(afip.ResponsableInscripto, "20-12345678-6")
	require.NoError(t, err)
	assert.Equal(t, 80, docTipo)
	assert.Equal(t, int64(20123456786), docNro)
}

func TestBuyerDocument_DNI(t *testing.T) {
	docTipo, docNro, err := afip.BuyerDocument(afip.Exento, "30123456")
	require.NoError(t, err)
	assert.Equal(t, 96, docTipo, "identificador de 8 dígitos se asume DNI")
	assert.Equal(t, int64(30123456), docNro)
}

func TestBuyerDocument_Ilegible(t *testing.T) {
	_, _, err := afip.BuyerDocument(afip.ResponsableInscripto, "no-es-un-documento")
	assert.Error(t, err)
}
