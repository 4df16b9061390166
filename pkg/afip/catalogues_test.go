package afip_test

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tiendago/facturacion-api/pkg/afip"
)

func TestVoucherCode_Tabla(t *testing.T) {
	cases := []struct {
		letter string
		kind   afip.DocumentKind
		want   int
	}{
		{"A", afip.DocFactura, 1},
		{"A", afip.DocNotaDebito, 2},
		{"A", afip.DocNotaCredito, 3},
		{"B", afip.DocFactura, 6},
		{"B", afip.DocNotaDebito, 7},
		{"B", afip.DocNotaCredito, 8},
		{"C", afip.DocFactura, 11},
		{"C", afip.DocNotaDebito, 12},
		{"C", afip.DocNotaCredito, 13},
	}
	for _, tc := range cases {
		got, err := afip.VoucherCode(tc.letter, tc.kind)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%s/%s", tc.letter, tc.kind)

		// La letra debe poder recuperarse del código.
		assert.Equal(t, tc.letter, afip.VoucherLetter(got))
	}
}

func TestVoucherCode_LetraDesconocida(t *testing.T) {
	_, err := afip.VoucherCode("M", afip.DocFactura)
	assert.Error(t, err)
}

func TestIsCFamily(t *testing.T) {
	assert.True(t, afip.IsCFamily(11))
	assert.True(t, afip.IsCFamily(13))
	assert.False(t, afip.IsCFamily(1))
	assert.False(t, afip.IsCFamily(6))
	assert.False(t, afip.IsCFamily(0))
}

func TestAlicuotaID(t *testing.T) {
	cases := []struct {
		rate string
		want int
	}{
		{"0", 3},
		{"0.025", 9},
		{"0.05", 8},
		{"0.105", 4},
		{"0.21", 5},
		{"0.27", 6},
	}
	for _, tc := range cases {
		id, err := afip.AlicuotaID(decimal.RequireFromString(tc.rate))
		require.NoError(t, err)
		assert.Equal(t, tc.want, id, "tasa %s", tc.rate)
	}

	_, err := afip.AlicuotaID(decimal.NewFromFloat(0.19))
	assert.Error(t, err, "19% no está en la tabla oficial")
}

func TestBuildQRURL_PayloadRG4892(t *testing.T) {
	fecha := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	url, err := afip.BuildQRURL(
		20123456786, 1, 6, 42, fecha,
		decimal.RequireFromString("1210.00"), 99, 0, "74123456789012",
	)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "https://www.afip.gob.ar/fe/qr/?p="),
		"la URL debe apuntar al validador oficial")

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, "https://www.afip.gob.ar/fe/qr/?p="))
	require.NoError(t, err, "el parámetro p debe ser Base64 estándar")

	var payload map[string]any
	require.NoError(t, json.Unmarshal(raw, &payload))

	assert.EqualValues(t, 1, payload["ver"])
	assert.Equal(t, "2024-03-15", payload["fecha"])
	assert.EqualValues(t, 20123456786, payload["cuit"])
	assert.EqualValues(t, 1, payload["ptoVta"])
	assert.EqualValues(t, 6, payload["tipoCmp"])
	assert.EqualValues(t, 42, payload["nroCmp"])
	assert.EqualValues(t, 1210.00, payload["importe"])
	assert.Equal(t, "PES", payload["moneda"])
	assert.EqualValues(t, 1, payload["ctz"])
	assert.Equal(t, "E", payload["tipoCodAut"])
	assert.EqualValues(t, 74123456789012, payload["codAut"])
}

func TestBuildQRURL_CAENoNumerico(t *testing.T) {
	_, err := afip.BuildQRURL(
		20123456786, 1, 6, 1, time.Now(),
		decimal.RequireFromString("10.00"), 99, 0, "no-un-cae",
	)
	assert.Error(t, err)
}

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Ñandú Hnos. S.R.L.", "Nandu Hnos. S.R.L."},
		{"  José   Pérez  ", "Jose Perez"},
		{"Almacén \"El Güero\"", "Almacen \"El Guero\""},
		{"ASCII plano", "ASCII plano"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, afip.NormalizeName(tc.in), "entrada %q", tc.in)
	}
}
