package afip

import (
	"fmt"
	"strconv"
	"unicode"
)

// pesos para el cálculo del dígito verificador de CUIT/CUIL (módulo 11 AFIP).
// Se aplican a los 10 primeros dígitos, de izquierda a derecha.
var cuitWeights = [10]int{5, 4, 3, 2, 7, 6, 5, 4, 3, 2}

// ValidateCUIT valida que el CUIT/CUIL (con o sin guiones) tenga 11 dígitos y
// un dígito verificador correcto según el algoritmo módulo 11 de AFIP.
// taxID puede ser "20-12345678-6", "20.12345678.6" o "20123456786".
func ValidateCUIT(taxID string) error {
	digits := extractDigits(taxID)
	if len(digits) != 11 {
		return fmt.Errorf("afip: CUIT debe tener 11 dígitos, se encontraron %d", len(digits))
	}
	expected, err := computeCheckDigit(digits[:10])
	if err != nil {
		return err
	}
	if digits[10] != expected {
		return fmt.Errorf("afip: dígito verificador de CUIT inválido: esperado %c, recibido %c", expected, digits[10])
	}
	return nil
}

// ComputeCUITCheckDigit calcula el dígito verificador para los 10 primeros
// dígitos del CUIT. Útil para completar el CUIT antes de enviar a AFIP.
func ComputeCUITCheckDigit(taxID string) (byte, error) {
	digits := extractDigits(taxID)
	if len(digits) < 10 {
		return 0, fmt.Errorf("afip: se requieren al menos 10 dígitos para calcular el dígito verificador, se encontraron %d", len(digits))
	}
	return computeCheckDigit(digits[:10])
}

// CUITNumber devuelve el CUIT validado como entero de 11 dígitos, listo para
// los campos numéricos de WSFE (Cuit del Auth, DocNro para DocTipo 80).
func CUITNumber(taxID string) (int64, error) {
	if err := ValidateCUIT(taxID); err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(string(extractDigits(taxID)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("afip: CUIT no numérico: %w", err)
	}
	return n, nil
}

func computeCheckDigit(base []byte) (byte, error) {
	var sum int
	for i, d := range base {
		sum += int(d-'0') * cuitWeights[i]
	}
	rest := 11 - sum%11
	switch rest {
	case 11:
		return '0', nil
	case 10:
		// Ningún CUIT válido produce resto 10: AFIP cambia el prefijo (20→23, etc.).
		return 0, fmt.Errorf("afip: base de CUIT sin dígito verificador posible")
	default:
		return byte('0' + rest), nil
	}
}

func extractDigits(s string) []byte {
	var out []byte
	for _, r := range s {
		if unicode.IsDigit(r) {
			out = append(out, byte(r))
		}
	}
	return out
}
