// Package afip: interfaz para la firma CMS del ticket de acceso WSAA.

package afip

import (
	"context"
	"crypto/tls"
)

// Signer firma el XML del loginTicketRequest (TRA) y devuelve el mensaje
// CMS/PKCS#7 en DER. La construcción criptográfica del CMS es una capacidad
// externa: el cliente WSAA solo codifica el resultado en Base64 y lo envía.
type Signer interface {
	// Sign toma el TRA en claro y el certificado con llave privada emitido por
	// AFIP, y retorna el CMS firmado (DER).
	Sign(ctx context.Context, tra []byte, cert tls.Certificate) ([]byte, error)
}
