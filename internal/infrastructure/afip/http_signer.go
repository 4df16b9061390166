// Firmador CMS delegado: el servicio no implementa criptografía de firma; la
// delega en un servicio externo (HSM o sidecar de firma) vía HTTP.

package afip

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	pkgafip "github.com/tiendago/facturacion-api/pkg/afip"
)

// HTTPSigner implementa pkg/afip.Signer contra un servicio de firma externo.
// El certificado no viaja: el servicio de firma custodia la llave privada y
// solo recibe el documento a firmar.
type HTTPSigner struct {
	url        string
	httpClient *http.Client
}

var _ pkgafip.Signer = (*HTTPSigner)(nil)

// NewHTTPSigner construye el firmador delegado. url es la base del servicio
// de firma (se le agrega /sign).
func NewHTTPSigner(url string, timeout time.Duration) *HTTPSigner {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPSigner{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type signRequest struct {
	Document string `json:"document"` // TRA en Base64
}

type signResponse struct {
	CMS string `json:"cms"` // CMS firmado en Base64 (DER)
}

// Sign envía el TRA al servicio de firma y devuelve el CMS en DER.
func (s *HTTPSigner) Sign(ctx context.Context, tra []byte, _ tls.Certificate) ([]byte, error) {
	body, err := json.Marshal(signRequest{Document: base64.StdEncoding.EncodeToString(tra)})
	if err != nil {
		return nil, fmt.Errorf("signer: serializar request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url+"/sign", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("signer: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("signer: servicio de firma inalcanzable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("signer: servicio de firma devolvió %d", resp.StatusCode)
	}
	var out signResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("signer: decodificar respuesta: %w", err)
	}
	cms, err := base64.StdEncoding.DecodeString(out.CMS)
	if err != nil {
		return nil, fmt.Errorf("signer: CMS no es Base64 válido: %w", err)
	}
	if len(cms) == 0 {
		return nil, fmt.Errorf("signer: CMS vacío en la respuesta")
	}
	return cms, nil
}
