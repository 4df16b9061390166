package afip

import (
	"fmt"
	"strconv"
	"time"

	"github.com/beevik/etree"
)

// traTimeFormat: WSAA exige fechas ISO-8601 con offset.
const traTimeFormat = "2006-01-02T15:04:05-07:00"

// BuildLoginTicketRequest arma el XML del TRA (loginTicketRequest) que se
// firma en CMS y se envía a WSAA.
//
//	<loginTicketRequest version="1.0">
//	  <header>
//	    <uniqueId>...</uniqueId>
//	    <generationTime>...</generationTime>
//	    <expirationTime>...</expirationTime>
//	  </header>
//	  <service>wsfe</service>
//	</loginTicketRequest>
func BuildLoginTicketRequest(uniqueID int64, generation, expiration time.Time, service string) ([]byte, error) {
	if service == "" {
		return nil, fmt.Errorf("wsaa: service vacío en el TRA")
	}
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("loginTicketRequest")
	root.CreateAttr("version", "1.0")

	header := root.CreateElement("header")
	header.CreateElement("uniqueId").SetText(strconv.FormatInt(uniqueID, 10))
	header.CreateElement("generationTime").SetText(generation.Format(traTimeFormat))
	header.CreateElement("expirationTime").SetText(expiration.Format(traTimeFormat))

	root.CreateElement("service").SetText(service)

	doc.Indent(2)
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("wsaa: serializar TRA: %w", err)
	}
	return out, nil
}

// ParseLoginTicketResponse extrae token, sign y vencimiento del
// loginTicketResponse que WSAA devuelve (ya des-escapado del envelope SOAP).
func ParseLoginTicketResponse(raw []byte) (*Session, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, fmt.Errorf("wsaa: parsear loginTicketResponse: %w", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "loginTicketResponse" {
		return nil, fmt.Errorf("wsaa: documento inesperado en la respuesta de login")
	}

	token := root.FindElement("./credentials/token")
	sign := root.FindElement("./credentials/sign")
	if token == nil || sign == nil || token.Text() == "" || sign.Text() == "" {
		return nil, fmt.Errorf("wsaa: credenciales ausentes en loginTicketResponse")
	}

	sess := &Session{Token: token.Text(), Sign: sign.Text()}

	if gen := root.FindElement("./header/generationTime"); gen != nil {
		if t, err := time.Parse(time.RFC3339, gen.Text()); err == nil {
			sess.IssuedAt = t
		}
	}
	exp := root.FindElement("./header/expirationTime")
	if exp == nil {
		return nil, fmt.Errorf("wsaa: expirationTime ausente en loginTicketResponse")
	}
	t, err := time.Parse(time.RFC3339, exp.Text())
	if err != nil {
		return nil, fmt.Errorf("wsaa: expirationTime ilegible %q: %w", exp.Text(), err)
	}
	sess.ExpiresAt = t
	return sess, nil
}
