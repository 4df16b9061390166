package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// IssuedInvoice es el registro permanente de un comprobante autorizado por
// AFIP. Se crea únicamente con un CAE confirmado; es inmutable y mantiene la
// relación uno a uno con la orden: una orden con IssuedInvoice nunca se
// vuelve a enviar.
type IssuedInvoice struct {
	ID          string
	OrderID     string
	PointOfSale int
	VoucherType int // código WSFE (1, 6, 11, ...)
	Number      int64
	CAE         string
	CAEExpiry   time.Time
	BuyerName   string
	DocTipo     int
	DocNro      int64
	NetAmount   decimal.Decimal
	IVAAmount   decimal.Decimal
	TotalAmount decimal.Decimal
	IssuedAt    time.Time
	CreatedAt   time.Time
}

// FormattedNumber devuelve el número legal "0001-00000042".
func (i *IssuedInvoice) FormattedNumber() string {
	return fmt.Sprintf("%04d-%08d", i.PointOfSale, i.Number)
}

// FailedAttempt es el registro de auditoría de un intento de autorización que
// no terminó en CAE. Nunca se borra: sirve para reconstruir la historia de
// numeración al conciliar contra AFIP. Un intento indeterminado queda
// pendiente hasta que la conciliación lo marque resuelto.
type FailedAttempt struct {
	ID              string
	OrderID         string
	PointOfSale     int
	VoucherType     int
	AttemptedNumber int64 // 0 si la falla fue previa a la reserva de número
	ErrorCode       string
	ErrorMessage    string
	Indeterminate   bool
	AttemptedAt     time.Time
	ReconciledAt    *time.Time
}
