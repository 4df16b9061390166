package repository

import (
	"context"
	"time"

	"github.com/tiendago/facturacion-api/internal/domain/entity"
)

// InvoiceRepository es el libro de comprobantes emitidos. Contrato: Record se
// llama a lo sumo una vez por orden; el orquestador lo garantiza consultando
// FindByOrder antes de iniciar un intento y la DB lo refuerza con unicidad
// por order_id y por (pto_vta, cbte_tipo, cbte_nro).
type InvoiceRepository interface {
	Record(ctx context.Context, inv *entity.IssuedInvoice) error
	FindByOrder(ctx context.Context, orderID string) (*entity.IssuedInvoice, error)
	GetByID(ctx context.Context, id string) (*entity.IssuedInvoice, error)
	FindByNumber(ctx context.Context, pointOfSale, voucherType int, number int64) (*entity.IssuedInvoice, error)
}

// AttemptRepository es la bitácora de intentos fallidos (solo auditoría, nunca
// se usa para decidir numeración).
type AttemptRepository interface {
	RecordFailure(ctx context.Context, att *entity.FailedAttempt) error
	// LastIndeterminate devuelve el intento indeterminado más reciente sin
	// conciliar para la orden, o nil si no hay ninguno pendiente.
	LastIndeterminate(ctx context.Context, orderID string) (*entity.FailedAttempt, error)
	MarkReconciled(ctx context.Context, attemptID string, at time.Time) error
}
