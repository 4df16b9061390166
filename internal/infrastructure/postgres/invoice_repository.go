package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tiendago/facturacion-api/internal/domain"
	"github.com/tiendago/facturacion-api/internal/domain/entity"
	"github.com/tiendago/facturacion-api/internal/domain/repository"
)

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

// InvoiceRepo implementación de InvoiceRepository (usable con pool o tx).
// La tabla invoices es append-only: un comprobante autorizado no se actualiza
// ni se borra nunca.
type InvoiceRepo struct {
	q Querier
}

// NewInvoiceRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInvoiceRepository(q Querier) *InvoiceRepo {
	return &InvoiceRepo{q: q}
}

const invoiceColumns = `
	id, order_id, pto_vta, cbte_tipo, cbte_nro, cae, cae_vto,
	buyer_name, doc_tipo, doc_nro, imp_neto, imp_iva, imp_total,
	issued_at, created_at`

// Record persiste el comprobante autorizado. La unicidad por order_id y por
// (pto_vta, cbte_tipo, cbte_nro) la refuerza la DB.
func (r *InvoiceRepo) Record(ctx context.Context, inv *entity.IssuedInvoice) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	query := `
		INSERT INTO invoices (` + invoiceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := r.q.Exec(ctx, query,
		inv.ID, inv.OrderID, inv.PointOfSale, inv.VoucherType, inv.Number,
		inv.CAE, inv.CAEExpiry,
		inv.BuyerName, inv.DocTipo, inv.DocNro,
		inv.NetAmount, inv.IVAAmount, inv.TotalAmount,
		inv.IssuedAt, inv.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: la orden ya tiene comprobante: %v", domain.ErrDuplicate, err)
		}
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

// FindByOrder devuelve el comprobante de la orden, o nil si no existe.
func (r *InvoiceRepo) FindByOrder(ctx context.Context, orderID string) (*entity.IssuedInvoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE order_id = $1`
	return r.scanOne(r.q.QueryRow(ctx, query, orderID), "by order")
}

// GetByID obtiene un comprobante por ID, o nil si no existe.
func (r *InvoiceRepo) GetByID(ctx context.Context, id string) (*entity.IssuedInvoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	return r.scanOne(r.q.QueryRow(ctx, query, id), "by id")
}

// FindByNumber busca por número legal, o nil si no existe.
func (r *InvoiceRepo) FindByNumber(ctx context.Context, pointOfSale, voucherType int, number int64) (*entity.IssuedInvoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE pto_vta = $1 AND cbte_tipo = $2 AND cbte_nro = $3`
	return r.scanOne(r.q.QueryRow(ctx, query, pointOfSale, voucherType, number), "by number")
}

func (r *InvoiceRepo) scanOne(row pgx.Row, what string) (*entity.IssuedInvoice, error) {
	var inv entity.IssuedInvoice
	err := row.Scan(
		&inv.ID, &inv.OrderID, &inv.PointOfSale, &inv.VoucherType, &inv.Number,
		&inv.CAE, &inv.CAEExpiry,
		&inv.BuyerName, &inv.DocTipo, &inv.DocNro,
		&inv.NetAmount, &inv.IVAAmount, &inv.TotalAmount,
		&inv.IssuedAt, &inv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invoice %s: %w", what, err)
	}
	return &inv, nil
}
