package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tiendago/facturacion-api/internal/domain/entity"
	"github.com/tiendago/facturacion-api/internal/domain/repository"
)

var _ repository.AttemptRepository = (*AttemptRepo)(nil)

// AttemptRepo bitácora de intentos fallidos sobre PostgreSQL. Solo inserta y
// marca conciliados; los registros no se borran.
type AttemptRepo struct {
	q Querier
}

// NewAttemptRepository construye el adaptador. Pasar pool o tx (Querier).
func NewAttemptRepository(q Querier) *AttemptRepo {
	return &AttemptRepo{q: q}
}

// RecordFailure persiste un intento fallido.
func (r *AttemptRepo) RecordFailure(ctx context.Context, att *entity.FailedAttempt) error {
	if att.ID == "" {
		att.ID = uuid.New().String()
	}
	query := `
		INSERT INTO issue_attempts (id, order_id, pto_vta, cbte_tipo, attempted_nro,
			error_code, error_message, indeterminate, attempted_at, reconciled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.q.Exec(ctx, query,
		att.ID, att.OrderID, att.PointOfSale, att.VoucherType, att.AttemptedNumber,
		att.ErrorCode, att.ErrorMessage, att.Indeterminate, att.AttemptedAt, att.ReconciledAt,
	)
	if err != nil {
		return fmt.Errorf("insert issue attempt: %w", err)
	}
	return nil
}

// LastIndeterminate devuelve el intento indeterminado sin conciliar más
// reciente para la orden, o nil si no hay pendientes.
func (r *AttemptRepo) LastIndeterminate(ctx context.Context, orderID string) (*entity.FailedAttempt, error) {
	query := `
		SELECT id, order_id, pto_vta, cbte_tipo, attempted_nro,
		       error_code, error_message, indeterminate, attempted_at, reconciled_at
		FROM issue_attempts
		WHERE order_id = $1 AND indeterminate AND reconciled_at IS NULL
		ORDER BY attempted_at DESC
		LIMIT 1`
	var att entity.FailedAttempt
	err := r.q.QueryRow(ctx, query, orderID).Scan(
		&att.ID, &att.OrderID, &att.PointOfSale, &att.VoucherType, &att.AttemptedNumber,
		&att.ErrorCode, &att.ErrorMessage, &att.Indeterminate, &att.AttemptedAt, &att.ReconciledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get pending attempt: %w", err)
	}
	return &att, nil
}

// MarkReconciled cierra un intento indeterminado tras la conciliación.
func (r *AttemptRepo) MarkReconciled(ctx context.Context, attemptID string, at time.Time) error {
	_, err := r.q.Exec(ctx,
		`UPDATE issue_attempts SET reconciled_at = $2 WHERE id = $1 AND reconciled_at IS NULL`,
		attemptID, at,
	)
	if err != nil {
		return fmt.Errorf("mark attempt reconciled: %w", err)
	}
	return nil
}
