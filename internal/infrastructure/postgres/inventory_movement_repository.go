package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/agro-inventario/internal/domain"
	"github.com/jhoicas/agro-inventario/internal/domain/entity"
	"github.com/jhoicas/agro-inventario/internal/domain/repository"
)

var _ repository.MovementRepository = (*MovementRepo)(nil)

const movementColumns = `id, product_id, type, origin, quantity, prior_balance, new_balance, unit_price, value, date,
		actor_id, purchase_id, verification_id, note, provisional, status, reversal_of, reversed_by, created_at`

// MovementRepo implementación sobre PostgreSQL (usable con pool o tx).
type MovementRepo struct {
	q Querier
}

// NewMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewMovementRepository(q Querier) *MovementRepo {
	return &MovementRepo{q: q}
}

func scanMovement(row pgx.Row) (*entity.Movement, error) {
	var m entity.Movement
	err := row.Scan(&m.ID, &m.ProductID, &m.Type, &m.Origin, &m.Quantity, &m.PriorBalance, &m.NewBalance,
		&m.UnitPrice, &m.Value, &m.Date, &m.ActorID, &m.PurchaseID, &m.VerificationID, &m.Note,
		&m.Provisional, &m.Status, &m.ReversalOf, &m.ReversedBy, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Create persiste un movimiento.
func (r *MovementRepo) Create(ctx context.Context, m *entity.Movement) error {
	query := `
		INSERT INTO movements (` + movementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`
	_, err := r.q.Exec(ctx, query,
		m.ID, m.ProductID, m.Type, m.Origin, m.Quantity, m.PriorBalance, m.NewBalance,
		m.UnitPrice, m.Value, m.Date, m.ActorID, m.PurchaseID, m.VerificationID, m.Note,
		m.Provisional, m.Status, m.ReversalOf, m.ReversedBy, m.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("create movement: %w", err)
	}
	return nil
}

// GetByID obtiene un movimiento por ID.
func (r *MovementRepo) GetByID(ctx context.Context, id string) (*entity.Movement, error) {
	query := `SELECT ` + movementColumns + ` FROM movements WHERE id = $1`
	m, err := scanMovement(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get movement: %w", err)
	}
	return m, nil
}

// MarkReversed deja el movimiento fuera del saldo y lo enlaza con su compensatorio.
func (r *MovementRepo) MarkReversed(ctx context.Context, id, reversedBy string) error {
	query := `UPDATE movements SET status = $1, reversed_by = $2 WHERE id = $3`
	tag, err := r.q.Exec(ctx, query, entity.MovementStatusReversed, reversedBy, id)
	if err != nil {
		return fmt.Errorf("mark movement reversed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete elimina el movimiento (política de reversión "delete").
func (r *MovementRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM movements WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete movement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByProduct movimientos del producto, más recientes primero, con rango de fechas opcional (inclusive).
func (r *MovementRepo) ListByProduct(ctx context.Context, productID string, from, to *time.Time, limit, offset int) ([]*entity.Movement, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + movementColumns + ` FROM movements WHERE product_id = $1`)
	args := []any{productID}
	pos := 2
	if from != nil {
		fmt.Fprintf(&sb, " AND date >= $%d", pos)
		args = append(args, *from)
		pos++
	}
	if to != nil {
		fmt.Fprintf(&sb, " AND date <= $%d", pos)
		args = append(args, *to)
		pos++
	}
	fmt.Fprintf(&sb, " ORDER BY date DESC, created_at DESC LIMIT $%d OFFSET $%d", pos, pos+1)
	args = append(args, limitArg(limit), offset)
	return r.list(ctx, sb.String(), args...)
}

// ListByPurchase movimientos enlazados a una compra, en orden de escritura.
func (r *MovementRepo) ListByPurchase(ctx context.Context, purchaseID string) ([]*entity.Movement, error) {
	query := `SELECT ` + movementColumns + ` FROM movements WHERE purchase_id = $1 ORDER BY created_at, id`
	return r.list(ctx, query, purchaseID)
}

// SumLive suma con signo los movimientos ACTIVE del producto.
func (r *MovementRepo) SumLive(ctx context.Context, productID string) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(CASE WHEN type = 'ENTRY' THEN quantity ELSE -quantity END), 0)
		FROM movements WHERE product_id = $1 AND status = $2`
	var sum decimal.Decimal
	if err := r.q.QueryRow(ctx, query, productID, entity.MovementStatusActive).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("sum live movements: %w", err)
	}
	return sum, nil
}

func (r *MovementRepo) list(ctx context.Context, query string, args ...any) ([]*entity.Movement, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	defer rows.Close()
	var out []*entity.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
