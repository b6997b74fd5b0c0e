package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/agro-inventario/internal/domain"
	"github.com/jhoicas/agro-inventario/internal/domain/entity"
	"github.com/jhoicas/agro-inventario/internal/domain/repository"
)

var (
	_ repository.PurchaseRepository = (*PurchaseRepo)(nil)
	_ repository.ExpenseRepository  = (*ExpenseRepo)(nil)
)

const purchaseColumns = `id, purchase_date, supplier, invoice_number, product_id, quantity, unit, batch_number,
		expiry_date, unit_cost, total_cost, invoice_document_ref, recorded_by, idempotency_key, entry_movement_id, created_at`

// PurchaseRepo compras sobre PostgreSQL.
type PurchaseRepo struct {
	q Querier
}

// NewPurchaseRepository construye el adaptador. Pasar pool o tx (Querier).
func NewPurchaseRepository(q Querier) *PurchaseRepo {
	return &PurchaseRepo{q: q}
}

func scanPurchase(row pgx.Row) (*entity.Purchase, error) {
	var p entity.Purchase
	var idemKey, entryID *string
	err := row.Scan(&p.ID, &p.PurchaseDate, &p.Supplier, &p.InvoiceNumber, &p.ProductID, &p.Quantity,
		&p.Unit, &p.BatchNumber, &p.ExpiryDate, &p.UnitCost, &p.TotalCost, &p.InvoiceDocumentRef,
		&p.RecordedBy, &idemKey, &entryID, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.IdempotencyKey = derefString(idemKey)
	p.EntryMovementID = derefString(entryID)
	return &p, nil
}

// Create persiste la compra. Una clave de idempotencia repetida devuelve domain.ErrDuplicate.
func (r *PurchaseRepo) Create(ctx context.Context, p *entity.Purchase) error {
	query := `
		INSERT INTO purchases (` + purchaseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err := r.q.Exec(ctx, query,
		p.ID, p.PurchaseDate, p.Supplier, p.InvoiceNumber, p.ProductID, p.Quantity,
		p.Unit, p.BatchNumber, p.ExpiryDate, p.UnitCost, p.TotalCost, p.InvoiceDocumentRef,
		p.RecordedBy, nullString(p.IdempotencyKey), nullString(p.EntryMovementID), p.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert purchase: %w", err)
	}
	return nil
}

func (r *PurchaseRepo) getOne(ctx context.Context, query string, args ...any) (*entity.Purchase, error) {
	p, err := scanPurchase(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get purchase: %w", err)
	}
	return p, nil
}

func (r *PurchaseRepo) GetByID(ctx context.Context, id string) (*entity.Purchase, error) {
	return r.getOne(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id = $1`, id)
}

func (r *PurchaseRepo) GetForUpdate(ctx context.Context, id string) (*entity.Purchase, error) {
	return r.getOne(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id = $1 FOR UPDATE`, id)
}

func (r *PurchaseRepo) GetByIdempotencyKey(ctx context.Context, recordedBy, key string) (*entity.Purchase, error) {
	if key == "" {
		return nil, nil
	}
	return r.getOne(ctx, `SELECT `+purchaseColumns+` FROM purchases
		WHERE recorded_by = $1 AND idempotency_key = $2`, recordedBy, key)
}

func (r *PurchaseRepo) exec(ctx context.Context, what, query string, args ...any) error {
	tag, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PurchaseRepo) SetEntryMovement(ctx context.Context, id, movementID string) error {
	return r.exec(ctx, "set entry movement",
		`UPDATE purchases SET entry_movement_id = $1 WHERE id = $2`, movementID, id)
}

func (r *PurchaseRepo) SetInvoiceDocument(ctx context.Context, id, ref string) error {
	return r.exec(ctx, "set invoice document",
		`UPDATE purchases SET invoice_document_ref = $1 WHERE id = $2`, ref, id)
}

func (r *PurchaseRepo) Delete(ctx context.Context, id string) error {
	return r.exec(ctx, "delete purchase", `DELETE FROM purchases WHERE id = $1`, id)
}

// List compras más recientes primero.
func (r *PurchaseRepo) List(ctx context.Context, limit, offset int) ([]*entity.Purchase, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchases
		ORDER BY purchase_date DESC, created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.q.Query(ctx, query, limitArg(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close()
	var out []*entity.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ExpenseRepo gastos de compras sobre PostgreSQL.
type ExpenseRepo struct {
	q Querier
}

// NewExpenseRepository construye el adaptador. Pasar pool o tx (Querier).
func NewExpenseRepository(q Querier) *ExpenseRepo {
	return &ExpenseRepo{q: q}
}

func (r *ExpenseRepo) Create(ctx context.Context, e *entity.Expense) error {
	query := `
		INSERT INTO expenses (id, purchase_id, description, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.q.Exec(ctx, query, e.ID, e.PurchaseID, e.Description, e.Amount, e.Status, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}
	return nil
}

func (r *ExpenseRepo) ListByPurchase(ctx context.Context, purchaseID string) ([]*entity.Expense, error) {
	query := `
		SELECT id, purchase_id, description, amount, status, created_at
		FROM expenses WHERE purchase_id = $1 ORDER BY created_at, id`
	rows, err := r.q.Query(ctx, query, purchaseID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()
	var out []*entity.Expense
	for rows.Next() {
		var e entity.Expense
		if err := rows.Scan(&e.ID, &e.PurchaseID, &e.Description, &e.Amount, &e.Status, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (r *ExpenseRepo) DeletePendingByPurchase(ctx context.Context, purchaseID string) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM expenses WHERE purchase_id = $1 AND status = $2`,
		purchaseID, entity.ExpenseStatusPending)
	if err != nil {
		return 0, fmt.Errorf("delete pending expenses: %w", err)
	}
	return tag.RowsAffected(), nil
}
