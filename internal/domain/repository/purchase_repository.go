package repository

import (
	"context"

	"github.com/jhoicas/agro-inventario/internal/domain/entity"
)

// PurchaseRepository define el puerto de persistencia para compras.
type PurchaseRepository interface {
	Create(ctx context.Context, purchase *entity.Purchase) error
	GetByID(ctx context.Context, id string) (*entity.Purchase, error)
	GetForUpdate(ctx context.Context, id string) (*entity.Purchase, error)
	// GetByIdempotencyKey busca la compra que recordedBy registró con key; (nil, nil) si no existe.
	GetByIdempotencyKey(ctx context.Context, recordedBy, key string) (*entity.Purchase, error)
	SetEntryMovement(ctx context.Context, id, movementID string) error
	SetInvoiceDocument(ctx context.Context, id, ref string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit, offset int) ([]*entity.Purchase, error)
}

// ExpenseRepository gastos generados por compras.
type ExpenseRepository interface {
	Create(ctx context.Context, expense *entity.Expense) error
	ListByPurchase(ctx context.Context, purchaseID string) ([]*entity.Expense, error)
	// DeletePendingByPurchase elimina los gastos PENDING de la compra y devuelve cuántos borró.
	DeletePendingByPurchase(ctx context.Context, purchaseID string) (int64, error)
}
