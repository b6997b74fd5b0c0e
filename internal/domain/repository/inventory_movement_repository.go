package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/agro-inventario/internal/domain/entity"
)

// MovementRepository define el puerto de persistencia para movimientos de stock.
// Los movimientos no se editan; solo MarkReversed cambia su estado y Delete existe para la política de borrado.
type MovementRepository interface {
	Create(ctx context.Context, movement *entity.Movement) error
	GetByID(ctx context.Context, id string) (*entity.Movement, error)
	MarkReversed(ctx context.Context, id, reversedBy string) error
	Delete(ctx context.Context, id string) error
	ListByProduct(ctx context.Context, productID string, from, to *time.Time, limit, offset int) ([]*entity.Movement, error)
	ListByPurchase(ctx context.Context, purchaseID string) ([]*entity.Movement, error)
	// SumLive suma con signo los movimientos ACTIVE del producto.
	SumLive(ctx context.Context, productID string) (decimal.Decimal, error)
}
