package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/agro-inventario/internal/domain/inventory"
)

// AnalyticsRepository consultas de solo lectura sobre el libro para reportes de valoración.
type AnalyticsRepository interface {
	// CurrentValuation devuelve Σ CurrentQuantity × UnitPrice de los productos activos.
	CurrentValuation(ctx context.Context) (decimal.Decimal, error)

	// MonthlyTotals agrupa por mes calendario el valor de las entradas y salidas vivas
	// con fecha en [from, to). Meses sin movimientos pueden omitirse.
	MonthlyTotals(ctx context.Context, from, to time.Time) ([]inventory.MonthlyTotals, error)
}
