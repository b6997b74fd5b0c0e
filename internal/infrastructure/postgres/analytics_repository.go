package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/agro-inventario/internal/domain/entity"
	"github.com/jhoicas/agro-inventario/internal/domain/inventory"
	"github.com/jhoicas/agro-inventario/internal/domain/repository"
)

var _ repository.AnalyticsRepository = (*AnalyticsRepo)(nil)

// AnalyticsRepo consultas de solo lectura para la valoración del inventario.
type AnalyticsRepo struct {
	q Querier
}

// NewAnalyticsRepository construye el adaptador de analítica.
func NewAnalyticsRepository(q Querier) *AnalyticsRepo {
	return &AnalyticsRepo{q: q}
}

// CurrentValuation Σ current_quantity × unit_price de los productos activos.
func (r *AnalyticsRepo) CurrentValuation(ctx context.Context) (decimal.Decimal, error) {
	const query = `SELECT COALESCE(SUM(current_quantity * unit_price), 0) FROM products WHERE active`
	var total decimal.Decimal
	if err := r.q.QueryRow(ctx, query).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("current valuation: %w", err)
	}
	return total, nil
}

// MonthlyTotals agrupa por mes calendario (UTC) el valor de entradas y salidas vivas en [from, to).
func (r *AnalyticsRepo) MonthlyTotals(ctx context.Context, from, to time.Time) ([]inventory.MonthlyTotals, error) {
	const query = `
	SELECT
	    date_trunc('month', date AT TIME ZONE 'UTC')                     AS month,
	    COALESCE(SUM(value) FILTER (WHERE type = $1), 0)                  AS entries,
	    COALESCE(SUM(value) FILTER (WHERE type = $2), 0)                  AS exits
	FROM movements
	WHERE status = $3
	  AND date >= $4
	  AND date <  $5
	GROUP BY 1
	ORDER BY 1`

	rows, err := r.q.Query(ctx, query,
		entity.MovementTypeEntry, entity.MovementTypeExit, entity.MovementStatusActive,
		from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("monthly totals: %w", err)
	}
	defer rows.Close()

	var out []inventory.MonthlyTotals
	for rows.Next() {
		var month time.Time
		var t inventory.MonthlyTotals
		if err := rows.Scan(&month, &t.Entries, &t.Exits); err != nil {
			return nil, fmt.Errorf("scan monthly totals: %w", err)
		}
		t.Month = time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, from.Location())
		out = append(out, t)
	}
	return out, rows.Err()
}
