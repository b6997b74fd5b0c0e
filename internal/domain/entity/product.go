package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product representa un insumo o producto de la finca.
// CurrentQuantity solo cambia a través del libro de movimientos, nunca por edición directa.
type Product struct {
	ID              string
	Name            string
	Category        string
	CurrentQuantity decimal.Decimal
	UnitMeasure     string
	MinStock        decimal.Decimal
	UnitPrice       decimal.Decimal
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Valuation devuelve CurrentQuantity × UnitPrice.
func (p *Product) Valuation() decimal.Decimal {
	return p.CurrentQuantity.Mul(p.UnitPrice)
}

// BelowMinStock indica si el producto está por debajo del stock mínimo.
func (p *Product) BelowMinStock() bool {
	return p.CurrentQuantity.LessThan(p.MinStock)
}
