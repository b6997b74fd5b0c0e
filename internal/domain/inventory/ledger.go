// Package inventory contiene las reglas puras del libro de stock: saldos,
// transiciones de la verificación y valoración histórica aproximada.
package inventory

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/agro-inventario/internal/domain"
	"github.com/jhoicas/agro-inventario/internal/domain/entity"
)

// Scale decimales de las columnas NUMERIC(18,4) de cantidades e importes.
const Scale = 4

// FitsScale indica si d se guarda sin redondeo (a lo sumo Scale decimales significativos).
func FitsScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(Scale))
}

// Amount redondea un producto cantidad × precio a la escala guardada.
func Amount(quantity, price decimal.Decimal) decimal.Decimal {
	return quantity.Mul(price).Round(Scale)
}

// NextBalance calcula el saldo resultante de aplicar un movimiento.
// Devuelve NegativeStockError si el resultado queda por debajo de cero.
func NextBalance(productID string, current decimal.Decimal, movementType string, quantity decimal.Decimal) (decimal.Decimal, error) {
	delta := quantity
	if movementType == entity.MovementTypeExit {
		delta = quantity.Neg()
	}
	next := current.Add(delta)
	if next.IsNegative() {
		return current, &domain.NegativeStockError{ProductID: productID, Current: current, Delta: delta}
	}
	return next, nil
}

// LiveSum suma con signo los movimientos vivos (ENTRY +, EXIT −).
func LiveSum(movements []*entity.Movement) decimal.Decimal {
	sum := decimal.Zero
	for _, m := range movements {
		if m.IsLive() {
			sum = sum.Add(m.Signed())
		}
	}
	return sum
}

// AdjustmentFor devuelve el tipo y la cantidad del movimiento de ajuste para una diferencia de conteo.
// ok es false si no hay diferencia.
func AdjustmentFor(difference decimal.Decimal) (movementType string, quantity decimal.Decimal, ok bool) {
	switch {
	case difference.IsPositive():
		return entity.MovementTypeEntry, difference, true
	case difference.IsNegative():
		return entity.MovementTypeExit, difference.Abs(), true
	default:
		return "", decimal.Zero, false
	}
}
