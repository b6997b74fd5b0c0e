package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de movimiento.
const (
	MovementTypeEntry = "ENTRY" // entrada
	MovementTypeExit  = "EXIT"  // salida
)

// Origen del movimiento.
const (
	MovementOriginPurchase         = "PURCHASE"
	MovementOriginPurchaseReversal = "PURCHASE_REVERSAL"
	MovementOriginVerificationAdj  = "VERIFICATION_ADJUSTMENT"
	MovementOriginManual           = "MANUAL"
)

// Estado del movimiento. Solo los ACTIVE cuentan para el saldo.
const (
	MovementStatusActive   = "ACTIVE"
	MovementStatusReversed = "REVERSED"
)

// Movement es un cambio de stock de un producto con el saldo anterior y nuevo capturados al escribir.
// Quantity siempre es positiva; la dirección la da Type.
type Movement struct {
	ID             string
	ProductID      string
	Type           string
	Origin         string
	Quantity       decimal.Decimal
	PriorBalance   decimal.Decimal
	NewBalance     decimal.Decimal
	UnitPrice      decimal.Decimal
	Value          decimal.Decimal // Quantity × UnitPrice
	Date           time.Time
	ActorID        string
	PurchaseID     *string
	VerificationID *string
	Note           string
	Provisional    bool
	Status         string
	ReversalOf     *string // movimiento que este compensa
	ReversedBy     *string // movimiento compensatorio que lo anuló
	CreatedAt      time.Time
}

// IsLive indica si el movimiento cuenta para el saldo del producto.
func (m *Movement) IsLive() bool {
	return m.Status == MovementStatusActive
}

// Signed devuelve la cantidad con signo: + para ENTRY, − para EXIT.
func (m *Movement) Signed() decimal.Decimal {
	if m.Type == MovementTypeExit {
		return m.Quantity.Neg()
	}
	return m.Quantity
}

// ValidMovementType indica si t es ENTRY o EXIT.
func ValidMovementType(t string) bool {
	return t == MovementTypeEntry || t == MovementTypeExit
}
