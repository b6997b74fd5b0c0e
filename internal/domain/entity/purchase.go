package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Purchase es una compra de insumo. Mientras existe tiene exactamente un movimiento ENTRY vivo.
type Purchase struct {
	ID                 string
	PurchaseDate       time.Time
	Supplier           string
	InvoiceNumber      string
	ProductID          string
	Quantity           decimal.Decimal
	Unit               string
	BatchNumber        string
	ExpiryDate         *time.Time
	UnitCost           decimal.Decimal
	TotalCost          decimal.Decimal // Quantity × UnitCost
	InvoiceDocumentRef string
	RecordedBy         string
	IdempotencyKey     string
	EntryMovementID    string
	CreatedAt          time.Time
}

// Estados de gasto.
const (
	ExpenseStatusPending = "PENDING"
	ExpenseStatusPaid    = "PAID"
)

// Expense gasto generado por una compra; mientras está PENDING se elimina junto con la compra.
type Expense struct {
	ID          string
	PurchaseID  string
	Description string
	Amount      decimal.Decimal
	Status      string
	CreatedAt   time.Time
}
