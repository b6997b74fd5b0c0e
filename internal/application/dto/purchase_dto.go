package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/agro-inventario/internal/domain/entity"
)

// PurchaseResponse salida de una compra.
type PurchaseResponse struct {
	ID                 string          `json:"id"`
	PurchaseDate       time.Time       `json:"purchase_date"`
	Supplier           string          `json:"supplier"`
	InvoiceNumber      string          `json:"invoice_number"`
	ProductID          string          `json:"product_id"`
	Quantity           decimal.Decimal `json:"quantity"`
	Unit               string          `json:"unit"`
	BatchNumber        string          `json:"batch_number,omitempty"`
	ExpiryDate         *time.Time      `json:"expiry_date,omitempty"`
	UnitCost           decimal.Decimal `json:"unit_cost"`
	TotalCost          decimal.Decimal `json:"total_cost"`
	HasInvoiceDocument bool            `json:"has_invoice_document"`
	RecordedBy         string          `json:"recorded_by"`
	EntryMovementID    string          `json:"entry_movement_id"`
	CreatedAt          time.Time       `json:"created_at"`
}

// PurchaseListResponse lista paginada de compras.
type PurchaseListResponse struct {
	Items []PurchaseResponse `json:"items"`
	Page  PageResponse       `json:"page"`
}

// PurchaseDeletionResponse resultado de DELETE /api/purchases/:id.
type PurchaseDeletionResponse struct {
	PurchaseID             string          `json:"purchase_id"`
	ProductID              string          `json:"product_id"`
	QuantityReversed       decimal.Decimal `json:"quantity_reversed"`
	NewBalance             decimal.Decimal `json:"new_balance"`
	CompensatingMovementID string          `json:"compensating_movement_id,omitempty"`
	OriginalMovementID     string          `json:"original_movement_id"`
	ReversalPolicy         string          `json:"reversal_policy"`
	ExpensesRemoved        int64           `json:"expenses_removed"`
	Warnings               []string        `json:"warnings,omitempty"`
}

// PurchaseFromEntity convierte la entidad a su respuesta HTTP.
func PurchaseFromEntity(p *entity.Purchase) PurchaseResponse {
	return PurchaseResponse{
		ID:                 p.ID,
		PurchaseDate:       p.PurchaseDate,
		Supplier:           p.Supplier,
		InvoiceNumber:      p.InvoiceNumber,
		ProductID:          p.ProductID,
		Quantity:           p.Quantity,
		Unit:               p.Unit,
		BatchNumber:        p.BatchNumber,
		ExpiryDate:         p.ExpiryDate,
		UnitCost:           p.UnitCost,
		TotalCost:          p.TotalCost,
		HasInvoiceDocument: p.InvoiceDocumentRef != "",
		RecordedBy:         p.RecordedBy,
		EntryMovementID:    p.EntryMovementID,
		CreatedAt:          p.CreatedAt,
	}
}
