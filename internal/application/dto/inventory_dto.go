package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/agro-inventario/internal/domain/entity"
)

// ApplyMovementRequest body para POST /api/movements (movimiento manual).
type ApplyMovementRequest struct {
	ProductID   string          `json:"product_id"`
	Type        string          `json:"type"` // ENTRY | EXIT
	Quantity    decimal.Decimal `json:"quantity"`
	Date        *time.Time      `json:"date,omitempty"`
	Note        string          `json:"note"`
	Provisional bool            `json:"provisional"`
}

// MovementResponse salida de un movimiento del libro.
type MovementResponse struct {
	ID             string          `json:"id"`
	ProductID      string          `json:"product_id"`
	Type           string          `json:"type"`
	Origin         string          `json:"origin"`
	Quantity       decimal.Decimal `json:"quantity"`
	PriorBalance   decimal.Decimal `json:"prior_balance"`
	NewBalance     decimal.Decimal `json:"new_balance"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Value          decimal.Decimal `json:"value"`
	Date           time.Time       `json:"date"`
	ActorID        string          `json:"actor_id"`
	PurchaseID     *string         `json:"purchase_id,omitempty"`
	VerificationID *string         `json:"verification_id,omitempty"`
	Note           string          `json:"note,omitempty"`
	Provisional    bool            `json:"provisional"`
	Status         string          `json:"status"`
	ReversalOf     *string         `json:"reversal_of,omitempty"`
	ReversedBy     *string         `json:"reversed_by,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// MovementListResponse página del historial de un producto, más reciente primero.
type MovementListResponse struct {
	Items []MovementResponse `json:"items"`
	Page  PageResponse       `json:"page"`
}

// MovementFromEntity convierte la entidad a su respuesta HTTP.
func MovementFromEntity(m *entity.Movement) MovementResponse {
	return MovementResponse{
		ID:             m.ID,
		ProductID:      m.ProductID,
		Type:           m.Type,
		Origin:         m.Origin,
		Quantity:       m.Quantity,
		PriorBalance:   m.PriorBalance,
		NewBalance:     m.NewBalance,
		UnitPrice:      m.UnitPrice,
		Value:          m.Value,
		Date:           m.Date,
		ActorID:        m.ActorID,
		PurchaseID:     m.PurchaseID,
		VerificationID: m.VerificationID,
		Note:           m.Note,
		Provisional:    m.Provisional,
		Status:         m.Status,
		ReversalOf:     m.ReversalOf,
		ReversedBy:     m.ReversedBy,
		CreatedAt:      m.CreatedAt,
	}
}
