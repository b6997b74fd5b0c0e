package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/agro-inventario/internal/domain/entity"
)

// ProductResponse salida de un producto. CurrentQuantity solo cambia por movimientos.
type ProductResponse struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Category        string          `json:"category"`
	CurrentQuantity decimal.Decimal `json:"current_quantity"`
	UnitMeasure     string          `json:"unit_measure"`
	MinStock        decimal.Decimal `json:"min_stock"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Valuation       decimal.Decimal `json:"valuation"`
	BelowMinStock   bool            `json:"below_min_stock"`
	Active          bool            `json:"active"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ProductListResponse lista paginada de productos.
type ProductListResponse struct {
	Items []ProductResponse `json:"items"`
	Page  PageResponse      `json:"page"`
}

// BalanceResponse saldo actual de un producto.
type BalanceResponse struct {
	ProductID     string          `json:"product_id"`
	Balance       decimal.Decimal `json:"balance"`
	BelowMinStock bool            `json:"below_min_stock"`
}

// BalanceCheckResponse comparación entre el saldo guardado y la suma de movimientos vivos.
type BalanceCheckResponse struct {
	ProductID  string          `json:"product_id"`
	Stored     decimal.Decimal `json:"stored"`
	Computed   decimal.Decimal `json:"computed"`
	Consistent bool            `json:"consistent"`
}

// ProductFromEntity convierte la entidad a su respuesta HTTP.
func ProductFromEntity(p *entity.Product) ProductResponse {
	return ProductResponse{
		ID:              p.ID,
		Name:            p.Name,
		Category:        p.Category,
		CurrentQuantity: p.CurrentQuantity,
		UnitMeasure:     p.UnitMeasure,
		MinStock:        p.MinStock,
		UnitPrice:       p.UnitPrice,
		Valuation:       p.Valuation(),
		BelowMinStock:   p.BelowMinStock(),
		Active:          p.Active,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}
