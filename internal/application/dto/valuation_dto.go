package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ValuationNote aclara que la valoración histórica es una reconstrucción aproximada.
const ValuationNote = "Valor aproximado: se reconstruye hacia atrás desde la valoración actual " +
	"asumiendo precios unitarios constantes; no refleja cambios de precio dentro del período."

// ValuationBucketDTO resumen de un mes calendario.
type ValuationBucketDTO struct {
	Month        string          `json:"month"` // YYYY-MM
	Label        string          `json:"label"` // ej: "Marzo 2024"
	Entries      decimal.Decimal `json:"entries"`
	Exits        decimal.Decimal `json:"exits"`
	Net          decimal.Decimal `json:"net"`
	OpeningValue decimal.Decimal `json:"opening_value"`
	ClosingValue decimal.Decimal `json:"closing_value"`
	Approximate  bool            `json:"approximate"`
}

// ValuationSummaryDTO respuesta de GET /api/valuation/monthly.
type ValuationSummaryDTO struct {
	From             time.Time            `json:"from"`
	To               time.Time            `json:"to"`
	CurrentValuation decimal.Decimal      `json:"current_valuation"`
	TotalEntries     decimal.Decimal      `json:"total_entries"`
	TotalExits       decimal.Decimal      `json:"total_exits"`
	Buckets          []ValuationBucketDTO `json:"buckets"`
	Approximate      bool                 `json:"approximate"`
	Note             string               `json:"note"`
	GeneratedAt      time.Time            `json:"generated_at"`
}
