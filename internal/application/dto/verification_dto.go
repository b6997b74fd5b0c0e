package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/agro-inventario/internal/domain/entity"
)

// StartVerificationRequest body para iniciar o reiniciar una sesión.
type StartVerificationRequest struct {
	Notes string `json:"notes"`
}

// RecordCountRequest conteo físico de un producto.
type RecordCountRequest struct {
	ProductID       string          `json:"product_id"`
	CountedQuantity decimal.Decimal `json:"counted_quantity"`
}

// RejectVerificationRequest motivo del rechazo.
type RejectVerificationRequest struct {
	Reason string `json:"reason"`
}

// VerificationLineResponse línea de conteo.
type VerificationLineResponse struct {
	ProductID            string           `json:"product_id"`
	ProductName          string           `json:"product_name"`
	UnitPrice            decimal.Decimal  `json:"unit_price"`
	ExpectedQuantity     decimal.Decimal  `json:"expected_quantity"`
	CountedQuantity      *decimal.Decimal `json:"counted_quantity"`
	Difference           decimal.Decimal  `json:"difference"`
	MonetaryDifference   decimal.Decimal  `json:"monetary_difference"`
	CountedAt            *time.Time       `json:"counted_at,omitempty"`
	AdjustmentMovementID *string          `json:"adjustment_movement_id,omitempty"`
}

// VerificationSummaryResponse resumen derivado de las líneas.
type VerificationSummaryResponse struct {
	TotalLines              int             `json:"total_lines"`
	LinesCounted            int             `json:"lines_counted"`
	LinesMatching           int             `json:"lines_matching"`
	LinesWithDifference     int             `json:"lines_with_difference"`
	TotalMonetaryDifference decimal.Decimal `json:"total_monetary_difference"`
	CompletionPct           decimal.Decimal `json:"completion_pct"`
}

// VerificationResponse sesión de verificación. Lines se omite en los listados.
type VerificationResponse struct {
	ID              string                      `json:"id"`
	State           string                      `json:"state"`
	StartedAt       time.Time                   `json:"started_at"`
	EndedAt         *time.Time                  `json:"ended_at,omitempty"`
	VerifierID      string                      `json:"verifier_id"`
	ReviewerID      string                      `json:"reviewer_id,omitempty"`
	ReviewedAt      *time.Time                  `json:"reviewed_at,omitempty"`
	CompletedAt     *time.Time                  `json:"completed_at,omitempty"`
	Notes           string                      `json:"notes,omitempty"`
	RejectionReason string                      `json:"rejection_reason,omitempty"`
	SupersedesID    *string                     `json:"supersedes_id,omitempty"`
	Summary         VerificationSummaryResponse `json:"summary"`
	Lines           []VerificationLineResponse  `json:"lines,omitempty"`
}

// VerificationListResponse lista paginada de sesiones.
type VerificationListResponse struct {
	Items []VerificationResponse `json:"items"`
	Page  PageResponse           `json:"page"`
}

// VerificationFromEntity convierte la sesión (con sus líneas si vienen cargadas).
func VerificationFromEntity(s *entity.VerificationSession) VerificationResponse {
	out := VerificationResponse{
		ID:              s.ID,
		State:           s.State,
		StartedAt:       s.StartedAt,
		EndedAt:         s.EndedAt,
		VerifierID:      s.VerifierID,
		ReviewerID:      s.ReviewerID,
		ReviewedAt:      s.ReviewedAt,
		CompletedAt:     s.CompletedAt,
		Notes:           s.Notes,
		RejectionReason: s.RejectionReason,
		SupersedesID:    s.SupersedesID,
		Summary: VerificationSummaryResponse{
			TotalLines:              s.Summary.TotalLines,
			LinesCounted:            s.Summary.LinesCounted,
			LinesMatching:           s.Summary.LinesMatching,
			LinesWithDifference:     s.Summary.LinesWithDifference,
			TotalMonetaryDifference: s.Summary.TotalMonetaryDifference,
			CompletionPct:           s.Summary.CompletionPct,
		},
	}
	for _, l := range s.Lines {
		out.Lines = append(out.Lines, VerificationLineResponse{
			ProductID:            l.ProductID,
			ProductName:          l.ProductName,
			UnitPrice:            l.UnitPrice,
			ExpectedQuantity:     l.ExpectedQuantity,
			CountedQuantity:      l.CountedQuantity,
			Difference:           l.Difference,
			MonetaryDifference:   l.MonetaryDifference,
			CountedAt:            l.CountedAt,
			AdjustmentMovementID: l.AdjustmentMovementID,
		})
	}
	return out
}
