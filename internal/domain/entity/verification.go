package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de una sesión de verificación (conteo físico).
const (
	SessionStateInProgress      = "IN_PROGRESS"
	SessionStatePendingApproval = "PENDING_APPROVAL"
	SessionStateApproved        = "APPROVED"
	SessionStateRejected        = "REJECTED"
)

// VerificationSession conteo físico acotado que compara cantidades esperadas contra contadas.
type VerificationSession struct {
	ID              string
	StartedAt       time.Time
	EndedAt         *time.Time // fin del conteo (al enviar a aprobación)
	State           string
	VerifierID      string
	ReviewerID      string
	ReviewedAt      *time.Time
	CompletedAt     *time.Time
	Notes           string
	RejectionReason string
	SupersedesID    *string
	Summary         VerificationSummary
	Lines           []*VerificationLine
}

// IsTerminal indica si la sesión ya no admite transiciones.
func (s *VerificationSession) IsTerminal() bool {
	return s.State == SessionStateApproved || s.State == SessionStateRejected
}

// Line busca la línea de un producto.
func (s *VerificationSession) Line(productID string) *VerificationLine {
	for _, l := range s.Lines {
		if l.ProductID == productID {
			return l
		}
	}
	return nil
}

// VerificationLine línea de conteo por producto. Expected se toma del libro al iniciar la sesión.
type VerificationLine struct {
	SessionID            string
	ProductID            string
	ProductName          string
	UnitPrice            decimal.Decimal
	ExpectedQuantity     decimal.Decimal
	CountedQuantity      *decimal.Decimal
	Difference           decimal.Decimal // Counted − Expected
	MonetaryDifference   decimal.Decimal // Difference × UnitPrice
	CountedAt            *time.Time
	AdjustmentMovementID *string
}

// Counted indica si la línea ya fue contada.
func (l *VerificationLine) Counted() bool {
	return l.CountedQuantity != nil
}

// VerificationSummary resumen derivado de las líneas; nunca se edita por separado.
type VerificationSummary struct {
	TotalLines              int
	LinesCounted            int
	LinesMatching           int
	LinesWithDifference     int
	TotalMonetaryDifference decimal.Decimal
	CompletionPct           decimal.Decimal
}
