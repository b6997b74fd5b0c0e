package inventory

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/agro-inventario/internal/domain"
	"github.com/jhoicas/agro-inventario/internal/domain/entity"
)

var hundred = decimal.NewFromInt(100)

// transitions estados destino permitidos desde cada estado. REJECTED y APPROVED son terminales.
var transitions = map[string][]string{
	entity.SessionStateInProgress:      {entity.SessionStatePendingApproval},
	entity.SessionStatePendingApproval: {entity.SessionStateApproved, entity.SessionStateRejected},
}

// CheckTransition valida que la sesión pueda pasar de from a to.
func CheckTransition(from, to string) error {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return nil
		}
	}
	return &domain.InvalidTransitionError{From: from, To: to}
}

// CountLine registra el conteo de una línea y recalcula sus diferencias.
func CountLine(line *entity.VerificationLine, counted decimal.Decimal, at time.Time) {
	c := counted
	line.CountedQuantity = &c
	line.Difference = counted.Sub(line.ExpectedQuantity)
	line.MonetaryDifference = Amount(line.Difference, line.UnitPrice)
	line.CountedAt = &at
}

// Summarize deriva el resumen de la sesión a partir de sus líneas.
// Una sesión sin líneas se considera completa (100%).
func Summarize(lines []*entity.VerificationLine) entity.VerificationSummary {
	s := entity.VerificationSummary{
		TotalLines:              len(lines),
		TotalMonetaryDifference: decimal.Zero,
	}
	for _, l := range lines {
		if !l.Counted() {
			continue
		}
		s.LinesCounted++
		if l.Difference.IsZero() {
			s.LinesMatching++
		} else {
			s.LinesWithDifference++
			s.TotalMonetaryDifference = s.TotalMonetaryDifference.Add(l.MonetaryDifference)
		}
	}
	if s.TotalLines == 0 {
		s.CompletionPct = hundred
	} else {
		s.CompletionPct = decimal.NewFromInt(int64(s.LinesCounted)).
			Mul(hundred).
			Div(decimal.NewFromInt(int64(s.TotalLines))).
			Round(2)
	}
	return s
}

// PendingLines cuenta las líneas sin contar.
func PendingLines(lines []*entity.VerificationLine) int {
	n := 0
	for _, l := range lines {
		if !l.Counted() {
			n++
		}
	}
	return n
}
