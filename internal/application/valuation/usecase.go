// Package valuation arma el resumen mensual de entradas, salidas y valor aproximado del inventario.
package valuation

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/agro-inventario/internal/application/authz"
	"github.com/jhoicas/agro-inventario/internal/application/dto"
	"github.com/jhoicas/agro-inventario/internal/domain"
	"github.com/jhoicas/agro-inventario/internal/domain/entity"
	"github.com/jhoicas/agro-inventario/internal/domain/inventory"
	"github.com/jhoicas/agro-inventario/internal/domain/repository"
)

// maxMonths tope de la ventana consultable.
const maxMonths = 120

// UseCase agregador de valoración. Solo lee.
type UseCase struct {
	analyticsRepo repository.AnalyticsRepository
	policy        *authz.Policy
	now           func() time.Time
}

// NewUseCase construye el caso de uso.
func NewUseCase(analyticsRepo repository.AnalyticsRepository, policy *authz.Policy) *UseCase {
	return &UseCase{analyticsRepo: analyticsRepo, policy: policy, now: time.Now}
}

// SetClock reemplaza el reloj (pruebas).
func (uc *UseCase) SetClock(now func() time.Time) { uc.now = now }

// MonthlySummary agrupa por mes los movimientos vivos de [from, to] y reconstruye el valor
// al cierre de cada mes caminando hacia atrás desde la valoración actual.
//
// Dos consultas en paralelo:
//  1. CurrentValuation          → punto de partida del recorrido
//  2. MonthlyTotals(from, ahora) → incluye los meses posteriores a la ventana
func (uc *UseCase) MonthlySummary(ctx context.Context, actor entity.Actor, from, to time.Time) (*dto.ValuationSummaryDTO, error) {
	if err := uc.policy.Require(actor, entity.CapViewReports); err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, domain.NewValidationError("to", "anterior a from")
	}

	now := uc.now().UTC()
	from = from.UTC()
	to = to.UTC()
	first := inventory.MonthStart(from)
	if monthsBetween(first, inventory.MonthStart(to)) > maxMonths {
		return nil, domain.NewValidationError("from", fmt.Sprintf("la ventana no puede superar %d meses", maxMonths))
	}
	// el recorrido necesita todo lo ocurrido hasta hoy, no solo la ventana
	until := inventory.MonthStart(now).AddDate(0, 1, 0)

	type valuationResult struct {
		value decimal.Decimal
		err   error
	}
	type totalsResult struct {
		totals []inventory.MonthlyTotals
		err    error
	}
	valCh := make(chan valuationResult, 1)
	totCh := make(chan totalsResult, 1)

	go func() {
		v, err := uc.analyticsRepo.CurrentValuation(ctx)
		valCh <- valuationResult{v, err}
	}()
	go func() {
		t, err := uc.analyticsRepo.MonthlyTotals(ctx, first, until)
		totCh <- totalsResult{t, err}
	}()

	val := <-valCh
	tot := <-totCh
	if val.err != nil {
		return nil, fmt.Errorf("valoración: valor actual: %w", val.err)
	}
	if tot.err != nil {
		return nil, fmt.Errorf("valoración: totales mensuales: %w", tot.err)
	}

	buckets := inventory.WalkBackValuation(val.value, tot.totals, from, to, now)

	out := &dto.ValuationSummaryDTO{
		From:             first,
		To:               to,
		CurrentValuation: val.value.Round(2),
		TotalEntries:     decimal.Zero,
		TotalExits:       decimal.Zero,
		Buckets:          make([]dto.ValuationBucketDTO, 0, len(buckets)),
		Approximate:      true,
		Note:             dto.ValuationNote,
		GeneratedAt:      now,
	}
	for _, b := range buckets {
		out.TotalEntries = out.TotalEntries.Add(b.Entries)
		out.TotalExits = out.TotalExits.Add(b.Exits)
		out.Buckets = append(out.Buckets, dto.ValuationBucketDTO{
			Month:        b.Month.Format("2006-01"),
			Label:        monthLabel(b.Month),
			Entries:      b.Entries.Round(2),
			Exits:        b.Exits.Round(2),
			Net:          b.Net.Round(2),
			OpeningValue: b.OpeningValue.Round(2),
			ClosingValue: b.ClosingValue.Round(2),
			Approximate:  true,
		})
	}
	out.TotalEntries = out.TotalEntries.Round(2)
	out.TotalExits = out.TotalExits.Round(2)
	return out, nil
}

func monthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

// monthLabel devuelve una etiqueta legible del mes, ej: "Febrero 2026".
func monthLabel(t time.Time) string {
	months := [...]string{
		"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
		"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
	}
	return fmt.Sprintf("%s %d", months[t.Month()-1], t.Year())
}
