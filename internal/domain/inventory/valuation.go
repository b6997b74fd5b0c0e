package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// MonthlyTotals valor de entradas y salidas vivas de un mes calendario.
type MonthlyTotals struct {
	Month   time.Time // primer día del mes, 00:00
	Entries decimal.Decimal
	Exits   decimal.Decimal
}

// ValuationBucket resumen mensual. OpeningValue y ClosingValue son aproximados:
// se reconstruyen desde la valoración actual asumiendo precios unitarios constantes.
type ValuationBucket struct {
	Month        time.Time
	Entries      decimal.Decimal
	Exits        decimal.Decimal
	Net          decimal.Decimal
	OpeningValue decimal.Decimal
	ClosingValue decimal.Decimal
}

// MonthStart devuelve el primer instante del mes de t.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// WalkBackValuation reconstruye la valoración mensual entre from y to caminando hacia atrás
// desde currentValuation (valor en now): cierre(m−1) = cierre(m) − entradas(m) + salidas(m).
// Los meses entre to y now se recorren pero no se devuelven. El resultado va en orden ascendente.
func WalkBackValuation(currentValuation decimal.Decimal, totals []MonthlyTotals, from, to, now time.Time) []ValuationBucket {
	byMonth := make(map[time.Time]MonthlyTotals, len(totals))
	for _, t := range totals {
		byMonth[MonthStart(t.Month)] = t
	}

	first := MonthStart(from)
	last := MonthStart(to)
	cursor := MonthStart(now)
	if last.After(cursor) {
		last = cursor
	}
	if first.After(last) {
		return nil
	}

	var out []ValuationBucket
	closing := currentValuation
	for !cursor.Before(first) {
		t := byMonth[cursor]
		entries := t.Entries
		exits := t.Exits
		opening := closing.Sub(entries).Add(exits)
		if !cursor.After(last) {
			out = append(out, ValuationBucket{
				Month:        cursor,
				Entries:      entries,
				Exits:        exits,
				Net:          entries.Sub(exits),
				OpeningValue: opening,
				ClosingValue: closing,
			})
		}
		closing = opening
		cursor = cursor.AddDate(0, -1, 0)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
