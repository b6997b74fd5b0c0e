// Package pdf genera el acta imprimible de una sesión de verificación de inventario.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: título + estado  │  N° sesión + fechas             │
//	│  RESPONSABLES: verificador / revisor                        │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: Producto | Esperado | Contado | Dif. | Dif. valor    │
//	│  ─────────────────────────────────────────────────────────  │
//	│  RESUMEN: líneas contadas / con diferencia / avance / total │
//	│  NOTAS y motivo de rechazo                                  │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"fmt"
	"time"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jhoicas/agro-inventario/internal/application/ports"
	"github.com/jhoicas/agro-inventario/internal/domain/entity"
)

var (
	colorPrimary = &props.Color{Red: 34, Green: 102, Blue: 51}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorRed     = &props.Color{Red: 170, Green: 30, Blue: 30}
)

var stateLabels = map[string]string{
	entity.SessionStateInProgress:      "EN CURSO",
	entity.SessionStatePendingApproval: "PENDIENTE DE APROBACIÓN",
	entity.SessionStateApproved:        "APROBADA",
	entity.SessionStateRejected:        "RECHAZADA",
}

var _ ports.VerificationReportRenderer = (*MarotoReportGenerator)(nil)

// MarotoReportGenerator implementa ports.VerificationReportRenderer usando Maroto v2.
type MarotoReportGenerator struct {
	printer *message.Printer
	loc     *time.Location
}

// NewMarotoReportGenerator construye el generador; las fechas se imprimen en loc (UTC si es nil).
func NewMarotoReportGenerator(loc *time.Location) *MarotoReportGenerator {
	if loc == nil {
		loc = time.UTC
	}
	return &MarotoReportGenerator{printer: message.NewPrinter(language.Spanish), loc: loc}
}

// RenderVerification genera el PDF y devuelve sus bytes.
func (g *MarotoReportGenerator) RenderVerification(s *entity.VerificationSession) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("pdf: sesión nula")
	}
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Verificación de inventario", true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(g.headerRow(s))
	m.AddRows(g.peopleRow(s))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))

	m.AddRows(tableHeaderRow())
	m.AddRows(g.lineRows(s.Lines)...)

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(g.summaryRow(s.Summary))
	m.AddRows(notesRows(s)...)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar acta %s: %w", s.ID, err)
	}
	return doc.GetBytes(), nil
}

func (g *MarotoReportGenerator) headerRow(s *entity.VerificationSession) core.Row {
	ended := "—"
	if s.EndedAt != nil {
		ended = g.date(*s.EndedAt)
	}
	return row.New(18).Add(
		col.New(7).Add(
			text.New("VERIFICACIÓN DE INVENTARIO", props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("Estado: "+nonEmpty(stateLabels[s.State], s.State), props.Text{
				Style: fontstyle.Bold, Size: 9, Top: 9,
			}),
		),
		col.New(5).Add(
			text.New("Sesión "+s.ID, props.Text{
				Size: 7, Align: align.Right, Color: colorGray, Top: 1,
			}),
			text.New("Inicio: "+g.date(s.StartedAt), props.Text{
				Size: 8, Align: align.Right, Top: 7,
			}),
			text.New("Fin del conteo: "+ended, props.Text{
				Size: 8, Align: align.Right, Top: 12,
			}),
		),
	)
}

func (g *MarotoReportGenerator) peopleRow(s *entity.VerificationSession) core.Row {
	reviewed := "—"
	if s.ReviewedAt != nil {
		reviewed = g.date(*s.ReviewedAt)
	}
	return row.New(10).Add(
		col.New(6).Add(text.New("Verificador: "+nonEmpty(s.VerifierID, "—"), props.Text{
			Size: 8, Top: 2, Color: colorGray,
		})),
		col.New(6).Add(text.New(fmt.Sprintf("Revisor: %s (%s)", nonEmpty(s.ReviewerID, "—"), reviewed), props.Text{
			Size: 8, Top: 2, Align: align.Right, Color: colorGray,
		})),
	)
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a, Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Producto", 4, align.Left),
		h("Esperado", 2, align.Right),
		h("Contado", 2, align.Right),
		h("Diferencia", 2, align.Right),
		h("Dif. valor", 2, align.Right),
	)
}

// lineRows una fila por producto; las diferencias distintas de cero van en rojo.
func (g *MarotoReportGenerator) lineRows(lines []*entity.VerificationLine) []core.Row {
	rows := make([]core.Row, 0, len(lines))
	for _, l := range lines {
		counted := "sin contar"
		diff, money := "—", "—"
		var diffColor *props.Color
		if l.Counted() {
			counted = g.qty(*l.CountedQuantity)
			diff = g.qty(l.Difference)
			money = "$" + g.money(l.MonetaryDifference)
			if !l.Difference.IsZero() {
				diffColor = colorRed
			}
		}
		rows = append(rows, row.New(7).Add(
			col.New(4).Add(text.New(l.ProductName, props.Text{Size: 8, Top: 1, Left: 1})),
			col.New(2).Add(text.New(g.qty(l.ExpectedQuantity), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
			col.New(2).Add(text.New(counted, props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
			col.New(2).Add(text.New(diff, props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1, Color: diffColor})),
			col.New(2).Add(text.New(money, props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1, Color: diffColor})),
		))
	}
	return rows
}

func (g *MarotoReportGenerator) summaryRow(sum entity.VerificationSummary) core.Row {
	label := func(s string, top float64) core.Component {
		return text.New(s, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2, Top: top})
	}
	value := func(s string, top float64) core.Component {
		return text.New(s, props.Text{Size: 9, Align: align.Right, Right: 1, Top: top})
	}
	return row.New(26).Add(
		col.New(4),
		col.New(4).Add(
			label("Líneas contadas:", 1),
			label("Con diferencia:", 7),
			label("Avance:", 13),
			label("DIFERENCIA TOTAL:", 19),
		),
		col.New(4).Add(
			value(fmt.Sprintf("%d / %d", sum.LinesCounted, sum.TotalLines), 1),
			value(fmt.Sprintf("%d", sum.LinesWithDifference), 7),
			value(g.printer.Sprintf("%.2f%%", sum.CompletionPct.InexactFloat64()), 13),
			text.New("$"+g.money(sum.TotalMonetaryDifference), props.Text{
				Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorPrimary, Right: 1, Top: 19,
			}),
		),
	)
}

func notesRows(s *entity.VerificationSession) []core.Row {
	var rows []core.Row
	if s.Notes != "" {
		rows = append(rows, row.New(10).Add(col.New(12).Add(
			text.New("Observaciones: "+s.Notes, props.Text{Size: 8, Top: 2, Color: colorGray}),
		)))
	}
	if s.State == entity.SessionStateRejected && s.RejectionReason != "" {
		rows = append(rows, row.New(10).Add(col.New(12).Add(
			text.New("Motivo de rechazo: "+s.RejectionReason, props.Text{
				Style: fontstyle.Bold, Size: 8, Top: 2, Color: colorRed,
			}),
		)))
	}
	return rows
}

// qty cantidades con hasta tres decimales y separadores locales.
func (g *MarotoReportGenerator) qty(d decimal.Decimal) string {
	return g.printer.Sprintf("%.3f", d.Round(3).InexactFloat64())
}

func (g *MarotoReportGenerator) money(d decimal.Decimal) string {
	return g.printer.Sprintf("%.2f", d.Round(2).InexactFloat64())
}

func (g *MarotoReportGenerator) date(t time.Time) string {
	return t.In(g.loc).Format("02/01/2006 15:04")
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
