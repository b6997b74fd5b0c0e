package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/agro-inventario/internal/application/valuation"
	"github.com/jhoicas/agro-inventario/pkg/logger"
)

// ValuationHandler resumen mensual de valoración.
type ValuationHandler struct {
	uc  *valuation.UseCase
	log *logger.Logger
}

// NewValuationHandler construye el handler.
func NewValuationHandler(uc *valuation.UseCase, log *logger.Logger) *ValuationHandler {
	return &ValuationHandler{uc: uc, log: log}
}

// Monthly godoc
// @Summary      Valoración mensual
// @Description  Entradas, salidas y valor aproximado de cierre por mes.
// @Description  Sin parámetros cubre los últimos 12 meses hasta hoy.
// @Tags         valuation
// @Security     Bearer
// @Produce      json
// @Param        from  query  string  false  "Inicio (RFC3339 o YYYY-MM-DD)"
// @Param        to    query  string  false  "Fin inclusivo (RFC3339 o YYYY-MM-DD)"
// @Success      200  {object}  dto.ValuationSummaryDTO
// @Failure      403  {object}  dto.ErrorResponse
// @Failure      422  {object}  dto.ErrorResponse
// @Router       /api/valuation/monthly [get]
func (h *ValuationHandler) Monthly(c *fiber.Ctx) error {
	from, err := timeParam(c, "from", false)
	if err != nil {
		return respondError(c, h.log, err)
	}
	to, err := timeParam(c, "to", true)
	if err != nil {
		return respondError(c, h.log, err)
	}
	now := time.Now().UTC()
	if to == nil {
		to = &now
	}
	if from == nil {
		f := time.Date(to.Year(), to.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -11, 0)
		from = &f
	}
	summary, err := h.uc.MonthlySummary(c.UserContext(), GetActor(c), *from, *to)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(summary)
}
