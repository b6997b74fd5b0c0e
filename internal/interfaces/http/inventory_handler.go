package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/agro-inventario/internal/application/dto"
	"github.com/jhoicas/agro-inventario/internal/application/ledger"
	"github.com/jhoicas/agro-inventario/internal/domain/entity"
	"github.com/jhoicas/agro-inventario/pkg/logger"
)

// InventoryHandler movimientos manuales e historial del libro (protegido).
type InventoryHandler struct {
	ledger *ledger.Service
	log    *logger.Logger
}

// NewInventoryHandler construye el handler.
func NewInventoryHandler(svc *ledger.Service, log *logger.Logger) *InventoryHandler {
	return &InventoryHandler{ledger: svc, log: log}
}

// ApplyMovement godoc
// @Summary      Registrar movimiento manual
// @Description  ENTRY o EXIT fuera del flujo de compras (consumo en campo, ajuste puntual).
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ApplyMovementRequest  true  "product_id, type, quantity"
// @Success      201   {object}  dto.MovementResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Router       /api/movements [post]
func (h *InventoryHandler) ApplyMovement(c *fiber.Ctx) error {
	var in dto.ApplyMovementRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	actor := GetActor(c)
	var date time.Time
	if in.Date != nil {
		date = *in.Date
	}
	m, err := h.ledger.ApplyMovement(c.UserContext(), actor, ledger.MovementInput{
		ProductID:   in.ProductID,
		Type:        in.Type,
		Origin:      entity.MovementOriginManual,
		Quantity:    in.Quantity,
		Date:        date,
		ActorID:     actor.ID,
		Note:        in.Note,
		Provisional: in.Provisional,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.MovementFromEntity(m))
}

// ListMovements godoc
// @Summary      Historial de movimientos de un producto
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        id      path   string  true   "ID del producto"
// @Param        from    query  string  false  "Desde (RFC3339 o YYYY-MM-DD)"
// @Param        to      query  string  false  "Hasta, inclusivo (RFC3339 o YYYY-MM-DD)"
// @Param        limit   query  int     false  "Límite (default 20, máx 100)"
// @Param        offset  query  int     false  "Desplazamiento"
// @Success      200  {object}  dto.MovementListResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      422  {object}  dto.ErrorResponse
// @Router       /api/products/{id}/movements [get]
func (h *InventoryHandler) ListMovements(c *fiber.Ctx) error {
	from, err := timeParam(c, "from", false)
	if err != nil {
		return respondError(c, h.log, err)
	}
	to, err := timeParam(c, "to", true)
	if err != nil {
		return respondError(c, h.log, err)
	}
	page, err := pageParams(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	list, err := h.ledger.ListMovements(c.UserContext(), c.Params("id"), from, to, page.Limit, page.Offset)
	if err != nil {
		return respondError(c, h.log, err)
	}
	items := make([]dto.MovementResponse, 0, len(list))
	for _, m := range list {
		items = append(items, dto.MovementFromEntity(m))
	}
	return c.JSON(dto.MovementListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	})
}
