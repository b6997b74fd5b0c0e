package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/agro-inventario/internal/application/dto"
	"github.com/jhoicas/agro-inventario/internal/application/verification"
	"github.com/jhoicas/agro-inventario/internal/domain/entity"
	"github.com/jhoicas/agro-inventario/pkg/logger"
)

// VerificationHandler flujo de conteo físico (protegido).
type VerificationHandler struct {
	uc  *verification.UseCase
	log *logger.Logger
}

// NewVerificationHandler construye el handler.
func NewVerificationHandler(uc *verification.UseCase, log *logger.Logger) *VerificationHandler {
	return &VerificationHandler{uc: uc, log: log}
}

func (h *VerificationHandler) session(c *fiber.Ctx, status int, s *entity.VerificationSession, err error) error {
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(status).JSON(dto.VerificationFromEntity(s))
}

// Start godoc
// @Summary      Iniciar verificación
// @Description  Toma la instantánea de cantidades esperadas de todos los productos activos.
// @Tags         verifications
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.StartVerificationRequest  false  "Notas"
// @Success      201  {object}  dto.VerificationResponse
// @Failure      403  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse  "ya hay una sesión abierta"
// @Router       /api/verifications [post]
func (h *VerificationHandler) Start(c *fiber.Ctx) error {
	var in dto.StartVerificationRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return badBody(c)
		}
	}
	s, err := h.uc.StartSession(c.UserContext(), GetActor(c), in.Notes)
	return h.session(c, fiber.StatusCreated, s, err)
}

// RecordCount godoc
// @Summary      Registrar conteo
// @Tags         verifications
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                  true  "ID de la sesión"
// @Param        body  body  dto.RecordCountRequest  true  "product_id, counted_quantity"
// @Success      200  {object}  dto.VerificationResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Failure      422  {object}  dto.ErrorResponse
// @Router       /api/verifications/{id}/counts [post]
func (h *VerificationHandler) RecordCount(c *fiber.Ctx) error {
	var in dto.RecordCountRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	s, err := h.uc.RecordCount(c.UserContext(), GetActor(c), c.Params("id"), in.ProductID, in.CountedQuantity)
	return h.session(c, fiber.StatusOK, s, err)
}

// Submit godoc
// @Summary      Enviar a aprobación
// @Tags         verifications
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la sesión"
// @Success      200  {object}  dto.VerificationResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/verifications/{id}/submit [post]
func (h *VerificationHandler) Submit(c *fiber.Ctx) error {
	s, err := h.uc.SubmitForApproval(c.UserContext(), GetActor(c), c.Params("id"))
	return h.session(c, fiber.StatusOK, s, err)
}

// Approve godoc
// @Summary      Aprobar verificación
// @Description  Aplica un movimiento de ajuste por cada línea con diferencia, todo en una transacción.
// @Tags         verifications
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la sesión"
// @Success      200  {object}  dto.VerificationResponse
// @Failure      403  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/verifications/{id}/approve [post]
func (h *VerificationHandler) Approve(c *fiber.Ctx) error {
	s, err := h.uc.Approve(c.UserContext(), GetActor(c), c.Params("id"))
	return h.session(c, fiber.StatusOK, s, err)
}

// Reject godoc
// @Summary      Rechazar verificación
// @Tags         verifications
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                         true  "ID de la sesión"
// @Param        body  body  dto.RejectVerificationRequest  true  "Motivo"
// @Success      200  {object}  dto.VerificationResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Failure      422  {object}  dto.ErrorResponse
// @Router       /api/verifications/{id}/reject [post]
func (h *VerificationHandler) Reject(c *fiber.Ctx) error {
	var in dto.RejectVerificationRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	s, err := h.uc.Reject(c.UserContext(), GetActor(c), c.Params("id"), in.Reason)
	return h.session(c, fiber.StatusOK, s, err)
}

// Restart godoc
// @Summary      Reiniciar verificación rechazada
// @Description  Solo si VERIFICATION_ALLOW_RESTART está activo; crea una sesión nueva que reemplaza a la rechazada.
// @Tags         verifications
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la sesión rechazada"
// @Success      201  {object}  dto.VerificationResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/verifications/{id}/restart [post]
func (h *VerificationHandler) Restart(c *fiber.Ctx) error {
	s, err := h.uc.Restart(c.UserContext(), GetActor(c), c.Params("id"))
	return h.session(c, fiber.StatusCreated, s, err)
}

// GetByID godoc
// @Summary      Obtener sesión con sus líneas
// @Tags         verifications
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la sesión"
// @Success      200  {object}  dto.VerificationResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/verifications/{id} [get]
func (h *VerificationHandler) GetByID(c *fiber.Ctx) error {
	s, err := h.uc.GetSession(c.UserContext(), c.Params("id"))
	return h.session(c, fiber.StatusOK, s, err)
}

// List godoc
// @Summary      Listar sesiones
// @Tags         verifications
// @Security     Bearer
// @Produce      json
// @Param        limit   query  int  false  "Límite (default 20, máx 100)"
// @Param        offset  query  int  false  "Desplazamiento"
// @Success      200  {object}  dto.VerificationListResponse
// @Router       /api/verifications [get]
func (h *VerificationHandler) List(c *fiber.Ctx) error {
	page, err := pageParams(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	list, err := h.uc.ListSessions(c.UserContext(), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, h.log, err)
	}
	items := make([]dto.VerificationResponse, 0, len(list))
	for _, s := range list {
		items = append(items, dto.VerificationFromEntity(s))
	}
	return c.JSON(dto.VerificationListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	})
}

// Report godoc
// @Summary      Acta PDF de la sesión
// @Tags         verifications
// @Security     Bearer
// @Produce      application/pdf
// @Param        id   path  string  true  "ID de la sesión"
// @Success      200  {file}    binary
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/verifications/{id}/report.pdf [get]
func (h *VerificationHandler) Report(c *fiber.Ctx) error {
	pdf, err := h.uc.RenderReport(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `inline; filename="verificacion-`+c.Params("id")+`.pdf"`)
	return c.Send(pdf)
}
