package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/agro-inventario/internal/application/dto"
	"github.com/jhoicas/agro-inventario/internal/application/purchase"
	"github.com/jhoicas/agro-inventario/internal/domain"
	"github.com/jhoicas/agro-inventario/pkg/logger"
)

// errorStatus traduce un error de dominio a status HTTP y cuerpo.
// PartialApplicationError va primero: envuelve ErrCommitUnknown y no debe confundirse con un reintento.
func errorStatus(err error) (int, dto.ErrorResponse) {
	var (
		partial    *domain.PartialApplicationError
		validation *domain.ValidationError
		negative   *domain.NegativeStockError
		underflow  *domain.WouldUnderflowError
		transition *domain.InvalidTransitionError
	)
	switch {
	case errors.As(err, &partial):
		return fiber.StatusInternalServerError, dto.ErrorResponse{
			Code:    "PARTIAL_APPLICATION",
			Message: partial.Error(),
			Context: partial.Context,
		}
	case errors.As(err, &validation):
		return fiber.StatusUnprocessableEntity, dto.ErrorResponse{
			Code: "VALIDATION", Message: "datos inválidos", Fields: validation.Fields,
		}
	case errors.Is(err, domain.ErrInvalidInput):
		return fiber.StatusUnprocessableEntity, dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()}
	case errors.As(err, &negative):
		return fiber.StatusConflict, dto.ErrorResponse{Code: "NEGATIVE_STOCK", Message: negative.Error()}
	case errors.As(err, &underflow):
		return fiber.StatusConflict, dto.ErrorResponse{Code: "WOULD_UNDERFLOW", Message: underflow.Error()}
	case errors.Is(err, domain.ErrInsufficientStock):
		return fiber.StatusConflict, dto.ErrorResponse{Code: "INSUFFICIENT_STOCK", Message: err.Error()}
	case errors.As(err, &transition):
		return fiber.StatusConflict, dto.ErrorResponse{Code: "INVALID_TRANSITION", Message: transition.Error()}
	case errors.Is(err, domain.ErrDuplicate):
		return fiber.StatusConflict, dto.ErrorResponse{Code: "DUPLICATE", Message: err.Error()}
	case errors.Is(err, domain.ErrConflict):
		return fiber.StatusConflict, dto.ErrorResponse{Code: "CONFLICT", Message: err.Error()}
	case errors.Is(err, domain.ErrUnauthorized):
		return fiber.StatusUnauthorized, dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"}
	case errors.Is(err, domain.ErrForbidden):
		return fiber.StatusForbidden, dto.ErrorResponse{Code: "FORBIDDEN", Message: "acceso denegado al recurso"}
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, dto.ErrorResponse{Code: "NOT_FOUND", Message: err.Error()}
	case errors.Is(err, domain.ErrRetryable):
		return fiber.StatusServiceUnavailable, dto.ErrorResponse{Code: "RETRYABLE", Message: "operación no completada, intente de nuevo"}
	case errors.Is(err, purchase.ErrNoDocumentStore):
		return fiber.StatusServiceUnavailable, dto.ErrorResponse{Code: "DOCUMENTS_UNAVAILABLE", Message: err.Error()}
	default:
		return fiber.StatusInternalServerError, dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"}
	}
}

// respondError escribe el error; los 5xx se registran con la causa original.
func respondError(c *fiber.Ctx, log *logger.Logger, err error) error {
	status, body := errorStatus(err)
	if status >= fiber.StatusInternalServerError && log != nil {
		log.Error().Err(err).Str("path", c.Path()).Str("code", body.Code).Msg("error en petición")
	}
	return c.Status(status).JSON(body)
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
}
