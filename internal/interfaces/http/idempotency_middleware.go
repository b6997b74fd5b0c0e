package http

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/agro-inventario/internal/application/dto"
	"github.com/jhoicas/agro-inventario/internal/application/ports"
	"github.com/jhoicas/agro-inventario/pkg/logger"
)

// Cabeceras de idempotencia.
const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"
)

// Idempotency repite la respuesta guardada cuando un POST llega otra vez con la misma
// Idempotency-Key. La clave se aísla por usuario y ruta. Mientras la primera petición está
// en curso las repeticiones reciben 409. Los 5xx no se guardan para permitir el reintento.
// Si el almacén falla la petición sigue sin protección y se registra un warning.
func Idempotency(store ports.ReplayStore, ttl time.Duration, log *logger.Logger) fiber.Handler {
	l := log.Component("idempotency")
	return func(c *fiber.Ctx) error {
		key := strings.TrimSpace(c.Get(HeaderIdempotencyKey))
		if key == "" || c.Method() != fiber.MethodPost {
			return c.Next()
		}
		scoped := GetUserID(c) + ":" + c.Path() + ":" + key
		ctx := c.UserContext()

		stored, err := store.Load(ctx, scoped)
		if err != nil {
			l.Warn().Err(err).Str("key", key).Msg("no se pudo leer la respuesta guardada")
			return c.Next()
		}
		if stored != nil {
			return replay(c, stored)
		}

		reserved, err := store.Reserve(ctx, scoped, ttl)
		if err != nil {
			l.Warn().Err(err).Str("key", key).Msg("no se pudo reservar la clave")
			return c.Next()
		}
		if !reserved {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
				Code:    "IDEMPOTENCY_IN_PROGRESS",
				Message: "hay una petición con la misma Idempotency-Key en curso",
			})
		}
		defer func() {
			if err := store.Release(ctx, scoped); err != nil {
				l.Warn().Err(err).Str("key", key).Msg("no se pudo liberar la clave")
			}
		}()

		// la petición anterior pudo terminar entre Load y Reserve
		stored, err = store.Load(ctx, scoped)
		if err != nil {
			l.Warn().Err(err).Str("key", key).Msg("no se pudo leer la respuesta guardada")
		}
		if stored != nil {
			return replay(c, stored)
		}

		if err := c.Next(); err != nil {
			return err
		}
		status := c.Response().StatusCode()
		if status >= fiber.StatusInternalServerError {
			return nil
		}
		resp := &ports.StoredResponse{
			Status:      status,
			ContentType: string(c.Response().Header.ContentType()),
			Body:        append([]byte(nil), c.Response().Body()...),
		}
		if err := store.Save(ctx, scoped, resp, ttl); err != nil {
			l.Warn().Err(err).Str("key", key).Msg("no se pudo guardar la respuesta")
		}
		return nil
	}
}

func replay(c *fiber.Ctx, stored *ports.StoredResponse) error {
	c.Set(HeaderReplayed, "true")
	if stored.ContentType != "" {
		c.Set(fiber.HeaderContentType, stored.ContentType)
	}
	return c.Status(stored.Status).Send(stored.Body)
}
