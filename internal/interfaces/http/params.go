package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/agro-inventario/internal/application/dto"
	"github.com/jhoicas/agro-inventario/internal/domain"
)

// pageParams lee limit/offset del query string (por defecto 20, máximo 100).
// Un valor no entero es VALIDATION, no el valor por defecto.
func pageParams(c *fiber.Ctx) (dto.PageRequest, error) {
	var p dto.PageRequest
	if err := c.QueryParser(&p); err != nil {
		return p, domain.NewValidationError("limit/offset", "deben ser enteros")
	}
	p.DefaultPage()
	return p, nil
}

// timeParam acepta RFC3339 o YYYY-MM-DD. Vacío devuelve nil.
// endOfDay lleva una fecha sin hora al último instante del día (límite superior inclusivo).
func timeParam(c *fiber.Ctx, name string, endOfDay bool) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, domain.NewValidationError(name, "fecha inválida (RFC3339 o YYYY-MM-DD)")
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return &t, nil
}
