package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/agro-inventario/internal/application/dto"
	"github.com/jhoicas/agro-inventario/internal/application/ledger"
	"github.com/jhoicas/agro-inventario/pkg/logger"
)

// ProductHandler maneja las peticiones HTTP de productos y su saldo (protegido).
type ProductHandler struct {
	ledger *ledger.Service
	log    *logger.Logger
}

// NewProductHandler construye el handler.
func NewProductHandler(svc *ledger.Service, log *logger.Logger) *ProductHandler {
	return &ProductHandler{ledger: svc, log: log}
}

// Create godoc
// @Summary      Crear producto
// @Description  La cantidad inicial, si es mayor que cero, entra como movimiento ENTRY.
// @Tags         products
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  ledger.CreateProductInput  true  "Datos del producto"
// @Success      201   {object}  dto.ProductResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      403   {object}  dto.ErrorResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Router       /api/products [post]
func (h *ProductHandler) Create(c *fiber.Ctx) error {
	var in ledger.CreateProductInput
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	p, err := h.ledger.CreateProduct(c.UserContext(), GetActor(c), in)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ProductFromEntity(p))
}

// GetByID godoc
// @Summary      Obtener producto por ID
// @Tags         products
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del producto"
// @Success      200  {object}  dto.ProductResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/products/{id} [get]
func (h *ProductHandler) GetByID(c *fiber.Ctx) error {
	p, err := h.ledger.GetProduct(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.ProductFromEntity(p))
}

// List godoc
// @Summary      Listar productos
// @Tags         products
// @Security     Bearer
// @Produce      json
// @Param        limit   query  int  false  "Límite (default 20, máx 100)"
// @Param        offset  query  int  false  "Desplazamiento"
// @Success      200  {object}  dto.ProductListResponse
// @Router       /api/products [get]
func (h *ProductHandler) List(c *fiber.Ctx) error {
	page, err := pageParams(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	list, err := h.ledger.ListProducts(c.UserContext(), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, h.log, err)
	}
	items := make([]dto.ProductResponse, 0, len(list))
	for _, p := range list {
		items = append(items, dto.ProductFromEntity(p))
	}
	return c.JSON(dto.ProductListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	})
}

// Balance godoc
// @Summary      Saldo actual del producto
// @Tags         products
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del producto"
// @Success      200  {object}  dto.BalanceResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/products/{id}/balance [get]
func (h *ProductHandler) Balance(c *fiber.Ctx) error {
	p, err := h.ledger.GetProduct(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.BalanceResponse{
		ProductID:     p.ID,
		Balance:       p.CurrentQuantity,
		BelowMinStock: p.BelowMinStock(),
	})
}

// VerifyBalance godoc
// @Summary      Verificar saldo contra el libro
// @Description  Recalcula la suma de movimientos vivos y la compara con la cantidad guardada.
// @Tags         products
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del producto"
// @Success      200  {object}  dto.BalanceCheckResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/products/{id}/balance/verify [get]
func (h *ProductHandler) VerifyBalance(c *fiber.Ctx) error {
	check, err := h.ledger.VerifyBalance(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.BalanceCheckResponse{
		ProductID:  check.ProductID,
		Stored:     check.Stored,
		Computed:   check.Computed,
		Consistent: check.Consistent,
	})
}
