package http

import (
	"fmt"
	"io"
	"mime"
	"path/filepath"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/agro-inventario/internal/application/dto"
	"github.com/jhoicas/agro-inventario/internal/application/purchase"
	"github.com/jhoicas/agro-inventario/pkg/logger"
)

// maxInvoiceSize tope del documento de factura adjunto.
const maxInvoiceSize = 10 << 20

// PurchaseHandler compras de insumos y su factura (protegido).
type PurchaseHandler struct {
	uc  *purchase.UseCase
	log *logger.Logger
}

// NewPurchaseHandler construye el handler.
func NewPurchaseHandler(uc *purchase.UseCase, log *logger.Logger) *PurchaseHandler {
	return &PurchaseHandler{uc: uc, log: log}
}

// Record godoc
// @Summary      Registrar compra
// @Description  Crea la compra y su movimiento ENTRY en una sola transacción.
// @Description  Con la misma Idempotency-Key (cabecera o campo) devuelve la compra ya registrada.
// @Tags         purchases
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header  string                         false  "Clave de idempotencia"
// @Param        body             body    purchase.RecordPurchaseInput  true   "Datos de la compra"
// @Success      201  {object}  dto.PurchaseResponse
// @Failure      403  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      422  {object}  dto.ErrorResponse
// @Failure      503  {object}  dto.ErrorResponse
// @Router       /api/purchases [post]
func (h *PurchaseHandler) Record(c *fiber.Ctx) error {
	var in purchase.RecordPurchaseInput
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if in.IdempotencyKey == "" {
		in.IdempotencyKey = c.Get(HeaderIdempotencyKey)
	}
	p, err := h.uc.RecordPurchase(c.UserContext(), GetActor(c), in)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.PurchaseFromEntity(p))
}

// GetByID godoc
// @Summary      Obtener compra
// @Tags         purchases
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la compra"
// @Success      200  {object}  dto.PurchaseResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/purchases/{id} [get]
func (h *PurchaseHandler) GetByID(c *fiber.Ctx) error {
	p, err := h.uc.GetPurchase(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.PurchaseFromEntity(p))
}

// List godoc
// @Summary      Listar compras
// @Tags         purchases
// @Security     Bearer
// @Produce      json
// @Param        limit   query  int  false  "Límite (default 20, máx 100)"
// @Param        offset  query  int  false  "Desplazamiento"
// @Success      200  {object}  dto.PurchaseListResponse
// @Router       /api/purchases [get]
func (h *PurchaseHandler) List(c *fiber.Ctx) error {
	page, err := pageParams(c)
	if err != nil {
		return respondError(c, h.log, err)
	}
	list, err := h.uc.ListPurchases(c.UserContext(), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, h.log, err)
	}
	items := make([]dto.PurchaseResponse, 0, len(list))
	for _, p := range list {
		items = append(items, dto.PurchaseFromEntity(p))
	}
	return c.JSON(dto.PurchaseListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	})
}

// Delete godoc
// @Summary      Eliminar (revertir) compra
// @Description  Aplica la salida compensatoria, elimina gastos pendientes y la factura adjunta.
// @Description  Falla con 409 si el stock ya no cubre la cantidad comprada.
// @Tags         purchases
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la compra"
// @Success      200  {object}  dto.PurchaseDeletionResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Failure      500  {object}  dto.ErrorResponse  "PARTIAL_APPLICATION"
// @Router       /api/purchases/{id} [delete]
func (h *PurchaseHandler) Delete(c *fiber.Ctx) error {
	report, err := h.uc.DeletePurchase(c.UserContext(), GetActor(c), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	out := dto.PurchaseDeletionResponse{
		PurchaseID:             report.PurchaseID,
		ProductID:              report.ProductID,
		QuantityReversed:       report.QuantityReversed,
		NewBalance:             report.NewBalance,
		CompensatingMovementID: report.CompensatingMovementID,
		OriginalMovementID:     report.OriginalMovementID,
		ReversalPolicy:         report.ReversalPolicy,
		ExpensesRemoved:        report.ExpensesRemoved,
	}
	for _, w := range report.Warnings {
		out.Warnings = append(out.Warnings, w.Error())
	}
	return c.JSON(out)
}

// UploadInvoice godoc
// @Summary      Adjuntar factura
// @Description  Sube el documento (multipart, campo "file") y reemplaza el anterior si había.
// @Tags         purchases
// @Security     Bearer
// @Accept       multipart/form-data
// @Produce      json
// @Param        id    path      string  true  "ID de la compra"
// @Param        file  formData  file    true  "Documento de la factura"
// @Success      200  {object}  dto.PurchaseResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      422  {object}  dto.ErrorResponse
// @Failure      503  {object}  dto.ErrorResponse
// @Router       /api/purchases/{id}/invoice [put]
func (h *PurchaseHandler) UploadInvoice(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "MISSING_FILE", Message: "campo file requerido"})
	}
	if fh.Size > maxInvoiceSize {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(dto.ErrorResponse{Code: "FILE_TOO_LARGE", Message: "la factura excede 10 MB"})
	}
	f, err := fh.Open()
	if err != nil {
		return badBody(c)
	}
	defer f.Close()

	contentType := fh.Header.Get(fiber.HeaderContentType)
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(fh.Filename))
	}
	p, err := h.uc.AttachInvoice(c.UserContext(), GetActor(c), c.Params("id"), fh.Filename, contentType, f)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.PurchaseFromEntity(p))
}

// DownloadInvoice godoc
// @Summary      Descargar factura
// @Tags         purchases
// @Security     Bearer
// @Produce      octet-stream
// @Param        id   path  string  true  "ID de la compra"
// @Success      200  {file}    binary
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/purchases/{id}/invoice [get]
func (h *PurchaseHandler) DownloadInvoice(c *fiber.Ctx) error {
	rc, err := h.uc.OpenInvoice(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, h.log, err)
	}
	defer rc.Close()
	body, err := io.ReadAll(rc)
	if err != nil {
		return respondError(c, h.log, fmt.Errorf("leer factura: %w", err))
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="factura-`+c.Params("id")+`"`)
	return c.Send(body)
}
