package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/agro-inventario/internal/application/authz"
	"github.com/jhoicas/agro-inventario/internal/application/ledger"
	"github.com/jhoicas/agro-inventario/internal/application/ports"
	"github.com/jhoicas/agro-inventario/internal/application/purchase"
	"github.com/jhoicas/agro-inventario/internal/application/valuation"
	"github.com/jhoicas/agro-inventario/internal/application/verification"
	"github.com/jhoicas/agro-inventario/internal/domain/entity"
	"github.com/jhoicas/agro-inventario/pkg/logger"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Ledger         *ledger.Service
	Purchases      *purchase.UseCase
	Verifications  *verification.UseCase
	Valuation      *valuation.UseCase
	Policy         *authz.Policy
	ReplayStore    ports.ReplayStore
	IdempotencyTTL time.Duration
	JWTSecret      string
	Logger         *logger.Logger
}

// Router registra las rutas de la API. Todas requieren Bearer Token.
// Las lecturas se autorizan aquí con view_reports; las escrituras en cada caso de uso.
func Router(app *fiber.App, deps RouterDeps) {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	api := app.Group("/api", AuthMiddleware(deps.JWTSecret))
	canView := RequireCapability(deps.Policy, entity.CapViewReports)
	idem := Idempotency(deps.ReplayStore, deps.IdempotencyTTL, log)

	// Products
	productHandler := NewProductHandler(deps.Ledger, log)
	inventoryHandler := NewInventoryHandler(deps.Ledger, log)
	products := api.Group("/products")
	products.Post("/", productHandler.Create)
	products.Get("/", canView, productHandler.List)
	products.Get("/:id", canView, productHandler.GetByID)
	products.Get("/:id/balance", canView, productHandler.Balance)
	products.Get("/:id/balance/verify", canView, productHandler.VerifyBalance)
	products.Get("/:id/movements", canView, inventoryHandler.ListMovements)

	// Manual movements
	api.Post("/movements", idem, inventoryHandler.ApplyMovement)

	// Purchases
	purchaseHandler := NewPurchaseHandler(deps.Purchases, log)
	purchases := api.Group("/purchases")
	purchases.Post("/", idem, purchaseHandler.Record)
	purchases.Get("/", canView, purchaseHandler.List)
	purchases.Get("/:id", canView, purchaseHandler.GetByID)
	purchases.Delete("/:id", purchaseHandler.Delete)
	purchases.Put("/:id/invoice", purchaseHandler.UploadInvoice)
	purchases.Get("/:id/invoice", canView, purchaseHandler.DownloadInvoice)

	// Verifications
	verificationHandler := NewVerificationHandler(deps.Verifications, log)
	verifications := api.Group("/verifications")
	verifications.Post("/", verificationHandler.Start)
	verifications.Get("/", canView, verificationHandler.List)
	verifications.Get("/:id", canView, verificationHandler.GetByID)
	verifications.Get("/:id/report.pdf", canView, verificationHandler.Report)
	verifications.Post("/:id/counts", verificationHandler.RecordCount)
	verifications.Post("/:id/submit", verificationHandler.Submit)
	verifications.Post("/:id/approve", verificationHandler.Approve)
	verifications.Post("/:id/reject", verificationHandler.Reject)
	verifications.Post("/:id/restart", verificationHandler.Restart)

	// Valuation
	valuationHandler := NewValuationHandler(deps.Valuation, log)
	api.Get("/valuation/monthly", valuationHandler.Monthly)
}
