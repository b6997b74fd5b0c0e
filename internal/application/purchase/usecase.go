// Package purchase acopla cada compra a su entrada en el libro y ofrece la reversión compensatoria.
package purchase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/agro-inventario/internal/application/authz"
	"github.com/jhoicas/agro-inventario/internal/application/ledger"
	"github.com/jhoicas/agro-inventario/internal/application/ports"
	"github.com/jhoicas/agro-inventario/internal/application/validation"
	"github.com/jhoicas/agro-inventario/internal/domain"
	"github.com/jhoicas/agro-inventario/internal/domain/entity"
	"github.com/jhoicas/agro-inventario/internal/domain/inventory"
	"github.com/jhoicas/agro-inventario/internal/domain/repository"
	"github.com/jhoicas/agro-inventario/pkg/logger"
)

// Políticas para la entrada original al revertir una compra.
const (
	ReversalPolicyMark   = "mark"   // se conserva marcada REVERSED y enlazada al compensatorio
	ReversalPolicyDelete = "delete" // se elimina físicamente
)

// ErrNoDocumentStore no hay almacén de documentos configurado.
var ErrNoDocumentStore = errors.New("almacén de documentos no configurado")

// Config opciones del caso de uso.
type Config struct {
	ReversalPolicy string
	TxTimeout      time.Duration
}

// RecordPurchaseInput datos de una compra.
type RecordPurchaseInput struct {
	PurchaseDate    time.Time       `json:"purchase_date"`
	Supplier        string          `json:"supplier" validate:"required,max=200"`
	InvoiceNumber   string          `json:"invoice_number" validate:"max=100"`
	ProductID       string          `json:"product_id" validate:"required"`
	Quantity        decimal.Decimal `json:"quantity" validate:"gt=0"`
	Unit            string          `json:"unit" validate:"required,max=30"`
	BatchNumber     string          `json:"batch_number" validate:"max=100"`
	ExpiryDate      *time.Time      `json:"expiry_date"`
	UnitCost        decimal.Decimal `json:"unit_cost" validate:"gte=0"`
	IdempotencyKey  string          `json:"idempotency_key" validate:"max=100"`
	RegisterExpense bool            `json:"register_expense"`
	Provisional     bool            `json:"provisional"`
}

// DeletionReport resultado de revertir una compra. Warnings lista limpiezas secundarias que no se completaron.
type DeletionReport struct {
	PurchaseID             string
	ProductID              string
	QuantityReversed       decimal.Decimal
	NewBalance             decimal.Decimal
	CompensatingMovementID string
	OriginalMovementID     string
	ReversalPolicy         string
	ExpensesRemoved        int64
	Warnings               []*domain.DependencyCleanupWarning
}

// UseCase ciclo de vida de las compras.
type UseCase struct {
	txRunner ports.TxRunner
	ledger   *ledger.Service
	docs     repository.DocumentStore
	policy   *authz.Policy
	log      *logger.Logger
	cfg      Config
	now      func() time.Time
}

// NewUseCase construye el caso de uso. docs puede ser nil si no hay almacén de facturas.
func NewUseCase(
	txRunner ports.TxRunner,
	ledgerSvc *ledger.Service,
	docs repository.DocumentStore,
	policy *authz.Policy,
	log *logger.Logger,
	cfg Config,
) *UseCase {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.ReversalPolicy != ReversalPolicyDelete {
		cfg.ReversalPolicy = ReversalPolicyMark
	}
	return &UseCase{
		txRunner: txRunner,
		ledger:   ledgerSvc,
		docs:     docs,
		policy:   policy,
		log:      log.Component("purchase"),
		cfg:      cfg,
		now:      time.Now,
	}
}

// SetClock reemplaza el reloj (pruebas).
func (uc *UseCase) SetClock(now func() time.Time) { uc.now = now }

// RecordPurchase registra la compra y su entrada en una sola transacción.
// Con IdempotencyKey repetida devuelve la compra ya registrada sin volver a aplicar la entrada.
func (uc *UseCase) RecordPurchase(ctx context.Context, actor entity.Actor, in RecordPurchaseInput) (*entity.Purchase, error) {
	if err := uc.policy.Require(actor, entity.CapRecordPurchase); err != nil {
		return nil, err
	}
	in.Supplier = strings.TrimSpace(in.Supplier)
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)
	err := validation.CheckScale(validation.Struct(in), map[string]decimal.Decimal{
		"quantity": in.Quantity, "unit_cost": in.UnitCost,
	})
	if err != nil {
		return nil, err
	}
	if in.ExpiryDate != nil && !in.PurchaseDate.IsZero() && in.ExpiryDate.Before(in.PurchaseDate) {
		return nil, domain.NewValidationError("expiry_date", "anterior a la fecha de compra")
	}

	ctx, cancel := ports.Detach(ctx, uc.cfg.TxTimeout)
	defer cancel()

	now := uc.now().UTC()
	date := in.PurchaseDate
	if date.IsZero() {
		date = now
	}
	p := &entity.Purchase{
		ID:             uuid.New().String(),
		PurchaseDate:   date,
		Supplier:       in.Supplier,
		InvoiceNumber:  in.InvoiceNumber,
		ProductID:      in.ProductID,
		Quantity:       in.Quantity,
		Unit:           in.Unit,
		BatchNumber:    in.BatchNumber,
		ExpiryDate:     in.ExpiryDate,
		UnitCost:       in.UnitCost,
		TotalCost:      inventory.Amount(in.Quantity, in.UnitCost),
		RecordedBy:     actor.ID,
		IdempotencyKey: in.IdempotencyKey,
		CreatedAt:      now,
	}

	var replay *entity.Purchase
	err = uc.txRunner.Run(ctx, func(ctx context.Context, tx repository.Tx) error {
		replay = nil
		if p.IdempotencyKey != "" {
			prev, err := tx.Purchases().GetByIdempotencyKey(ctx, p.RecordedBy, p.IdempotencyKey)
			if err != nil {
				return err
			}
			if prev != nil {
				replay = prev
				return nil
			}
		}

		product, err := tx.Products().GetByID(ctx, p.ProductID)
		if err != nil {
			return err
		}
		if product == nil {
			return domain.NewValidationError("product_id", "producto inexistente")
		}
		if !product.Active {
			return domain.NewValidationError("product_id", "producto inactivo")
		}

		if err := tx.Purchases().Create(ctx, p); err != nil {
			return fmt.Errorf("guardar compra: %w", err)
		}
		purchaseID := p.ID
		mov, err := uc.ledger.ApplyInTx(ctx, tx, ledger.MovementInput{
			ProductID:   p.ProductID,
			Type:        entity.MovementTypeEntry,
			Origin:      entity.MovementOriginPurchase,
			Quantity:    p.Quantity,
			Date:        p.PurchaseDate,
			ActorID:     actor.ID,
			PurchaseID:  &purchaseID,
			Note:        "compra a " + p.Supplier,
			Provisional: in.Provisional,
		})
		if err != nil {
			return err
		}
		p.EntryMovementID = mov.ID
		if err := tx.Purchases().SetEntryMovement(ctx, p.ID, mov.ID); err != nil {
			return fmt.Errorf("enlazar entrada: %w", err)
		}

		if in.RegisterExpense {
			desc := "Compra " + p.Supplier
			if p.InvoiceNumber != "" {
				desc += " factura " + p.InvoiceNumber
			}
			if err := tx.Expenses().Create(ctx, &entity.Expense{
				ID:          uuid.New().String(),
				PurchaseID:  p.ID,
				Description: desc,
				Amount:      p.TotalCost,
				Status:      entity.ExpenseStatusPending,
				CreatedAt:   now,
			}); err != nil {
				return fmt.Errorf("registrar gasto: %w", err)
			}
		}

		return enqueue(ctx, tx, p.ID, entity.EventPurchaseRecorded, purchaseEvent{
			PurchaseID: p.ID, ProductID: p.ProductID, Quantity: p.Quantity,
			TotalCost: p.TotalCost, MovementID: mov.ID,
		}, now)
	})
	if errors.Is(err, domain.ErrDuplicate) && p.IdempotencyKey != "" {
		// otra petición con la misma clave ganó la carrera
		replay, err = uc.byIdempotencyKey(ctx, p.RecordedBy, p.IdempotencyKey)
	}
	if err != nil {
		return nil, uc.commitOutcome(err, "record_purchase", p.ID, map[string]string{
			"product_id": p.ProductID, "entry_movement_id": p.EntryMovementID,
		})
	}
	if replay != nil {
		if !samePurchase(replay, p) {
			return nil, fmt.Errorf("clave de idempotencia reutilizada con otra compra: %w", domain.ErrConflict)
		}
		uc.log.Info().Str("purchase_id", replay.ID).Str("idempotency_key", p.IdempotencyKey).Msg("compra repetida, se devuelve la existente")
		return replay, nil
	}

	uc.log.Info().
		Str("purchase_id", p.ID).
		Str("product_id", p.ProductID).
		Str("quantity", p.Quantity.String()).
		Str("movement_id", p.EntryMovementID).
		Msg("compra registrada")
	return p, nil
}

// samePurchase indica si prev corresponde a la misma petición que p.
func samePurchase(prev, p *entity.Purchase) bool {
	return prev.RecordedBy == p.RecordedBy &&
		prev.ProductID == p.ProductID &&
		prev.Supplier == p.Supplier &&
		prev.Quantity.Equal(p.Quantity) &&
		prev.UnitCost.Equal(p.UnitCost)
}

func (uc *UseCase) byIdempotencyKey(ctx context.Context, recordedBy, key string) (*entity.Purchase, error) {
	var p *entity.Purchase
	err := uc.txRunner.Run(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		p, err = tx.Purchases().GetByIdempotencyKey(ctx, recordedBy, key)
		return err
	})
	if err == nil && p == nil {
		err = domain.ErrDuplicate
	}
	return p, err
}

// DeletePurchase revierte la compra con una salida compensatoria. Los pasos sobre el libro y la compra
// van en una transacción; el gasto pendiente se limpia en un savepoint y la factura tras el commit,
// ambos sin abortar la operación.
func (uc *UseCase) DeletePurchase(ctx context.Context, actor entity.Actor, purchaseID string) (*DeletionReport, error) {
	if err := uc.policy.Require(actor, entity.CapDeletePurchase); err != nil {
		return nil, err
	}

	ctx, cancel := ports.Detach(ctx, uc.cfg.TxTimeout)
	defer cancel()

	var (
		report     *DeletionReport
		invoiceRef string
	)
	err := uc.txRunner.Run(ctx, func(ctx context.Context, tx repository.Tx) error {
		report = &DeletionReport{PurchaseID: purchaseID, ReversalPolicy: uc.cfg.ReversalPolicy}
		now := uc.now().UTC()

		p, err := tx.Purchases().GetForUpdate(ctx, purchaseID)
		if err != nil {
			return err
		}
		if p == nil {
			return domain.ErrNotFound
		}
		report.ProductID = p.ProductID
		report.OriginalMovementID = p.EntryMovementID
		report.QuantityReversed = p.Quantity
		invoiceRef = p.InvoiceDocumentRef

		// 1. el stock de la compra no puede haberse consumido
		product, err := tx.Products().GetForUpdate(ctx, p.ProductID)
		if err != nil {
			return err
		}
		if product == nil {
			return domain.ErrNotFound
		}
		if product.CurrentQuantity.Sub(p.Quantity).IsNegative() {
			return &domain.WouldUnderflowError{
				PurchaseID: p.ID,
				ProductID:  p.ProductID,
				Current:    product.CurrentQuantity,
				Quantity:   p.Quantity,
			}
		}

		entry, err := tx.Movements().GetByID(ctx, p.EntryMovementID)
		if err != nil {
			return err
		}
		if entry == nil || !entry.IsLive() {
			return fmt.Errorf("la compra %s no tiene una entrada viva: %w", p.ID, domain.ErrConflict)
		}

		// 2. salida compensatoria; no queda viva porque anula una entrada que tampoco lo estará
		entryID := entry.ID
		purchaseRef := p.ID
		comp, err := uc.ledger.ApplyInTx(ctx, tx, ledger.MovementInput{
			ProductID:  p.ProductID,
			Type:       entity.MovementTypeExit,
			Origin:     entity.MovementOriginPurchaseReversal,
			Quantity:   p.Quantity,
			Date:       now,
			ActorID:    actor.ID,
			PurchaseID: &purchaseRef,
			ReversalOf: &entryID,
			Note:       "reversión de compra " + p.ID,
			Status:     entity.MovementStatusReversed,
		})
		if err != nil {
			return err
		}
		report.CompensatingMovementID = comp.ID
		report.NewBalance = comp.NewBalance

		// 3. gasto pendiente (best-effort)
		spErr := tx.Savepoint(ctx, func(sp repository.Tx) error {
			n, err := sp.Expenses().DeletePendingByPurchase(ctx, p.ID)
			if err != nil {
				return err
			}
			report.ExpensesRemoved = n
			remaining, err := sp.Expenses().ListByPurchase(ctx, p.ID)
			if err != nil {
				return err
			}
			for _, e := range remaining {
				report.Warnings = append(report.Warnings, &domain.DependencyCleanupWarning{
					Dependency: "expense",
					Ref:        e.ID,
					Err:        fmt.Errorf("gasto en estado %s, se conserva", e.Status),
				})
			}
			return nil
		})
		if spErr != nil {
			report.Warnings = append(report.Warnings, &domain.DependencyCleanupWarning{Dependency: "expense", Ref: p.ID, Err: spErr})
		}

		// 5. entrada original
		if uc.cfg.ReversalPolicy == ReversalPolicyDelete {
			err = tx.Movements().Delete(ctx, entry.ID)
		} else {
			err = tx.Movements().MarkReversed(ctx, entry.ID, comp.ID)
		}
		if err != nil {
			return fmt.Errorf("invalidar entrada original: %w", err)
		}

		// 6. la compra
		if err := tx.Purchases().Delete(ctx, p.ID); err != nil {
			return fmt.Errorf("eliminar compra: %w", err)
		}

		return enqueue(ctx, tx, p.ID, entity.EventPurchaseReversed, purchaseEvent{
			PurchaseID: p.ID, ProductID: p.ProductID, Quantity: p.Quantity,
			TotalCost: p.TotalCost, MovementID: comp.ID, ReversalPolicy: uc.cfg.ReversalPolicy,
		}, now)
	})
	if err != nil {
		ctxInfo := map[string]string{"purchase_id": purchaseID}
		if report != nil {
			ctxInfo["product_id"] = report.ProductID
			ctxInfo["entry_movement_id"] = report.OriginalMovementID
			ctxInfo["compensating_movement_id"] = report.CompensatingMovementID
		}
		return nil, uc.commitOutcome(err, "delete_purchase", purchaseID, ctxInfo)
	}

	// 4. factura adjunta (fuera de la transacción)
	if invoiceRef != "" {
		if w := uc.deleteDocument(ctx, invoiceRef); w != nil {
			report.Warnings = append(report.Warnings, w)
		}
	}
	for _, w := range report.Warnings {
		uc.log.Warn().Err(w).Str("purchase_id", purchaseID).Msg("limpieza secundaria incompleta")
	}

	uc.log.Info().
		Str("purchase_id", purchaseID).
		Str("product_id", report.ProductID).
		Str("compensating_movement_id", report.CompensatingMovementID).
		Str("policy", report.ReversalPolicy).
		Msg("compra revertida")
	return report, nil
}

func (uc *UseCase) deleteDocument(ctx context.Context, ref string) *domain.DependencyCleanupWarning {
	if uc.docs == nil {
		return &domain.DependencyCleanupWarning{Dependency: "invoice_document", Ref: ref, Err: ErrNoDocumentStore}
	}
	if err := uc.docs.Delete(ctx, ref); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return &domain.DependencyCleanupWarning{Dependency: "invoice_document", Ref: ref, Err: err}
	}
	return nil
}

// commitOutcome convierte un commit de resultado desconocido en PartialApplicationError.
func (uc *UseCase) commitOutcome(err error, operation, entityID string, ctxInfo map[string]string) error {
	if !errors.Is(err, domain.ErrCommitUnknown) {
		return err
	}
	pae := &domain.PartialApplicationError{
		Operation: operation,
		EntityID:  entityID,
		Context:   ctxInfo,
		Err:       err,
	}
	uc.log.Error().Err(err).
		Str("operation", operation).
		Str("entity_id", entityID).
		Interface("context", ctxInfo).
		Msg("aplicación parcial: requiere conciliación manual")
	return pae
}

// GetPurchase devuelve la compra o domain.ErrNotFound.
func (uc *UseCase) GetPurchase(ctx context.Context, id string) (*entity.Purchase, error) {
	var p *entity.Purchase
	err := uc.txRunner.Run(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		p, err = tx.Purchases().GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

// ListPurchases lista las compras, más recientes primero.
func (uc *UseCase) ListPurchases(ctx context.Context, limit, offset int) ([]*entity.Purchase, error) {
	var out []*entity.Purchase
	err := uc.txRunner.Run(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		out, err = tx.Purchases().List(ctx, limit, offset)
		return err
	})
	return out, err
}

// AttachInvoice sube el documento de factura y lo enlaza a la compra. El documento anterior, si había,
// se borra después (best-effort).
func (uc *UseCase) AttachInvoice(ctx context.Context, actor entity.Actor, purchaseID, filename, contentType string, r io.Reader) (*entity.Purchase, error) {
	if err := uc.policy.Require(actor, entity.CapRecordPurchase); err != nil {
		return nil, err
	}
	if uc.docs == nil {
		return nil, ErrNoDocumentStore
	}
	if strings.TrimSpace(filename) == "" {
		return nil, domain.NewValidationError("filename", "es obligatorio")
	}
	if _, err := uc.GetPurchase(ctx, purchaseID); err != nil {
		return nil, err
	}

	ctx, cancel := ports.Detach(ctx, uc.cfg.TxTimeout)
	defer cancel()

	ref, err := uc.docs.Put(ctx, filename, contentType, r)
	if err != nil {
		return nil, fmt.Errorf("subir factura: %w", err)
	}

	var (
		p       *entity.Purchase
		prevRef string
	)
	err = uc.txRunner.Run(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		p, err = tx.Purchases().GetForUpdate(ctx, purchaseID)
		if err != nil {
			return err
		}
		if p == nil {
			return domain.ErrNotFound
		}
		prevRef = p.InvoiceDocumentRef
		p.InvoiceDocumentRef = ref
		return tx.Purchases().SetInvoiceDocument(ctx, purchaseID, ref)
	})
	if err != nil {
		// el documento recién subido queda huérfano
		if w := uc.deleteDocument(ctx, ref); w != nil {
			uc.log.Warn().Err(w).Str("purchase_id", purchaseID).Msg("documento huérfano")
		}
		return nil, err
	}
	if prevRef != "" && prevRef != ref {
		if w := uc.deleteDocument(ctx, prevRef); w != nil {
			uc.log.Warn().Err(w).Str("purchase_id", purchaseID).Msg("factura anterior no eliminada")
		}
	}
	return p, nil
}

// OpenInvoice abre el documento de factura de la compra.
func (uc *UseCase) OpenInvoice(ctx context.Context, purchaseID string) (io.ReadCloser, error) {
	if uc.docs == nil {
		return nil, ErrNoDocumentStore
	}
	p, err := uc.GetPurchase(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	if p.InvoiceDocumentRef == "" {
		return nil, domain.ErrNotFound
	}
	return uc.docs.Open(ctx, p.InvoiceDocumentRef)
}

type purchaseEvent struct {
	PurchaseID     string          `json:"purchase_id"`
	ProductID      string          `json:"product_id"`
	Quantity       decimal.Decimal `json:"quantity"`
	TotalCost      decimal.Decimal `json:"total_cost"`
	MovementID     string          `json:"movement_id"`
	ReversalPolicy string          `json:"reversal_policy,omitempty"`
}

func enqueue(ctx context.Context, tx repository.Tx, purchaseID, eventType string, payload purchaseEvent, now time.Time) error {
	ev, err := entity.NewLedgerEvent("purchase", purchaseID, eventType, payload, now)
	if err != nil {
		return err
	}
	if err := tx.Outbox().Create(ctx, ev); err != nil {
		return fmt.Errorf("encolar evento: %w", err)
	}
	return nil
}
