// Package ledger es el libro de stock: toda variación de CurrentQuantity pasa por ApplyInTx,
// que bloquea el producto, valida el saldo y escribe el movimiento en la misma transacción.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/agro-inventario/internal/application/authz"
	"github.com/jhoicas/agro-inventario/internal/application/ports"
	"github.com/jhoicas/agro-inventario/internal/application/validation"
	"github.com/jhoicas/agro-inventario/internal/domain"
	"github.com/jhoicas/agro-inventario/internal/domain/entity"
	"github.com/jhoicas/agro-inventario/internal/domain/inventory"
	"github.com/jhoicas/agro-inventario/internal/domain/repository"
	"github.com/jhoicas/agro-inventario/pkg/logger"
)

// MovementInput datos de un movimiento a aplicar.
type MovementInput struct {
	ProductID      string
	Type           string
	Origin         string
	Quantity       decimal.Decimal
	Date           time.Time // cero = ahora
	ActorID        string
	PurchaseID     *string
	VerificationID *string
	ReversalOf     *string
	Note           string
	Provisional    bool
	// Status por defecto ACTIVE. Un compensatorio se guarda REVERSED: mueve el saldo
	// pero no cuenta como movimiento vivo porque anula a otro que tampoco cuenta.
	Status string
}

// BalanceCheck resultado de comparar el saldo guardado con la suma de movimientos vivos.
type BalanceCheck struct {
	ProductID  string
	Stored     decimal.Decimal
	Computed   decimal.Decimal
	Consistent bool
}

// Service libro de movimientos.
type Service struct {
	txRunner  ports.TxRunner
	policy    *authz.Policy
	log       *logger.Logger
	txTimeout time.Duration
	now       func() time.Time
}

// NewService construye el servicio.
func NewService(txRunner ports.TxRunner, policy *authz.Policy, log *logger.Logger, txTimeout time.Duration) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		txRunner:  txRunner,
		policy:    policy,
		log:       log.Component("ledger"),
		txTimeout: txTimeout,
		now:       time.Now,
	}
}

// SetClock reemplaza el reloj (pruebas).
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// ApplyMovement aplica un movimiento manual en su propia transacción.
func (s *Service) ApplyMovement(ctx context.Context, actor entity.Actor, in MovementInput) (*entity.Movement, error) {
	if err := s.policy.Require(actor, entity.CapApplyMovement); err != nil {
		return nil, err
	}
	in.ActorID = actor.ID
	if in.Origin == "" {
		in.Origin = entity.MovementOriginManual
	}

	ctx, cancel := ports.Detach(ctx, s.txTimeout)
	defer cancel()

	var mov *entity.Movement
	err := s.txRunner.Run(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		mov, err = s.ApplyInTx(ctx, tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Str("movement_id", mov.ID).
		Str("product_id", mov.ProductID).
		Str("type", mov.Type).
		Str("quantity", mov.Quantity.String()).
		Str("new_balance", mov.NewBalance.String()).
		Msg("movimiento aplicado")
	return mov, nil
}

// ApplyInTx aplica el movimiento dentro de la transacción del llamador:
// bloquea el producto, calcula el nuevo saldo, inserta el movimiento y actualiza la cantidad.
// Si el saldo quedaría negativo devuelve *domain.NegativeStockError sin escribir nada.
func (s *Service) ApplyInTx(ctx context.Context, tx repository.Tx, in MovementInput) (*entity.Movement, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	product, err := tx.Products().GetForUpdate(ctx, in.ProductID)
	if err != nil {
		return nil, fmt.Errorf("bloquear producto: %w", err)
	}
	if product == nil {
		return nil, domain.ErrNotFound
	}

	next, err := inventory.NextBalance(product.ID, product.CurrentQuantity, in.Type, in.Quantity)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	date := in.Date
	if date.IsZero() {
		date = now
	}
	status := in.Status
	if status == "" {
		status = entity.MovementStatusActive
	}

	mov := &entity.Movement{
		ID:             uuid.New().String(),
		ProductID:      product.ID,
		Type:           in.Type,
		Origin:         in.Origin,
		Quantity:       in.Quantity,
		PriorBalance:   product.CurrentQuantity,
		NewBalance:     next,
		UnitPrice:      product.UnitPrice,
		Value:          inventory.Amount(in.Quantity, product.UnitPrice),
		Date:           date,
		ActorID:        in.ActorID,
		PurchaseID:     in.PurchaseID,
		VerificationID: in.VerificationID,
		Note:           in.Note,
		Provisional:    in.Provisional,
		Status:         status,
		ReversalOf:     in.ReversalOf,
		CreatedAt:      now,
	}
	if err := tx.Movements().Create(ctx, mov); err != nil {
		return nil, fmt.Errorf("guardar movimiento: %w", err)
	}
	if err := tx.Products().UpdateQuantity(ctx, product.ID, next, now); err != nil {
		return nil, fmt.Errorf("actualizar cantidad: %w", err)
	}

	ev, err := entity.NewLedgerEvent("product", product.ID, entity.EventMovementApplied, movementEvent{
		MovementID: mov.ID,
		ProductID:  mov.ProductID,
		Type:       mov.Type,
		Origin:     mov.Origin,
		Quantity:   mov.Quantity,
		NewBalance: mov.NewBalance,
		Value:      mov.Value,
		Date:       mov.Date,
	}, now)
	if err != nil {
		return nil, err
	}
	if err := tx.Outbox().Create(ctx, ev); err != nil {
		return nil, fmt.Errorf("encolar evento: %w", err)
	}
	return mov, nil
}

type movementEvent struct {
	MovementID string          `json:"movement_id"`
	ProductID  string          `json:"product_id"`
	Type       string          `json:"type"`
	Origin     string          `json:"origin"`
	Quantity   decimal.Decimal `json:"quantity"`
	NewBalance decimal.Decimal `json:"new_balance"`
	Value      decimal.Decimal `json:"value"`
	Date       time.Time       `json:"date"`
}

func validateInput(in MovementInput) error {
	fields := map[string]string{}
	if strings.TrimSpace(in.ProductID) == "" {
		fields["product_id"] = "es obligatorio"
	}
	if !entity.ValidMovementType(in.Type) {
		fields["type"] = "debe ser ENTRY o EXIT"
	}
	switch {
	case !in.Quantity.IsPositive():
		fields["quantity"] = "debe ser mayor que 0"
	case !inventory.FitsScale(in.Quantity):
		fields["quantity"] = validation.ScaleReason
	}
	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

// CreateProductInput alta de producto. La cantidad inicial entra como movimiento ENTRY.
type CreateProductInput struct {
	Name            string          `json:"name" validate:"required,max=200"`
	Category        string          `json:"category" validate:"max=100"`
	UnitMeasure     string          `json:"unit_measure" validate:"required,max=30"`
	MinStock        decimal.Decimal `json:"min_stock" validate:"gte=0"`
	UnitPrice       decimal.Decimal `json:"unit_price" validate:"gte=0"`
	InitialQuantity decimal.Decimal `json:"initial_quantity" validate:"gte=0"`
}

// CreateProduct registra un producto con cantidad 0 y, si corresponde, su entrada inicial.
func (s *Service) CreateProduct(ctx context.Context, actor entity.Actor, in CreateProductInput) (*entity.Product, error) {
	if err := s.policy.Require(actor, entity.CapApplyMovement); err != nil {
		return nil, err
	}
	err := validation.CheckScale(validation.Struct(in), map[string]decimal.Decimal{
		"min_stock": in.MinStock, "unit_price": in.UnitPrice, "initial_quantity": in.InitialQuantity,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := ports.Detach(ctx, s.txTimeout)
	defer cancel()

	now := s.now().UTC()
	p := &entity.Product{
		ID:              uuid.New().String(),
		Name:            strings.TrimSpace(in.Name),
		Category:        in.Category,
		CurrentQuantity: decimal.Zero,
		UnitMeasure:     in.UnitMeasure,
		MinStock:        in.MinStock,
		UnitPrice:       in.UnitPrice,
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	err = s.txRunner.Run(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := tx.Products().Create(ctx, p); err != nil {
			return err
		}
		if !in.InitialQuantity.IsPositive() {
			return nil
		}
		mov, err := s.ApplyInTx(ctx, tx, MovementInput{
			ProductID: p.ID,
			Type:      entity.MovementTypeEntry,
			Origin:    entity.MovementOriginManual,
			Quantity:  in.InitialQuantity,
			ActorID:   actor.ID,
			Note:      "saldo inicial",
		})
		if err != nil {
			return err
		}
		p.CurrentQuantity = mov.NewBalance
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// CurrentBalance devuelve la cantidad guardada del producto.
func (s *Service) CurrentBalance(ctx context.Context, productID string) (decimal.Decimal, error) {
	p, err := s.GetProduct(ctx, productID)
	if err != nil {
		return decimal.Zero, err
	}
	return p.CurrentQuantity, nil
}

// GetProduct devuelve el producto o domain.ErrNotFound.
func (s *Service) GetProduct(ctx context.Context, productID string) (*entity.Product, error) {
	var p *entity.Product
	err := s.txRunner.Run(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		p, err = tx.Products().GetByID(ctx, productID)
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

// ListProducts lista productos por nombre.
func (s *Service) ListProducts(ctx context.Context, limit, offset int) ([]*entity.Product, error) {
	var out []*entity.Product
	err := s.txRunner.Run(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		out, err = tx.Products().List(ctx, limit, offset)
		return err
	})
	return out, err
}

// VerifyBalance recalcula Σ movimientos vivos y la compara con la cantidad guardada.
func (s *Service) VerifyBalance(ctx context.Context, productID string) (*BalanceCheck, error) {
	var check *BalanceCheck
	err := s.txRunner.Run(ctx, func(ctx context.Context, tx repository.Tx) error {
		p, err := tx.Products().GetByID(ctx, productID)
		if err != nil {
			return err
		}
		if p == nil {
			return domain.ErrNotFound
		}
		sum, err := tx.Movements().SumLive(ctx, productID)
		if err != nil {
			return err
		}
		check = &BalanceCheck{
			ProductID:  productID,
			Stored:     p.CurrentQuantity,
			Computed:   sum,
			Consistent: p.CurrentQuantity.Equal(sum),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !check.Consistent {
		s.log.Error().
			Str("product_id", productID).
			Str("stored", check.Stored.String()).
			Str("computed", check.Computed.String()).
			Msg("saldo inconsistente con el libro")
	}
	return check, nil
}

// ListMovements historial del producto, más reciente primero.
func (s *Service) ListMovements(ctx context.Context, productID string, from, to *time.Time, limit, offset int) ([]*entity.Movement, error) {
	var out []*entity.Movement
	err := s.txRunner.Run(ctx, func(ctx context.Context, tx repository.Tx) error {
		p, err := tx.Products().GetByID(ctx, productID)
		if err != nil {
			return err
		}
		if p == nil {
			return domain.ErrNotFound
		}
		out, err = tx.Movements().ListByProduct(ctx, productID, from, to, limit, offset)
		return err
	})
	return out, err
}
