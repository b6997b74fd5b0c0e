package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/agro-inventario/internal/application/authz"
	"github.com/jhoicas/agro-inventario/internal/domain"
	"github.com/jhoicas/agro-inventario/internal/domain/entity"
	"github.com/jhoicas/agro-inventario/internal/infrastructure/memory"
	"github.com/jhoicas/agro-inventario/pkg/logger"
)

var admin = entity.Actor{ID: "admin-1", Role: entity.RoleAdministrator}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func setup(t *testing.T, qty string) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	require.NoError(t, store.Direct().Products().Create(context.Background(), &entity.Product{
		ID: "fert", Name: "Fertilizante", CurrentQuantity: d(qty), UnitPrice: d("50"), Active: true,
	}))
	// el saldo sembrado se respalda con una entrada para que el libro cuadre desde el inicio
	if !d(qty).IsZero() {
		require.NoError(t, store.Direct().Movements().Create(context.Background(), &entity.Movement{
			ID: "seed", ProductID: "fert", Type: entity.MovementTypeEntry, Quantity: d(qty),
			Status: entity.MovementStatusActive, Date: time.Now(),
		}))
	}
	return NewService(store, authz.NewPolicy(nil), logger.Nop(), time.Second), store
}

func TestApplyMovement_EntryAndExit(t *testing.T) {
	svc, _ := setup(t, "10")
	ctx := context.Background()

	mov, err := svc.ApplyMovement(ctx, admin, MovementInput{ProductID: "fert", Type: entity.MovementTypeEntry, Quantity: d("5")})
	require.NoError(t, err)
	assert.Equal(t, "10", mov.PriorBalance.String())
	assert.Equal(t, "15", mov.NewBalance.String())
	assert.Equal(t, "250", mov.Value.String())
	assert.Equal(t, entity.MovementOriginManual, mov.Origin)
	assert.Equal(t, admin.ID, mov.ActorID)

	mov, err = svc.ApplyMovement(ctx, admin, MovementInput{ProductID: "fert", Type: entity.MovementTypeExit, Quantity: d("15")})
	require.NoError(t, err)
	assert.True(t, mov.NewBalance.IsZero())

	check, err := svc.VerifyBalance(ctx, "fert")
	require.NoError(t, err)
	assert.True(t, check.Consistent)
}

func TestApplyMovement_NegativeStockRejectedWithoutWrites(t *testing.T) {
	svc, store := setup(t, "3")
	ctx := context.Background()

	_, err := svc.ApplyMovement(ctx, admin, MovementInput{ProductID: "fert", Type: entity.MovementTypeExit, Quantity: d("4")})
	var neg *domain.NegativeStockError
	require.ErrorAs(t, err, &neg)
	assert.Equal(t, "3", neg.Current.String())
	assert.Equal(t, "-4", neg.Delta.String())

	bal, err := svc.CurrentBalance(ctx, "fert")
	require.NoError(t, err)
	assert.Equal(t, "3", bal.String())

	movs, err := store.Direct().Movements().ListByProduct(ctx, "fert", nil, nil, 0, 0)
	require.NoError(t, err)
	assert.Len(t, movs, 1)

	pending, err := store.Direct().Outbox().GetPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestApplyMovement_Validation(t *testing.T) {
	svc, _ := setup(t, "3")

	_, err := svc.ApplyMovement(context.Background(), admin, MovementInput{ProductID: "fert", Type: "TRANSFER", Quantity: d("0")})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "type")
	assert.Contains(t, ve.Fields, "quantity")
}

func TestApplyMovement_UnknownProduct(t *testing.T) {
	svc, _ := setup(t, "3")

	_, err := svc.ApplyMovement(context.Background(), admin, MovementInput{ProductID: "nada", Type: entity.MovementTypeEntry, Quantity: d("1")})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestApplyMovement_Forbidden(t *testing.T) {
	svc, _ := setup(t, "3")

	_, err := svc.ApplyMovement(context.Background(), entity.Actor{ID: "v1", Role: entity.RoleVerifier},
		MovementInput{ProductID: "fert", Type: entity.MovementTypeEntry, Quantity: d("1")})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestApplyMovement_EnqueuesEvent(t *testing.T) {
	svc, store := setup(t, "0")
	ctx := context.Background()

	_, err := svc.ApplyMovement(ctx, admin, MovementInput{ProductID: "fert", Type: entity.MovementTypeEntry, Quantity: d("2")})
	require.NoError(t, err)

	pending, err := store.Direct().Outbox().GetPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, entity.EventMovementApplied, pending[0].EventType)
	assert.Equal(t, "fert", pending[0].AggregateID)
}

func TestCreateProduct_InitialQuantityGoesThroughLedger(t *testing.T) {
	svc, _ := setup(t, "0")
	ctx := context.Background()

	p, err := svc.CreateProduct(ctx, admin, CreateProductInput{
		Name: "Semilla", UnitMeasure: "kg", UnitPrice: d("12.5"), InitialQuantity: d("40"),
	})
	require.NoError(t, err)
	assert.Equal(t, "40", p.CurrentQuantity.String())

	movs, err := svc.ListMovements(ctx, p.ID, nil, nil, 10, 0)
	require.NoError(t, err)
	require.Len(t, movs, 1)
	assert.Equal(t, "500", movs[0].Value.String())

	check, err := svc.VerifyBalance(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, check.Consistent)
}

func TestCreateProduct_Invalid(t *testing.T) {
	svc, _ := setup(t, "0")

	_, err := svc.CreateProduct(context.Background(), admin, CreateProductInput{UnitPrice: d("-1")})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "name")
	assert.Contains(t, ve.Fields, "unit_price")
}

func TestVerifyBalance_DetectsDrift(t *testing.T) {
	svc, store := setup(t, "5")
	ctx := context.Background()

	require.NoError(t, store.Direct().Products().UpdateQuantity(ctx, "fert", d("9"), time.Now()))

	check, err := svc.VerifyBalance(ctx, "fert")
	require.NoError(t, err)
	assert.False(t, check.Consistent)
	assert.Equal(t, "5", check.Computed.String())
	assert.Equal(t, "9", check.Stored.String())
}

func TestListMovements_DateFilter(t *testing.T) {
	svc, _ := setup(t, "0")
	ctx := context.Background()
	jan := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)

	_, err := svc.ApplyMovement(ctx, admin, MovementInput{ProductID: "fert", Type: entity.MovementTypeEntry, Quantity: d("1"), Date: jan})
	require.NoError(t, err)
	_, err = svc.ApplyMovement(ctx, admin, MovementInput{ProductID: "fert", Type: entity.MovementTypeEntry, Quantity: d("1"), Date: feb})
	require.NoError(t, err)

	from := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	movs, err := svc.ListMovements(ctx, "fert", &from, nil, 0, 0)
	require.NoError(t, err)
	require.Len(t, movs, 1)
	assert.True(t, movs[0].Date.Equal(feb))

	_, err = svc.ListMovements(ctx, "nada", nil, nil, 0, 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
