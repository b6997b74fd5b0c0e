package purchase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/agro-inventario/internal/application/authz"
	"github.com/jhoicas/agro-inventario/internal/application/ledger"
	"github.com/jhoicas/agro-inventario/internal/domain"
	"github.com/jhoicas/agro-inventario/internal/domain/entity"
	"github.com/jhoicas/agro-inventario/internal/domain/repository"
	"github.com/jhoicas/agro-inventario/internal/infrastructure/memory"
	"github.com/jhoicas/agro-inventario/pkg/logger"
)

var admin = entity.Actor{ID: "admin-1", Role: entity.RoleAdministrator}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	store  *memory.Store
	docs   *memory.DocumentStore
	ledger *ledger.Service
	uc     *UseCase
}

func newFixture(t *testing.T, policy string, initial string) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	docs := memory.NewDocumentStore()
	pol := authz.NewPolicy(nil)
	led := ledger.NewService(store, pol, logger.Nop(), time.Second)

	require.NoError(t, store.Direct().Products().Create(ctx, &entity.Product{
		ID: "urea", Name: "Urea", CurrentQuantity: decimal.Zero, UnitPrice: d("1000"), Active: true,
	}))
	if !d(initial).IsZero() {
		_, err := led.ApplyMovement(ctx, admin, ledger.MovementInput{ProductID: "urea", Type: entity.MovementTypeEntry, Quantity: d(initial)})
		require.NoError(t, err)
	}

	uc := NewUseCase(store, led, docs, pol, logger.Nop(), Config{ReversalPolicy: policy, TxTimeout: time.Second})
	return &fixture{store: store, docs: docs, ledger: led, uc: uc}
}

func (f *fixture) balance(t *testing.T) decimal.Decimal {
	t.Helper()
	b, err := f.ledger.CurrentBalance(context.Background(), "urea")
	require.NoError(t, err)
	return b
}

func (f *fixture) assertConsistent(t *testing.T) {
	t.Helper()
	check, err := f.ledger.VerifyBalance(context.Background(), "urea")
	require.NoError(t, err)
	assert.True(t, check.Consistent, "stored %s computed %s", check.Stored, check.Computed)
}

func (f *fixture) liveMovements(t *testing.T) []*entity.Movement {
	t.Helper()
	all, err := f.store.Direct().Movements().ListByProduct(context.Background(), "urea", nil, nil, 0, 0)
	require.NoError(t, err)
	var live []*entity.Movement
	for _, m := range all {
		if m.IsLive() {
			live = append(live, m)
		}
	}
	return live
}

func validInput() RecordPurchaseInput {
	return RecordPurchaseInput{
		PurchaseDate: time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
		Supplier:     "Agroinsumos del Valle",
		ProductID:    "urea",
		Quantity:     d("50"),
		Unit:         "kg",
		UnitCost:     d("900"),
	}
}

func TestRecordThenDelete_RoundTrip(t *testing.T) {
	f := newFixture(t, ReversalPolicyMark, "100")
	ctx := context.Background()
	before := f.liveMovements(t)

	p, err := f.uc.RecordPurchase(ctx, admin, validInput())
	require.NoError(t, err)
	assert.Equal(t, "45000", p.TotalCost.String())
	assert.NotEmpty(t, p.EntryMovementID)
	assert.Equal(t, "150", f.balance(t).String())

	entries, err := f.store.Direct().Movements().ListByPurchase(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entity.MovementTypeEntry, entries[0].Type)
	assert.Equal(t, "50", entries[0].Quantity.String())
	f.assertConsistent(t)

	report, err := f.uc.DeletePurchase(ctx, admin, p.ID)
	require.NoError(t, err)
	assert.Empty(t, report.Warnings)
	assert.Equal(t, "100", report.NewBalance.String())
	assert.Equal(t, "100", f.balance(t).String())
	f.assertConsistent(t)

	// el historial vivo vuelve al estado previo
	after := f.liveMovements(t)
	require.Len(t, after, len(before))
	assert.Equal(t, before[0].ID, after[0].ID)

	// pero queda rastro auditable de la compra y su reversión
	audit, err := f.store.Direct().Movements().ListByPurchase(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, audit, 2)
	var original, comp *entity.Movement
	for _, m := range audit {
		if m.Type == entity.MovementTypeEntry {
			original = m
		} else {
			comp = m
		}
	}
	require.NotNil(t, original)
	require.NotNil(t, comp)
	assert.Equal(t, entity.MovementStatusReversed, original.Status)
	require.NotNil(t, original.ReversedBy)
	assert.Equal(t, comp.ID, *original.ReversedBy)
	require.NotNil(t, comp.ReversalOf)
	assert.Equal(t, original.ID, *comp.ReversalOf)
	assert.Equal(t, entity.MovementOriginPurchaseReversal, comp.Origin)

	_, err = f.uc.GetPurchase(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeletePurchase_DeletePolicyRemovesOriginalEntry(t *testing.T) {
	f := newFixture(t, ReversalPolicyDelete, "100")
	ctx := context.Background()

	p, err := f.uc.RecordPurchase(ctx, admin, validInput())
	require.NoError(t, err)

	report, err := f.uc.DeletePurchase(ctx, admin, p.ID)
	require.NoError(t, err)
	assert.Equal(t, ReversalPolicyDelete, report.ReversalPolicy)

	orig, err := f.store.Direct().Movements().GetByID(ctx, p.EntryMovementID)
	require.NoError(t, err)
	assert.Nil(t, orig)

	audit, err := f.store.Direct().Movements().ListByPurchase(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, entity.MovementTypeExit, audit[0].Type)
	assert.False(t, audit[0].IsLive())

	assert.Equal(t, "100", f.balance(t).String())
	f.assertConsistent(t)
}

func TestDeletePurchase_WouldUnderflowAfterConsumption(t *testing.T) {
	f := newFixture(t, ReversalPolicyMark, "50")
	ctx := context.Background()

	p, err := f.uc.RecordPurchase(ctx, admin, validInput())
	require.NoError(t, err)
	require.Equal(t, "100", f.balance(t).String())

	_, err = f.ledger.ApplyMovement(ctx, admin, ledger.MovementInput{ProductID: "urea", Type: entity.MovementTypeExit, Quantity: d("80")})
	require.NoError(t, err)
	require.Equal(t, "20", f.balance(t).String())

	movsBefore, _ := f.store.Direct().Movements().ListByProduct(ctx, "urea", nil, nil, 0, 0)

	_, err = f.uc.DeletePurchase(ctx, admin, p.ID)
	var under *domain.WouldUnderflowError
	require.ErrorAs(t, err, &under)
	assert.Equal(t, "20", under.Current.String())
	assert.Equal(t, "50", under.Quantity.String())
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	// sin cambios
	assert.Equal(t, "20", f.balance(t).String())
	movsAfter, _ := f.store.Direct().Movements().ListByProduct(ctx, "urea", nil, nil, 0, 0)
	assert.Len(t, movsAfter, len(movsBefore))
	_, err = f.uc.GetPurchase(ctx, p.ID)
	assert.NoError(t, err)
	f.assertConsistent(t)
}

func TestDeletePurchase_RemovesPendingExpenseKeepsPaid(t *testing.T) {
	f := newFixture(t, ReversalPolicyMark, "0")
	ctx := context.Background()

	in := validInput()
	in.RegisterExpense = true
	p, err := f.uc.RecordPurchase(ctx, admin, in)
	require.NoError(t, err)

	exps, err := f.store.Direct().Expenses().ListByPurchase(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, exps, 1)
	assert.Equal(t, entity.ExpenseStatusPending, exps[0].Status)
	assert.Equal(t, "45000", exps[0].Amount.String())

	require.NoError(t, f.store.Direct().Expenses().Create(ctx, &entity.Expense{
		ID: "paid-1", PurchaseID: p.ID, Amount: d("10"), Status: entity.ExpenseStatusPaid,
	}))

	report, err := f.uc.DeletePurchase(ctx, admin, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.ExpensesRemoved)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, "expense", report.Warnings[0].Dependency)
	assert.Equal(t, "paid-1", report.Warnings[0].Ref)

	left, err := f.store.Direct().Expenses().ListByPurchase(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "paid-1", left[0].ID)
}

func TestDeletePurchase_InvoiceCleanupFailureIsWarning(t *testing.T) {
	f := newFixture(t, ReversalPolicyMark, "0")
	ctx := context.Background()

	p, err := f.uc.RecordPurchase(ctx, admin, validInput())
	require.NoError(t, err)
	p, err = f.uc.AttachInvoice(ctx, admin, p.ID, "factura.pdf", "application/pdf", strings.NewReader("%PDF"))
	require.NoError(t, err)
	require.NotEmpty(t, p.InvoiceDocumentRef)

	f.docs.FailDelete = errors.New("almacén caído")
	report, err := f.uc.DeletePurchase(ctx, admin, p.ID)
	require.NoError(t, err)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, "invoice_document", report.Warnings[0].Dependency)
	assert.True(t, f.balance(t).IsZero())
	f.assertConsistent(t)
}

func TestDeletePurchase_RemovesInvoice(t *testing.T) {
	f := newFixture(t, ReversalPolicyMark, "0")
	ctx := context.Background()

	p, err := f.uc.RecordPurchase(ctx, admin, validInput())
	require.NoError(t, err)
	p, err = f.uc.AttachInvoice(ctx, admin, p.ID, "factura.pdf", "application/pdf", strings.NewReader("%PDF"))
	require.NoError(t, err)

	_, err = f.uc.DeletePurchase(ctx, admin, p.ID)
	require.NoError(t, err)
	assert.False(t, f.docs.Has(p.InvoiceDocumentRef))
}

func TestAttachInvoice_ReplacesPrevious(t *testing.T) {
	f := newFixture(t, ReversalPolicyMark, "0")
	ctx := context.Background()

	p, err := f.uc.RecordPurchase(ctx, admin, validInput())
	require.NoError(t, err)
	first, err := f.uc.AttachInvoice(ctx, admin, p.ID, "a.pdf", "application/pdf", strings.NewReader("a"))
	require.NoError(t, err)
	second, err := f.uc.AttachInvoice(ctx, admin, p.ID, "b.pdf", "application/pdf", strings.NewReader("b"))
	require.NoError(t, err)

	assert.False(t, f.docs.Has(first.InvoiceDocumentRef))
	assert.True(t, f.docs.Has(second.InvoiceDocumentRef))

	rc, err := f.uc.OpenInvoice(ctx, p.ID)
	require.NoError(t, err)
	_ = rc.Close()
}

func TestRecordPurchase_IdempotentReplay(t *testing.T) {
	f := newFixture(t, ReversalPolicyMark, "0")
	ctx := context.Background()

	in := validInput()
	in.IdempotencyKey = "compra-abc"
	first, err := f.uc.RecordPurchase(ctx, admin, in)
	require.NoError(t, err)
	second, err := f.uc.RecordPurchase(ctx, admin, in)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "50", f.balance(t).String())

	in.Quantity = d("7")
	_, err = f.uc.RecordPurchase(ctx, admin, in)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestRecordPurchase_ValidationBeforeWrites(t *testing.T) {
	f := newFixture(t, ReversalPolicyMark, "0")
	ctx := context.Background()

	in := validInput()
	in.Supplier = "  "
	in.Quantity = d("0")
	in.UnitCost = d("-1")
	_, err := f.uc.RecordPurchase(ctx, admin, in)

	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "supplier")
	assert.Contains(t, ve.Fields, "quantity")
	assert.Contains(t, ve.Fields, "unit_cost")

	list, err := f.uc.ListPurchases(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.True(t, f.balance(t).IsZero())
}

func TestRecordPurchase_UnknownProduct(t *testing.T) {
	f := newFixture(t, ReversalPolicyMark, "0")

	in := validInput()
	in.ProductID = "inexistente"
	_, err := f.uc.RecordPurchase(context.Background(), admin, in)

	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "product_id")

	list, _ := f.uc.ListPurchases(context.Background(), 10, 0)
	assert.Empty(t, list)
}

func TestPurchase_CapabilityChecks(t *testing.T) {
	f := newFixture(t, ReversalPolicyMark, "0")
	ctx := context.Background()
	verifier := entity.Actor{ID: "v1", Role: entity.RoleVerifier}

	_, err := f.uc.RecordPurchase(ctx, verifier, validInput())
	assert.ErrorIs(t, err, domain.ErrForbidden)

	p, err := f.uc.RecordPurchase(ctx, admin, validInput())
	require.NoError(t, err)
	_, err = f.uc.DeletePurchase(ctx, verifier, p.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestDeletePurchase_NotFound(t *testing.T) {
	f := newFixture(t, ReversalPolicyMark, "0")

	_, err := f.uc.DeletePurchase(context.Background(), admin, "nada")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// unknownCommit aplica la transacción pero informa que no se sabe si el commit llegó.
type unknownCommit struct{ *memory.Store }

func (u unknownCommit) Run(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	if err := u.Store.Run(ctx, fn); err != nil {
		return err
	}
	return fmt.Errorf("commit: conexión perdida: %w", domain.ErrCommitUnknown)
}

func TestDeletePurchase_UnknownCommitIsPartialApplication(t *testing.T) {
	f := newFixture(t, ReversalPolicyMark, "0")
	ctx := context.Background()

	p, err := f.uc.RecordPurchase(ctx, admin, validInput())
	require.NoError(t, err)

	flaky := NewUseCase(unknownCommit{f.store}, f.ledger, f.docs, authz.NewPolicy(nil), logger.Nop(), Config{})
	_, err = flaky.DeletePurchase(ctx, admin, p.ID)

	var pae *domain.PartialApplicationError
	require.ErrorAs(t, err, &pae)
	assert.Equal(t, "delete_purchase", pae.Operation)
	assert.Equal(t, p.ID, pae.EntityID)
	assert.Equal(t, "urea", pae.Context["product_id"])
	assert.Equal(t, p.EntryMovementID, pae.Context["entry_movement_id"])
	assert.NotEmpty(t, pae.Context["compensating_movement_id"])
}
