package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/agro-inventario/internal/domain"
	"github.com/jhoicas/agro-inventario/internal/domain/entity"
)

var productCols = []string{"id", "name", "category", "current_quantity", "unit_measure", "min_stock",
	"unit_price", "active", "created_at", "updated_at"}

func TestProductRepo_GetForUpdate(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewProductRepository(mock)
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	query := regexp.QuoteMeta(`FROM products WHERE id = $1 FOR UPDATE`)

	t.Run("success", func(t *testing.T) {
		rows := pgxmock.NewRows(productCols).AddRow("p1", "Urea", "fertilizante", decimal.NewFromInt(40),
			"kg", decimal.NewFromInt(10), decimal.NewFromInt(1000), true, now, now)
		mock.ExpectQuery(query).WithArgs("p1").WillReturnRows(rows)

		p, err := repo.GetForUpdate(ctx, "p1")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, "Urea", p.Name)
		assert.Equal(t, "40", p.CurrentQuantity.String())
		assert.Equal(t, "40000", p.Valuation().String())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs("p2").WillReturnError(pgx.ErrNoRows)

		p, err := repo.GetForUpdate(ctx, "p2")
		assert.NoError(t, err)
		assert.Nil(t, p)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("id mal formado equivale a inexistente", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs("zzz").WillReturnError(&pgconn.PgError{Code: "22P02"})

		p, err := repo.GetForUpdate(ctx, "zzz")
		assert.NoError(t, err)
		assert.Nil(t, p)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("some db error")
		mock.ExpectQuery(query).WithArgs("p1").WillReturnError(dbErr)

		p, err := repo.GetForUpdate(ctx, "p1")
		assert.Nil(t, p)
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestProductRepo_Create_Duplicate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO products`).WithArgs(anyArgs(10)...).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err = NewProductRepository(mock).Create(context.Background(), &entity.Product{ID: "p1", Name: "Urea"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepo_UpdateQuantity_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(updateQuantitySQL).WithArgs(anyArgs(3)...).WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = NewProductRepository(mock).UpdateQuantity(context.Background(), "p9", decimal.Zero, time.Now())
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

var movementCols = []string{"id", "product_id", "type", "origin", "quantity", "prior_balance", "new_balance",
	"unit_price", "value", "date", "actor_id", "purchase_id", "verification_id", "note", "provisional",
	"status", "reversal_of", "reversed_by", "created_at"}

func TestMovementRepo_ListByProduct(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC)
	purchaseID := "c1"

	rows := pgxmock.NewRows(movementCols).AddRow(
		"m1", "p1", entity.MovementTypeEntry, entity.MovementOriginPurchase, decimal.NewFromInt(5),
		decimal.NewFromInt(10), decimal.NewFromInt(15), decimal.NewFromInt(1000), decimal.NewFromInt(5000),
		from.Add(time.Hour), "u1", &purchaseID, (*string)(nil), "", false,
		entity.MovementStatusActive, (*string)(nil), (*string)(nil), from.Add(time.Hour),
	)
	query := regexp.QuoteMeta(`WHERE product_id = $1 AND date >= $2 AND date <= $3 ORDER BY date DESC, created_at DESC LIMIT $4 OFFSET $5`)
	mock.ExpectQuery(query).WithArgs("p1", from, to, nil, 20).WillReturnRows(rows)

	list, err := NewMovementRepository(mock).ListByProduct(ctx, "p1", &from, &to, 0, 20)
	require.NoError(t, err)
	require.Len(t, list, 1)
	m := list[0]
	assert.Equal(t, "m1", m.ID)
	require.NotNil(t, m.PurchaseID)
	assert.Equal(t, "c1", *m.PurchaseID)
	assert.Nil(t, m.VerificationID)
	assert.True(t, m.IsLive())
	assert.Equal(t, "5", m.Signed().String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMovementRepo_SumLive(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM movements WHERE product_id = $1 AND status = $2`)).
		WithArgs("p1", entity.MovementStatusActive).
		WillReturnRows(pgxmock.NewRows([]string{"sum"}).AddRow(decimal.RequireFromString("37.5")))

	sum, err := NewMovementRepository(mock).SumLive(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "37.5", sum.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMovementRepo_MarkReversed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`UPDATE movements SET status`).
		WithArgs(entity.MovementStatusReversed, "m2", "m1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, NewMovementRepository(mock).MarkReversed(context.Background(), "m1", "m2"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseRepo_Create(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPurchaseRepository(mock)
	p := &entity.Purchase{ID: "c1", ProductID: "p1", Quantity: decimal.NewFromInt(5), IdempotencyKey: "k1"}

	t.Run("clave vacía se guarda como NULL", func(t *testing.T) {
		args := anyArgs(16)
		args[13] = (*string)(nil)
		mock.ExpectExec(`INSERT INTO purchases`).WithArgs(args...).WillReturnResult(pgxmock.NewResult("INSERT", 1))

		noKey := *p
		noKey.IdempotencyKey = ""
		require.NoError(t, repo.Create(ctx, &noKey))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("clave repetida", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO purchases`).WithArgs(anyArgs(16)...).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_purchases_recorded_by_idempotency_key"})

		assert.ErrorIs(t, repo.Create(ctx, p), domain.ErrDuplicate)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPurchaseRepo_GetByIdempotencyKey_Empty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	p, err := NewPurchaseRepository(mock).GetByIdempotencyKey(context.Background(), "admin-1", "")
	assert.NoError(t, err)
	assert.Nil(t, p)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseRepo_GetByIdempotencyKey_ScopedToRecorder(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`FROM purchases\s+WHERE recorded_by = \$1 AND idempotency_key = \$2`).
		WithArgs("admin-2", "1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	p, err := NewPurchaseRepository(mock).GetByIdempotencyKey(context.Background(), "admin-2", "1")
	assert.NoError(t, err)
	assert.Nil(t, p)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExpenseRepo_DeletePendingByPurchase(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM expenses`).
		WithArgs("c1", entity.ExpenseStatusPending).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	n, err := NewExpenseRepository(mock).DeletePendingByPurchase(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerificationRepo_GetSession(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	started := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	counted := decimal.NewFromInt(95)

	sessionRows := pgxmock.NewRows([]string{"id", "started_at", "ended_at", "state", "verifier_id", "reviewer_id",
		"reviewed_at", "completed_at", "notes", "rejection_reason", "supersedes_id", "total_lines", "lines_counted",
		"lines_matching", "lines_with_difference", "total_monetary_difference", "completion_pct"}).
		AddRow("s1", started, (*time.Time)(nil), entity.SessionStateInProgress, "u1", "", (*time.Time)(nil),
			(*time.Time)(nil), "", "", (*string)(nil), 1, 1, 0, 1, decimal.NewFromInt(-100), decimal.NewFromInt(100))
	lineRows := pgxmock.NewRows([]string{"session_id", "product_id", "product_name", "unit_price",
		"expected_quantity", "counted_quantity", "difference", "monetary_difference", "counted_at",
		"adjustment_movement_id"}).
		AddRow("s1", "p1", "Abono", decimal.NewFromInt(20), decimal.NewFromInt(100), &counted,
			decimal.NewFromInt(-5), decimal.NewFromInt(-100), &started, (*string)(nil))

	mock.ExpectQuery(regexp.QuoteMeta(`FROM verification_sessions WHERE id = $1`)).WithArgs("s1").WillReturnRows(sessionRows)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM verification_lines`)).WithArgs("s1").WillReturnRows(lineRows)

	s, err := NewVerificationRepository(mock).GetSession(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, entity.SessionStateInProgress, s.State)
	assert.Equal(t, 1, s.Summary.LinesWithDifference)
	require.Len(t, s.Lines, 1)
	assert.True(t, s.Lines[0].Counted())
	assert.Equal(t, "-5", s.Lines[0].Difference.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepo(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewOutboxRepository(mock)

	t.Run("create asigna id", func(t *testing.T) {
		ev, err := entity.NewLedgerEvent("product", "p1", entity.EventMovementApplied, map[string]string{"movement_id": "m1"}, time.Now())
		require.NoError(t, err)

		mock.ExpectQuery(`INSERT INTO ledger_outbox`).WithArgs(anyArgs(7)...).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))

		require.NoError(t, repo.Create(ctx, ev))
		assert.Equal(t, int64(42), ev.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("get pending", func(t *testing.T) {
		payload := []byte(`{"movement_id":"m1"}`)
		rows := pgxmock.NewRows([]string{"id", "aggregate_type", "aggregate_id", "event_type", "payload",
			"status", "attempts", "created_at", "published_at"}).
			AddRow(int64(1), "product", "p1", entity.EventMovementApplied, payload,
				entity.OutboxStatusPending, 0, time.Now(), (*time.Time)(nil))
		mock.ExpectQuery(`FROM ledger_outbox`).WithArgs(entity.OutboxStatusPending, 10).WillReturnRows(rows)

		events, err := repo.GetPending(ctx, 10)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.JSONEq(t, string(payload), string(json.RawMessage(events[0].Payload)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("mark published inexistente", func(t *testing.T) {
		mock.ExpectExec(`UPDATE ledger_outbox SET status`).WithArgs(anyArgs(3)...).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		assert.ErrorIs(t, repo.MarkPublished(ctx, 99, time.Now()), domain.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAnalyticsRepo_MonthlyTotals(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{"month", "entries", "exits"}).
		AddRow(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), decimal.NewFromInt(1000), decimal.Zero).
		AddRow(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), decimal.Zero, decimal.NewFromInt(200))

	mock.ExpectQuery(`date_trunc`).
		WithArgs(entity.MovementTypeEntry, entity.MovementTypeExit, entity.MovementStatusActive, from, to).
		WillReturnRows(rows)

	totals, err := NewAnalyticsRepository(mock).MonthlyTotals(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, totals, 2)
	assert.True(t, totals[0].Month.Equal(from))
	assert.Equal(t, "1000", totals[0].Entries.String())
	assert.Equal(t, "200", totals[1].Exits.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_InputValidation(t *testing.T) {
	err := RunMigrations("")
	assert.EqualError(t, err, "database URL cannot be empty")
}

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@db:5432/inv?sslmode=disable", migrateURL("postgres://u:p@db:5432/inv?sslmode=disable"))
	assert.Equal(t, "pgx5://u@db/inv", migrateURL("postgresql://u@db/inv"))
	assert.Equal(t, "pgx5://already", migrateURL("pgx5://already"))
}
