package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/agro-inventario/internal/application/ports"
	"github.com/jhoicas/agro-inventario/internal/domain"
	"github.com/jhoicas/agro-inventario/internal/domain/repository"
	"github.com/jhoicas/agro-inventario/pkg/logger"
)

var _ ports.TxRunner = (*TxRunner)(nil)

// Beginner abre transacciones; lo cumplen *pgxpool.Pool y los mocks de pgxmock.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
// Los fallos de serialización y deadlocks repiten la transacción completa hasta maxRetries veces.
type TxRunner struct {
	db         Beginner
	maxRetries int
	log        *logger.Logger
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(db Beginner, maxRetries int, log *logger.Logger) *TxRunner {
	if log == nil {
		log = logger.Nop()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &TxRunner{db: db, maxRetries: maxRetries, log: log.Component("postgres_tx")}
}

// Run inicia una transacción, ejecuta fn con repos atados a la tx y hace Commit o Rollback.
func (r *TxRunner) Run(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	for attempt := 0; ; attempt++ {
		err := r.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if isSerializationConflict(err) && !errors.Is(err, domain.ErrCommitUnknown) &&
			attempt < r.maxRetries && ctx.Err() == nil {
			r.log.Warn().Err(err).Int("attempt", attempt+1).Msg("conflicto de concurrencia, reintentando transacción")
			continue
		}
		return classify(err)
	}
}

func (r *TxRunner) runOnce(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, newPgTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		// Un 40001 en el commit garantiza rollback; cualquier otro fallo deja el resultado en duda.
		if isSerializationConflict(err) {
			return fmt.Errorf("commit transaction: %w", err)
		}
		return fmt.Errorf("%w: %v", domain.ErrCommitUnknown, err)
	}
	return nil
}

// pgTx implementa repository.Tx sobre una pgx.Tx.
type pgTx struct {
	tx pgx.Tx
}

func newPgTx(tx pgx.Tx) *pgTx { return &pgTx{tx: tx} }

func (t *pgTx) Products() repository.ProductRepository       { return NewProductRepository(t.tx) }
func (t *pgTx) Movements() repository.MovementRepository     { return NewMovementRepository(t.tx) }
func (t *pgTx) Purchases() repository.PurchaseRepository     { return NewPurchaseRepository(t.tx) }
func (t *pgTx) Expenses() repository.ExpenseRepository       { return NewExpenseRepository(t.tx) }
func (t *pgTx) Outbox() repository.OutboxRepository          { return NewOutboxRepository(t.tx) }
func (t *pgTx) Verifications() repository.VerificationRepository {
	return NewVerificationRepository(t.tx)
}

// Savepoint usa una transacción anidada de pgx (SAVEPOINT / ROLLBACK TO SAVEPOINT).
func (t *pgTx) Savepoint(ctx context.Context, fn func(tx repository.Tx) error) error {
	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}
	if err := fn(newPgTx(sp)); err != nil {
		if rbErr := sp.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback savepoint: %v (causa: %w)", rbErr, err)
		}
		return err
	}
	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}
