// Package memory implementa los repositorios del libro en memoria (pruebas y desarrollo).
//
// Las transacciones se serializan con un único mutex: Run trabaja sobre una copia del
// estado y solo la publica si fn termina sin error, así un fallo no deja nada a medias.
package memory

import (
	"context"
	"sync"

	"github.com/jhoicas/agro-inventario/internal/application/ports"
	"github.com/jhoicas/agro-inventario/internal/domain/entity"
	"github.com/jhoicas/agro-inventario/internal/domain/repository"
)

var _ ports.TxRunner = (*Store)(nil)

type state struct {
	products      map[string]*entity.Product
	movements     map[string]*entity.Movement
	movementOrder []string
	purchases     map[string]*entity.Purchase
	expenses      map[string]*entity.Expense
	expenseOrder  []string
	sessions      map[string]*entity.VerificationSession // sin líneas
	lines         map[string]map[string]*entity.VerificationLine
	outbox        []*entity.LedgerEvent
	nextEventID   int64
}

func newState() *state {
	return &state{
		products:  make(map[string]*entity.Product),
		movements: make(map[string]*entity.Movement),
		purchases: make(map[string]*entity.Purchase),
		expenses:  make(map[string]*entity.Expense),
		sessions:  make(map[string]*entity.VerificationSession),
		lines:     make(map[string]map[string]*entity.VerificationLine),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.products {
		p := *v
		c.products[k] = &p
	}
	for k, v := range s.movements {
		m := *v
		c.movements[k] = &m
	}
	c.movementOrder = append([]string(nil), s.movementOrder...)
	for k, v := range s.purchases {
		p := *v
		c.purchases[k] = &p
	}
	for k, v := range s.expenses {
		e := *v
		c.expenses[k] = &e
	}
	c.expenseOrder = append([]string(nil), s.expenseOrder...)
	for k, v := range s.sessions {
		ss := *v
		ss.Lines = nil
		c.sessions[k] = &ss
	}
	for sid, byProduct := range s.lines {
		m := make(map[string]*entity.VerificationLine, len(byProduct))
		for pid, l := range byProduct {
			lc := *l
			m[pid] = &lc
		}
		c.lines[sid] = m
	}
	for _, ev := range s.outbox {
		e := *ev
		c.outbox = append(c.outbox, &e)
	}
	c.nextEventID = s.nextEventID
	return c
}

// Store backend en memoria. Implementa ports.TxRunner.
type Store struct {
	mu sync.Mutex
	st *state
}

// NewStore construye un almacén vacío.
func NewStore() *Store {
	return &Store{st: newState()}
}

// Run ejecuta fn sobre una copia del estado y la confirma si no hay error.
func (s *Store) Run(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{st: s.st.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.st = tx.st
	return nil
}

// Direct devuelve repositorios en modo autocommit (cada llamada toma el lock).
// No usar dentro de Run: el lock ya está tomado.
func (s *Store) Direct() repository.Tx {
	return &directTx{store: s}
}

// access abstrae cómo un repositorio llega al estado: dentro de una tx o en autocommit.
type access func(fn func(st *state) error) error

type memTx struct {
	st *state
}

func (t *memTx) access(fn func(st *state) error) error { return fn(t.st) }

func (t *memTx) Products() repository.ProductRepository { return &productRepo{with: t.access} }
func (t *memTx) Movements() repository.MovementRepository {
	return &movementRepo{with: t.access}
}
func (t *memTx) Purchases() repository.PurchaseRepository { return &purchaseRepo{with: t.access} }
func (t *memTx) Expenses() repository.ExpenseRepository   { return &expenseRepo{with: t.access} }
func (t *memTx) Verifications() repository.VerificationRepository {
	return &verificationRepo{with: t.access}
}
func (t *memTx) Outbox() repository.OutboxRepository { return &outboxRepo{with: t.access} }

// Savepoint guarda una copia del estado de la tx y la restaura si fn falla.
func (t *memTx) Savepoint(_ context.Context, fn func(tx repository.Tx) error) error {
	snapshot := t.st.clone()
	if err := fn(t); err != nil {
		t.st = snapshot
		return err
	}
	return nil
}

type directTx struct {
	store *Store
}

func (d *directTx) access(fn func(st *state) error) error {
	d.store.mu.Lock()
	defer d.store.mu.Unlock()
	return fn(d.store.st)
}

func (d *directTx) Products() repository.ProductRepository { return &productRepo{with: d.access} }
func (d *directTx) Movements() repository.MovementRepository {
	return &movementRepo{with: d.access}
}
func (d *directTx) Purchases() repository.PurchaseRepository { return &purchaseRepo{with: d.access} }
func (d *directTx) Expenses() repository.ExpenseRepository   { return &expenseRepo{with: d.access} }
func (d *directTx) Verifications() repository.VerificationRepository {
	return &verificationRepo{with: d.access}
}
func (d *directTx) Outbox() repository.OutboxRepository { return &outboxRepo{with: d.access} }

// Savepoint en autocommit equivale a ejecutar fn directamente.
func (d *directTx) Savepoint(_ context.Context, fn func(tx repository.Tx) error) error {
	return fn(d)
}
