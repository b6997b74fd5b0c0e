package memory

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/agro-inventario/internal/domain"
	"github.com/jhoicas/agro-inventario/internal/domain/entity"
	"github.com/jhoicas/agro-inventario/internal/domain/repository"
)

var (
	_ repository.ProductRepository      = (*productRepo)(nil)
	_ repository.MovementRepository     = (*movementRepo)(nil)
	_ repository.PurchaseRepository     = (*purchaseRepo)(nil)
	_ repository.ExpenseRepository      = (*expenseRepo)(nil)
	_ repository.VerificationRepository = (*verificationRepo)(nil)
	_ repository.OutboxRepository       = (*outboxRepo)(nil)
)

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// ── Productos ────────────────────────────────────────────────────────────────

type productRepo struct{ with access }

func (r *productRepo) Create(_ context.Context, p *entity.Product) error {
	return r.with(func(st *state) error {
		if _, ok := st.products[p.ID]; ok {
			return domain.ErrDuplicate
		}
		c := *p
		st.products[p.ID] = &c
		return nil
	})
}

func (r *productRepo) GetByID(_ context.Context, id string) (*entity.Product, error) {
	var out *entity.Product
	err := r.with(func(st *state) error {
		if p, ok := st.products[id]; ok {
			c := *p
			out = &c
		}
		return nil
	})
	return out, err
}

// GetForUpdate en memoria el lock global de la tx ya serializa el acceso.
func (r *productRepo) GetForUpdate(ctx context.Context, id string) (*entity.Product, error) {
	return r.GetByID(ctx, id)
}

func (r *productRepo) UpdateQuantity(_ context.Context, id string, quantity decimal.Decimal, at time.Time) error {
	return r.with(func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return domain.ErrNotFound
		}
		p.CurrentQuantity = quantity
		p.UpdatedAt = at
		return nil
	})
}

func (r *productRepo) ListActive(ctx context.Context) ([]*entity.Product, error) {
	all, err := r.List(ctx, 0, 0)
	if err != nil {
		return nil, err
	}
	var out []*entity.Product
	for _, p := range all {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *productRepo) List(_ context.Context, limit, offset int) ([]*entity.Product, error) {
	var out []*entity.Product
	err := r.with(func(st *state) error {
		for _, p := range st.products {
			c := *p
			out = append(out, &c)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return page(out, limit, offset), err
}

// ── Movimientos ──────────────────────────────────────────────────────────────

type movementRepo struct{ with access }

func (r *movementRepo) Create(_ context.Context, m *entity.Movement) error {
	return r.with(func(st *state) error {
		if _, ok := st.movements[m.ID]; ok {
			return domain.ErrDuplicate
		}
		c := *m
		st.movements[m.ID] = &c
		st.movementOrder = append(st.movementOrder, m.ID)
		return nil
	})
}

func (r *movementRepo) GetByID(_ context.Context, id string) (*entity.Movement, error) {
	var out *entity.Movement
	err := r.with(func(st *state) error {
		if m, ok := st.movements[id]; ok {
			c := *m
			out = &c
		}
		return nil
	})
	return out, err
}

func (r *movementRepo) MarkReversed(_ context.Context, id, reversedBy string) error {
	return r.with(func(st *state) error {
		m, ok := st.movements[id]
		if !ok {
			return domain.ErrNotFound
		}
		by := reversedBy
		m.Status = entity.MovementStatusReversed
		m.ReversedBy = &by
		return nil
	})
}

func (r *movementRepo) Delete(_ context.Context, id string) error {
	return r.with(func(st *state) error {
		if _, ok := st.movements[id]; !ok {
			return domain.ErrNotFound
		}
		delete(st.movements, id)
		for i, mid := range st.movementOrder {
			if mid == id {
				st.movementOrder = append(st.movementOrder[:i:i], st.movementOrder[i+1:]...)
				break
			}
		}
		return nil
	})
}

func (r *movementRepo) filter(keep func(m *entity.Movement) bool) ([]*entity.Movement, error) {
	var out []*entity.Movement
	err := r.with(func(st *state) error {
		for _, id := range st.movementOrder {
			m := st.movements[id]
			if keep(m) {
				c := *m
				out = append(out, &c)
			}
		}
		return nil
	})
	return out, err
}

func (r *movementRepo) ListByProduct(_ context.Context, productID string, from, to *time.Time, limit, offset int) ([]*entity.Movement, error) {
	out, err := r.filter(func(m *entity.Movement) bool {
		if m.ProductID != productID {
			return false
		}
		if from != nil && m.Date.Before(*from) {
			return false
		}
		if to != nil && m.Date.After(*to) {
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	// más reciente primero; a igual fecha, el último insertado primero
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return page(out, limit, offset), nil
}

func (r *movementRepo) ListByPurchase(_ context.Context, purchaseID string) ([]*entity.Movement, error) {
	return r.filter(func(m *entity.Movement) bool {
		return m.PurchaseID != nil && *m.PurchaseID == purchaseID
	})
}

func (r *movementRepo) SumLive(_ context.Context, productID string) (decimal.Decimal, error) {
	sum := decimal.Zero
	err := r.with(func(st *state) error {
		for _, m := range st.movements {
			if m.ProductID == productID && m.IsLive() {
				sum = sum.Add(m.Signed())
			}
		}
		return nil
	})
	return sum, err
}

// ── Compras y gastos ─────────────────────────────────────────────────────────

type purchaseRepo struct{ with access }

func (r *purchaseRepo) Create(_ context.Context, p *entity.Purchase) error {
	return r.with(func(st *state) error {
		if _, ok := st.purchases[p.ID]; ok {
			return domain.ErrDuplicate
		}
		if p.IdempotencyKey != "" {
			for _, other := range st.purchases {
				if other.RecordedBy == p.RecordedBy && other.IdempotencyKey == p.IdempotencyKey {
					return domain.ErrDuplicate
				}
			}
		}
		c := *p
		st.purchases[p.ID] = &c
		return nil
	})
}

func (r *purchaseRepo) GetByID(_ context.Context, id string) (*entity.Purchase, error) {
	var out *entity.Purchase
	err := r.with(func(st *state) error {
		if p, ok := st.purchases[id]; ok {
			c := *p
			out = &c
		}
		return nil
	})
	return out, err
}

func (r *purchaseRepo) GetForUpdate(ctx context.Context, id string) (*entity.Purchase, error) {
	return r.GetByID(ctx, id)
}

func (r *purchaseRepo) GetByIdempotencyKey(_ context.Context, recordedBy, key string) (*entity.Purchase, error) {
	var out *entity.Purchase
	err := r.with(func(st *state) error {
		for _, p := range st.purchases {
			if key != "" && p.RecordedBy == recordedBy && p.IdempotencyKey == key {
				c := *p
				out = &c
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *purchaseRepo) update(id string, fn func(p *entity.Purchase)) error {
	return r.with(func(st *state) error {
		p, ok := st.purchases[id]
		if !ok {
			return domain.ErrNotFound
		}
		fn(p)
		return nil
	})
}

func (r *purchaseRepo) SetEntryMovement(_ context.Context, id, movementID string) error {
	return r.update(id, func(p *entity.Purchase) { p.EntryMovementID = movementID })
}

func (r *purchaseRepo) SetInvoiceDocument(_ context.Context, id, ref string) error {
	return r.update(id, func(p *entity.Purchase) { p.InvoiceDocumentRef = ref })
}

func (r *purchaseRepo) Delete(_ context.Context, id string) error {
	return r.with(func(st *state) error {
		if _, ok := st.purchases[id]; !ok {
			return domain.ErrNotFound
		}
		delete(st.purchases, id)
		return nil
	})
}

func (r *purchaseRepo) List(_ context.Context, limit, offset int) ([]*entity.Purchase, error) {
	var out []*entity.Purchase
	err := r.with(func(st *state) error {
		for _, p := range st.purchases {
			c := *p
			out = append(out, &c)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].PurchaseDate.Equal(out[j].PurchaseDate) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].PurchaseDate.After(out[j].PurchaseDate)
	})
	return page(out, limit, offset), err
}

type expenseRepo struct{ with access }

func (r *expenseRepo) Create(_ context.Context, e *entity.Expense) error {
	return r.with(func(st *state) error {
		c := *e
		st.expenses[e.ID] = &c
		st.expenseOrder = append(st.expenseOrder, e.ID)
		return nil
	})
}

func (r *expenseRepo) ListByPurchase(_ context.Context, purchaseID string) ([]*entity.Expense, error) {
	var out []*entity.Expense
	err := r.with(func(st *state) error {
		for _, id := range st.expenseOrder {
			if e, ok := st.expenses[id]; ok && e.PurchaseID == purchaseID {
				c := *e
				out = append(out, &c)
			}
		}
		return nil
	})
	return out, err
}

func (r *expenseRepo) DeletePendingByPurchase(_ context.Context, purchaseID string) (int64, error) {
	var n int64
	err := r.with(func(st *state) error {
		kept := st.expenseOrder[:0:0]
		for _, id := range st.expenseOrder {
			e := st.expenses[id]
			if e.PurchaseID == purchaseID && e.Status == entity.ExpenseStatusPending {
				delete(st.expenses, id)
				n++
				continue
			}
			kept = append(kept, id)
		}
		st.expenseOrder = kept
		return nil
	})
	return n, err
}

// ── Verificación ─────────────────────────────────────────────────────────────

type verificationRepo struct{ with access }

func assemble(st *state, s *entity.VerificationSession) *entity.VerificationSession {
	c := *s
	c.Lines = nil
	for _, l := range st.lines[s.ID] {
		lc := *l
		c.Lines = append(c.Lines, &lc)
	}
	sort.Slice(c.Lines, func(i, j int) bool {
		if c.Lines[i].ProductName == c.Lines[j].ProductName {
			return c.Lines[i].ProductID < c.Lines[j].ProductID
		}
		return c.Lines[i].ProductName < c.Lines[j].ProductName
	})
	return &c
}

func (r *verificationRepo) CreateSession(_ context.Context, s *entity.VerificationSession) error {
	return r.with(func(st *state) error {
		if _, ok := st.sessions[s.ID]; ok {
			return domain.ErrDuplicate
		}
		c := *s
		c.Lines = nil
		st.sessions[s.ID] = &c
		byProduct := make(map[string]*entity.VerificationLine, len(s.Lines))
		for _, l := range s.Lines {
			lc := *l
			lc.SessionID = s.ID
			byProduct[l.ProductID] = &lc
		}
		st.lines[s.ID] = byProduct
		return nil
	})
}

func (r *verificationRepo) GetSession(_ context.Context, id string) (*entity.VerificationSession, error) {
	var out *entity.VerificationSession
	err := r.with(func(st *state) error {
		if s, ok := st.sessions[id]; ok {
			out = assemble(st, s)
		}
		return nil
	})
	return out, err
}

func (r *verificationRepo) GetSessionForUpdate(ctx context.Context, id string) (*entity.VerificationSession, error) {
	return r.GetSession(ctx, id)
}

func (r *verificationRepo) UpdateSession(_ context.Context, s *entity.VerificationSession) error {
	return r.with(func(st *state) error {
		if _, ok := st.sessions[s.ID]; !ok {
			return domain.ErrNotFound
		}
		c := *s
		c.Lines = nil
		st.sessions[s.ID] = &c
		return nil
	})
}

func (r *verificationRepo) UpdateLine(_ context.Context, l *entity.VerificationLine) error {
	return r.with(func(st *state) error {
		byProduct, ok := st.lines[l.SessionID]
		if !ok {
			return domain.ErrNotFound
		}
		if _, ok := byProduct[l.ProductID]; !ok {
			return domain.ErrNotFound
		}
		c := *l
		byProduct[l.ProductID] = &c
		return nil
	})
}

func (r *verificationRepo) FindOpen(_ context.Context) (*entity.VerificationSession, error) {
	var out *entity.VerificationSession
	err := r.with(func(st *state) error {
		for _, s := range st.sessions {
			if !s.IsTerminal() {
				out = assemble(st, s)
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *verificationRepo) ListSessions(_ context.Context, limit, offset int) ([]*entity.VerificationSession, error) {
	var out []*entity.VerificationSession
	err := r.with(func(st *state) error {
		for _, s := range st.sessions {
			c := *s
			c.Lines = nil
			out = append(out, &c)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return page(out, limit, offset), err
}

// ── Outbox ───────────────────────────────────────────────────────────────────

type outboxRepo struct{ with access }

func (r *outboxRepo) Create(_ context.Context, ev *entity.LedgerEvent) error {
	return r.with(func(st *state) error {
		st.nextEventID++
		ev.ID = st.nextEventID
		c := *ev
		st.outbox = append(st.outbox, &c)
		return nil
	})
}

func (r *outboxRepo) GetPending(_ context.Context, limit int) ([]*entity.LedgerEvent, error) {
	var out []*entity.LedgerEvent
	err := r.with(func(st *state) error {
		for _, ev := range st.outbox {
			if ev.Status != entity.OutboxStatusPending {
				continue
			}
			c := *ev
			out = append(out, &c)
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	return out, err
}

func (r *outboxRepo) update(id int64, fn func(ev *entity.LedgerEvent)) error {
	return r.with(func(st *state) error {
		for _, ev := range st.outbox {
			if ev.ID == id {
				fn(ev)
				return nil
			}
		}
		return domain.ErrNotFound
	})
}

func (r *outboxRepo) MarkPublished(_ context.Context, id int64, at time.Time) error {
	return r.update(id, func(ev *entity.LedgerEvent) {
		ev.Status = entity.OutboxStatusPublished
		ev.PublishedAt = &at
	})
}

func (r *outboxRepo) IncrementAttempts(_ context.Context, id int64) error {
	return r.update(id, func(ev *entity.LedgerEvent) { ev.Attempts++ })
}

func (r *outboxRepo) MarkFailed(_ context.Context, id int64) error {
	return r.update(id, func(ev *entity.LedgerEvent) { ev.Status = entity.OutboxStatusFailed })
}
