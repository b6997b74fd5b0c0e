package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/agro-inventario/internal/domain"
	"github.com/jhoicas/agro-inventario/internal/domain/entity"
	"github.com/jhoicas/agro-inventario/internal/domain/repository"
)

var _ repository.OutboxRepository = (*OutboxRepo)(nil)

// OutboxRepo outbox transaccional; con tx escribe junto al cambio, con pool lo usa el relay.
type OutboxRepo struct {
	q Querier
}

// NewOutboxRepository construye el adaptador. Pasar pool o tx (Querier).
func NewOutboxRepository(q Querier) *OutboxRepo {
	return &OutboxRepo{q: q}
}

// Create guarda el evento pendiente y asigna su ID.
func (r *OutboxRepo) Create(ctx context.Context, ev *entity.LedgerEvent) error {
	query := `
		INSERT INTO ledger_outbox (aggregate_type, aggregate_id, event_type, payload, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	err := r.q.QueryRow(ctx, query,
		ev.AggregateType, ev.AggregateID, ev.EventType, []byte(ev.Payload), ev.Status, ev.Attempts, ev.CreatedAt,
	).Scan(&ev.ID)
	if err != nil {
		return fmt.Errorf("create outbox event: %w", err)
	}
	return nil
}

// GetPending eventos pendientes en orden de escritura.
func (r *OutboxRepo) GetPending(ctx context.Context, limit int) ([]*entity.LedgerEvent, error) {
	query := `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, status, attempts, created_at, published_at
		FROM ledger_outbox
		WHERE status = $1
		ORDER BY id
		LIMIT $2`
	rows, err := r.q.Query(ctx, query, entity.OutboxStatusPending, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("get pending outbox events: %w", err)
	}
	defer rows.Close()

	var out []*entity.LedgerEvent
	for rows.Next() {
		var ev entity.LedgerEvent
		var payload []byte
		err := rows.Scan(&ev.ID, &ev.AggregateType, &ev.AggregateID, &ev.EventType, &payload,
			&ev.Status, &ev.Attempts, &ev.CreatedAt, &ev.PublishedAt)
		if err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		ev.Payload = payload
		out = append(out, &ev)
	}
	return out, rows.Err()
}

func (r *OutboxRepo) exec(ctx context.Context, what, query string, args ...any) error {
	tag, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *OutboxRepo) MarkPublished(ctx context.Context, id int64, at time.Time) error {
	return r.exec(ctx, "mark outbox event published",
		`UPDATE ledger_outbox SET status = $1, published_at = $2 WHERE id = $3`,
		entity.OutboxStatusPublished, at, id)
}

func (r *OutboxRepo) IncrementAttempts(ctx context.Context, id int64) error {
	return r.exec(ctx, "increment outbox attempts",
		`UPDATE ledger_outbox SET attempts = attempts + 1 WHERE id = $1`, id)
}

func (r *OutboxRepo) MarkFailed(ctx context.Context, id int64) error {
	return r.exec(ctx, "mark outbox event failed",
		`UPDATE ledger_outbox SET status = $1 WHERE id = $2`, entity.OutboxStatusFailed, id)
}
