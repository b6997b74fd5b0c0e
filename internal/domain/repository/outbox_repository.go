package repository

import (
	"context"
	"time"

	"github.com/jhoicas/agro-inventario/internal/domain/entity"
)

// OutboxRepository outbox transaccional de eventos del libro.
type OutboxRepository interface {
	Create(ctx context.Context, event *entity.LedgerEvent) error
	GetPending(ctx context.Context, limit int) ([]*entity.LedgerEvent, error)
	MarkPublished(ctx context.Context, id int64, at time.Time) error
	IncrementAttempts(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64) error
}
