// Package events reenvía al exterior los eventos del outbox ya confirmados.
// Nunca modifica el libro: solo marca el estado de publicación de cada evento.
package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/jhoicas/agro-inventario/internal/application/ports"
	"github.com/jhoicas/agro-inventario/internal/domain/entity"
	"github.com/jhoicas/agro-inventario/internal/domain/repository"
	"github.com/jhoicas/agro-inventario/pkg/logger"
)

// Config parámetros del relay.
type Config struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	Workers      int
}

// Relay lee lotes de eventos pendientes y los publica con un pool de workers.
// Los eventos de un mismo agregado se publican en orden y por un solo worker.
type Relay struct {
	outbox    repository.OutboxRepository
	publisher ports.EventPublisher
	pool      *ants.Pool
	log       *logger.Logger
	cfg       Config
	now       func() time.Time
}

// NewRelay construye el relay con su pool de workers.
func NewRelay(cfg Config, outbox repository.OutboxRepository, publisher ports.EventPublisher, log *logger.Logger) (*Relay, error) {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if log == nil {
		log = logger.Nop()
	}
	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("crear pool del relay: %w", err)
	}
	return &Relay{
		outbox:    outbox,
		publisher: publisher,
		pool:      pool,
		log:       log.Component("outbox_relay"),
		cfg:       cfg,
		now:       time.Now,
	}, nil
}

// Start procesa lotes en cada tick hasta que ctx se cancele.
func (r *Relay) Start(ctx context.Context) {
	r.log.Info().
		Dur("poll_interval", r.cfg.PollInterval).
		Int("batch_size", r.cfg.BatchSize).
		Int("workers", r.cfg.Workers).
		Msg("relay de eventos iniciado")
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("relay de eventos detenido")
			return
		case <-ticker.C:
			if _, err := r.ProcessBatch(ctx); err != nil {
				r.log.Error().Err(err).Msg("error procesando lote del outbox")
			}
		}
	}
}

// ProcessBatch publica un lote de pendientes y devuelve cuántos se publicaron.
func (r *Relay) ProcessBatch(ctx context.Context) (int, error) {
	pending, err := r.outbox.GetPending(ctx, r.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("leer eventos pendientes: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	// agrupar por agregado conservando el orden de inserción
	var keys []string
	groups := make(map[string][]*entity.LedgerEvent)
	for _, ev := range pending {
		if _, ok := groups[ev.AggregateID]; !ok {
			keys = append(keys, ev.AggregateID)
		}
		groups[ev.AggregateID] = append(groups[ev.AggregateID], ev)
	}

	var (
		wg        sync.WaitGroup
		published atomic.Int64
	)
	for _, key := range keys {
		group := groups[key]
		wg.Add(1)
		task := func() {
			defer wg.Done()
			published.Add(int64(r.publishGroup(ctx, group)))
		}
		if err := r.pool.Submit(task); err != nil {
			r.log.Warn().Err(err).Str("aggregate_id", key).Msg("pool lleno, se publica en línea")
			task()
		}
	}
	wg.Wait()
	return int(published.Load()), nil
}

// publishGroup se detiene en el primer fallo para no adelantar eventos posteriores del mismo agregado.
func (r *Relay) publishGroup(ctx context.Context, group []*entity.LedgerEvent) int {
	n := 0
	for _, ev := range group {
		if err := r.publisher.Publish(ctx, ev.AggregateID, ev.EventType, ev.Payload); err != nil {
			r.handleFailure(ctx, ev, err)
			return n
		}
		if err := r.outbox.MarkPublished(ctx, ev.ID, r.now().UTC()); err != nil {
			// se publicará de nuevo en el próximo lote; el consumidor debe tolerar duplicados
			r.log.Error().Err(err).Int64("event_id", ev.ID).Msg("no se pudo marcar como publicado")
			return n
		}
		n++
	}
	return n
}

func (r *Relay) handleFailure(ctx context.Context, ev *entity.LedgerEvent, cause error) {
	r.log.Error().Err(cause).
		Int64("event_id", ev.ID).
		Str("event_type", ev.EventType).
		Int("attempts", ev.Attempts).
		Msg("fallo publicando evento")

	if err := r.outbox.IncrementAttempts(ctx, ev.ID); err != nil {
		r.log.Error().Err(err).Int64("event_id", ev.ID).Msg("no se pudo incrementar intentos")
		return
	}
	if ev.Attempts+1 >= r.cfg.MaxAttempts {
		r.log.Warn().Int64("event_id", ev.ID).Int("attempts", ev.Attempts+1).Msg("máximo de intentos, evento marcado FAILED")
		if err := r.outbox.MarkFailed(ctx, ev.ID); err != nil {
			r.log.Error().Err(err).Int64("event_id", ev.ID).Msg("no se pudo marcar FAILED")
		}
	}
}

// Close libera el pool de workers.
func (r *Relay) Close() {
	r.pool.Release()
}
