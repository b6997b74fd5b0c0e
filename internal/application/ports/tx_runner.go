package ports

import (
	"context"
	"time"

	"github.com/jhoicas/agro-inventario/internal/domain/entity"
	"github.com/jhoicas/agro-inventario/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción de BD, pasando repositorios atados a esa tx.
// Si fn devuelve error se hace Rollback y nada de lo escrito queda visible.
// Un fallo en el Commit se devuelve envuelto en domain.ErrCommitUnknown.
type TxRunner interface {
	Run(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error
}

// EventPublisher publica eventos ya confirmados del outbox hacia el exterior.
type EventPublisher interface {
	Publish(ctx context.Context, key string, eventType string, payload []byte) error
	Close() error
}

// VerificationReportRenderer genera el documento imprimible de una sesión de verificación.
type VerificationReportRenderer interface {
	RenderVerification(session *entity.VerificationSession) ([]byte, error)
}

// StoredResponse respuesta HTTP guardada para repetirla ante un reintento con la misma clave.
type StoredResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// ReplayStore guarda respuestas por clave de idempotencia.
// Load devuelve (nil, nil) si la clave no existe. Reserve devuelve false si otra petición
// con la misma clave está en curso.
type ReplayStore interface {
	Load(ctx context.Context, key string) (*StoredResponse, error)
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Save(ctx context.Context, key string, resp *StoredResponse, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}
