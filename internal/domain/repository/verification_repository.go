package repository

import (
	"context"

	"github.com/jhoicas/agro-inventario/internal/domain/entity"
)

// VerificationRepository sesiones de conteo físico y sus líneas.
// Las lecturas de sesión incluyen las líneas ordenadas por nombre de producto.
type VerificationRepository interface {
	CreateSession(ctx context.Context, session *entity.VerificationSession) error
	GetSession(ctx context.Context, id string) (*entity.VerificationSession, error)
	GetSessionForUpdate(ctx context.Context, id string) (*entity.VerificationSession, error)
	// UpdateSession persiste estado, marcas de tiempo, revisor y resumen (no las líneas).
	UpdateSession(ctx context.Context, session *entity.VerificationSession) error
	UpdateLine(ctx context.Context, line *entity.VerificationLine) error
	// FindOpen devuelve la sesión IN_PROGRESS o PENDING_APPROVAL, si existe.
	FindOpen(ctx context.Context) (*entity.VerificationSession, error)
	ListSessions(ctx context.Context, limit, offset int) ([]*entity.VerificationSession, error)
}
