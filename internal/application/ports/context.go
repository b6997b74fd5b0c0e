package ports

import (
	"context"
	"time"
)

// DefaultTxTimeout plazo de una operación del libro cuando no se configura otro.
const DefaultTxTimeout = 30 * time.Second

// Detach separa ctx de la cancelación del llamador (una petición HTTP abortada no corta
// una transacción a medio camino) y le impone un plazo propio. Conserva los valores de ctx.
func Detach(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultTxTimeout
	}
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}
