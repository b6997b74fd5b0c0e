package repository

import "context"

// Tx agrupa los repositorios atados a una misma transacción.
type Tx interface {
	Products() ProductRepository
	Movements() MovementRepository
	Purchases() PurchaseRepository
	Expenses() ExpenseRepository
	Verifications() VerificationRepository
	Outbox() OutboxRepository
	// Savepoint ejecuta fn en una sub-transacción: si fn falla se deshace solo lo que fn escribió
	// y la transacción exterior sigue utilizable.
	Savepoint(ctx context.Context, fn func(tx Tx) error) error
}
