package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound          = errors.New("recurso no encontrado")
	ErrInvalidInput      = errors.New("entrada inválida")
	ErrDuplicate         = errors.New("recurso duplicado")
	ErrUnauthorized      = errors.New("no autorizado")
	ErrForbidden         = errors.New("acceso denegado")
	ErrConflict          = errors.New("conflicto con el estado actual")
	ErrInsufficientStock = errors.New("stock insuficiente")
	ErrRetryable         = errors.New("operación no completada, reintentar")
	// ErrCommitUnknown el commit falló y no se puede garantizar si la transacción se aplicó.
	ErrCommitUnknown = errors.New("resultado del commit desconocido")
)

// ValidationError agrupa los campos inválidos de una entrada. Se devuelve antes de cualquier escritura.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError construye el error con un único campo.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: reason}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validación: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// NegativeStockError la operación dejaría la cantidad del producto por debajo de cero.
type NegativeStockError struct {
	ProductID string
	Current   decimal.Decimal
	Delta     decimal.Decimal // con signo
}

func (e *NegativeStockError) Error() string {
	return fmt.Sprintf("stock negativo: producto %s tiene %s, movimiento %s",
		e.ProductID, e.Current.String(), e.Delta.String())
}

func (e *NegativeStockError) Unwrap() error { return ErrInsufficientStock }

// WouldUnderflowError la compra ya fue consumida total o parcialmente y no se puede revertir.
type WouldUnderflowError struct {
	PurchaseID string
	ProductID  string
	Current    decimal.Decimal
	Quantity   decimal.Decimal
}

func (e *WouldUnderflowError) Error() string {
	return fmt.Sprintf("no se puede eliminar la compra %s: stock actual %s menor que la cantidad comprada %s",
		e.PurchaseID, e.Current.String(), e.Quantity.String())
}

func (e *WouldUnderflowError) Unwrap() error { return ErrInsufficientStock }

// InvalidTransitionError uso indebido de la máquina de estados de verificación.
type InvalidTransitionError struct {
	From   string
	To     string
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	msg := fmt.Sprintf("transición inválida de %s a %s", e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *InvalidTransitionError) Unwrap() error { return ErrConflict }

// PartialApplicationError una secuencia de varios pasos falló después de escribir parcialmente,
// o no se puede saber si se aplicó. Requiere conciliación manual.
type PartialApplicationError struct {
	Operation string            // delete_purchase, approve_verification, ...
	EntityID  string
	Applied   []string          // pasos que se sabe que quedaron aplicados
	Context   map[string]string // ids necesarios para conciliar
	Err       error
}

func (e *PartialApplicationError) Error() string {
	return fmt.Sprintf("aplicación parcial en %s (%s): %v", e.Operation, e.EntityID, e.Err)
}

func (e *PartialApplicationError) Unwrap() error { return e.Err }

// DependencyCleanupWarning fallo no fatal de una limpieza secundaria (ej. borrar la factura adjunta).
type DependencyCleanupWarning struct {
	Dependency string // invoice_document, expense
	Ref        string
	Err        error
}

func (w *DependencyCleanupWarning) Error() string {
	if w.Err == nil {
		return fmt.Sprintf("limpieza de %s (%s) omitida", w.Dependency, w.Ref)
	}
	return fmt.Sprintf("limpieza de %s (%s) falló: %v", w.Dependency, w.Ref, w.Err)
}

func (w *DependencyCleanupWarning) Unwrap() error { return w.Err }

// IsRetryable indica si el error proviene de un timeout o conflicto de concurrencia del backend.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRetryable)
}
