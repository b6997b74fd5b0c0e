package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jhoicas/agro-inventario/internal/domain"
)

// Códigos SQLSTATE usados por el adaptador.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeQueryCanceled        = "57014"
	codeLockNotAvailable     = "55P03"
	codeInvalidText          = "22P02"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isUniqueViolation verifica si un error es una violación de constraint único (23505).
func isUniqueViolation(err error) bool {
	if pgCode(err) == codeUniqueViolation {
		return true
	}
	return strings.Contains(err.Error(), codeUniqueViolation)
}

// isSerializationConflict la transacción completa puede repetirse.
func isSerializationConflict(err error) bool {
	switch pgCode(err) {
	case codeSerializationFailure, codeDeadlockDetected:
		return true
	}
	return false
}

// isNoRows trata un id mal formado igual que uno inexistente.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || pgCode(err) == codeInvalidText
}

// classify marca como reintentables los timeouts y conflictos de concurrencia; el resto se devuelve igual.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if domain.IsRetryable(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || isSerializationConflict(err) {
		return fmt.Errorf("%w: %v", domain.ErrRetryable, err)
	}
	switch pgCode(err) {
	case codeQueryCanceled, codeLockNotAvailable:
		return fmt.Errorf("%w: %v", domain.ErrRetryable, err)
	}
	return err
}

// nullString guarda "" como NULL.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// limitArg LIMIT NULL equivale a sin límite.
func limitArg(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}
