package http

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/agro-inventario/internal/application/purchase"
	"github.com/jhoicas/agro-inventario/internal/domain"
)

func TestErrorStatus(t *testing.T) {
	partial := &domain.PartialApplicationError{
		Operation: "delete_purchase",
		EntityID:  "c1",
		Context:   map[string]string{"purchase_id": "c1"},
		Err:       fmt.Errorf("%w: conexión cerrada", domain.ErrCommitUnknown),
	}

	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validación", domain.NewValidationError("quantity", "debe ser mayor que 0"), http.StatusUnprocessableEntity, "VALIDATION"},
		{"stock negativo", fmt.Errorf("ajuste: %w", &domain.NegativeStockError{ProductID: "p1"}), http.StatusConflict, "NEGATIVE_STOCK"},
		{"compra consumida", &domain.WouldUnderflowError{PurchaseID: "c1"}, http.StatusConflict, "WOULD_UNDERFLOW"},
		{"transición", &domain.InvalidTransitionError{From: "APPROVED", To: "REJECTED"}, http.StatusConflict, "INVALID_TRANSITION"},
		{"duplicado", domain.ErrDuplicate, http.StatusConflict, "DUPLICATE"},
		{"prohibido", domain.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{"sin actor", domain.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"no encontrado", domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"reintentable", fmt.Errorf("%w: timeout", domain.ErrRetryable), http.StatusServiceUnavailable, "RETRYABLE"},
		{"aplicación parcial", partial, http.StatusInternalServerError, "PARTIAL_APPLICATION"},
		{"sin almacén de documentos", purchase.ErrNoDocumentStore, http.StatusServiceUnavailable, "DOCUMENTS_UNAVAILABLE"},
		{"desconocido", errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := errorStatus(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, body.Code)
		})
	}

	_, body := errorStatus(partial)
	assert.Equal(t, "c1", body.Context["purchase_id"])

	_, body = errorStatus(domain.NewValidationError("quantity", "debe ser mayor que 0"))
	assert.Equal(t, "debe ser mayor que 0", body.Fields["quantity"])
}
