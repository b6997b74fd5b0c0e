package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/agro-inventario/internal/application/authz"
	"github.com/jhoicas/agro-inventario/internal/application/dto"
	"github.com/jhoicas/agro-inventario/internal/application/ledger"
	"github.com/jhoicas/agro-inventario/internal/application/purchase"
	"github.com/jhoicas/agro-inventario/internal/application/valuation"
	"github.com/jhoicas/agro-inventario/internal/application/verification"
	"github.com/jhoicas/agro-inventario/internal/domain/entity"
	"github.com/jhoicas/agro-inventario/internal/infrastructure/memory"
	"github.com/jhoicas/agro-inventario/internal/infrastructure/pdf"
	apphttp "github.com/jhoicas/agro-inventario/internal/interfaces/http"
	"github.com/jhoicas/agro-inventario/pkg/logger"
)

type apiFixture struct {
	app      *fiber.App
	admin    string
	verifier string
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	store := memory.NewStore()
	policy := authz.NewPolicy(nil)
	log := logger.Nop()
	led := ledger.NewService(store, policy, log, time.Second)

	app := fiber.New()
	app.Use(apphttp.RequestID(), apphttp.RequestLogger(log))
	apphttp.Router(app, apphttp.RouterDeps{
		Ledger:    led,
		Purchases: purchase.NewUseCase(store, led, memory.NewDocumentStore(), policy, log, purchase.Config{TxTimeout: time.Second}),
		Verifications: verification.NewUseCase(store, led, pdf.NewMarotoReportGenerator(nil), policy, log,
			verification.Config{TxTimeout: time.Second}),
		Valuation:      valuation.NewUseCase(memory.NewAnalyticsRepository(store), policy),
		Policy:         policy,
		ReplayStore:    memory.NewReplayStore(),
		IdempotencyTTL: time.Hour,
		JWTSecret:      testJWTSecret,
		Logger:         log,
	})
	return &apiFixture{
		app:      app,
		admin:    tokenForRole(t, entity.RoleAdministrator),
		verifier: tokenForRole(t, entity.RoleVerifier),
	}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any, headers ...string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", token)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (f *apiFixture) createProduct(t *testing.T, name, initial string) dto.ProductResponse {
	t.Helper()
	resp := f.do(t, http.MethodPost, "/api/products", f.admin, map[string]string{
		"name": name, "unit_measure": "kg", "unit_price": "1000", "initial_quantity": initial,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[dto.ProductResponse](t, resp)
}

func (f *apiFixture) balance(t *testing.T, productID string) decimal.Decimal {
	t.Helper()
	resp := f.do(t, http.MethodGet, "/api/products/"+productID+"/balance", f.admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decode[dto.BalanceResponse](t, resp).Balance
}

func TestAPI_ProductAndManualMovements(t *testing.T) {
	f := newAPI(t)
	p := f.createProduct(t, "Urea", "10")
	assert.Equal(t, "10", p.CurrentQuantity.String())

	resp := f.do(t, http.MethodPost, "/api/movements", f.admin, map[string]any{
		"product_id": p.ID, "type": "EXIT", "quantity": "4",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	mov := decode[dto.MovementResponse](t, resp)
	assert.Equal(t, "10", mov.PriorBalance.String())
	assert.Equal(t, "6", mov.NewBalance.String())

	t.Run("salida mayor al saldo", func(t *testing.T) {
		resp := f.do(t, http.MethodPost, "/api/movements", f.admin, map[string]any{
			"product_id": p.ID, "type": "EXIT", "quantity": "7",
		})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, "NEGATIVE_STOCK", decode[dto.ErrorResponse](t, resp).Code)
		assert.Equal(t, "6", f.balance(t, p.ID).String())
	})

	t.Run("cantidad no positiva", func(t *testing.T) {
		resp := f.do(t, http.MethodPost, "/api/movements", f.admin, map[string]any{
			"product_id": p.ID, "type": "ENTRY", "quantity": "0",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("verificador no mueve stock", func(t *testing.T) {
		resp := f.do(t, http.MethodPost, "/api/movements", f.verifier, map[string]any{
			"product_id": p.ID, "type": "ENTRY", "quantity": "1",
		})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("historial más reciente primero", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/api/products/"+p.ID+"/movements", f.verifier, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		list := decode[dto.MovementListResponse](t, resp)
		require.Len(t, list.Items, 2)
		assert.Equal(t, "6", list.Items[0].NewBalance.String())
	})

	t.Run("fecha inválida", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/api/products/"+p.ID+"/movements?from=ayer", f.admin, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("saldo consistente con el libro", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, "/api/products/"+p.ID+"/balance/verify", f.admin, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, decode[dto.BalanceCheckResponse](t, resp).Consistent)
	})
}

func TestAPI_ProductNotFound(t *testing.T) {
	f := newAPI(t)
	resp := f.do(t, http.MethodGet, "/api/products/no-existe", f.admin, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_ListRejectsNonNumericPaging(t *testing.T) {
	f := newAPI(t)
	for _, path := range []string{
		"/api/products?limit=abc",
		"/api/purchases?offset=x",
		"/api/verifications?limit=1.5",
	} {
		resp := f.do(t, http.MethodGet, path, f.admin, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, path)
	}

	resp := f.do(t, http.MethodGet, "/api/products?limit=500&offset=-3", f.admin, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "fuera de rango se ajusta, no se rechaza")
}

func TestAPI_PurchaseIdempotencyKeyReplaysResponse(t *testing.T) {
	f := newAPI(t)
	p := f.createProduct(t, "Abono", "10")
	body := map[string]any{
		"supplier": "Agroinsumos", "product_id": p.ID, "quantity": "5", "unit": "kg", "unit_cost": "900",
	}

	first := f.do(t, http.MethodPost, "/api/purchases", f.admin, body, apphttp.HeaderIdempotencyKey, "compra-1")
	require.Equal(t, http.StatusCreated, first.StatusCode)
	firstBody := decode[dto.PurchaseResponse](t, first)

	second := f.do(t, http.MethodPost, "/api/purchases", f.admin, body, apphttp.HeaderIdempotencyKey, "compra-1")
	require.Equal(t, http.StatusCreated, second.StatusCode)
	assert.Equal(t, "true", second.Header.Get(apphttp.HeaderReplayed))
	assert.Equal(t, firstBody.ID, decode[dto.PurchaseResponse](t, second).ID)

	assert.Equal(t, "15", f.balance(t, p.ID).String())
}

func TestAPI_PurchaseDeleteReversesEntry(t *testing.T) {
	f := newAPI(t)
	p := f.createProduct(t, "Semilla", "0")

	resp := f.do(t, http.MethodPost, "/api/purchases", f.admin, map[string]any{
		"supplier": "Semillas SA", "product_id": p.ID, "quantity": "8", "unit": "kg", "unit_cost": "50",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	rec := decode[dto.PurchaseResponse](t, resp)
	assert.Equal(t, "400", rec.TotalCost.String())

	t.Run("consumida parcialmente no se puede eliminar", func(t *testing.T) {
		resp := f.do(t, http.MethodPost, "/api/movements", f.admin, map[string]any{
			"product_id": p.ID, "type": "EXIT", "quantity": "3",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		resp = f.do(t, http.MethodDelete, "/api/purchases/"+rec.ID, f.admin, nil)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, "WOULD_UNDERFLOW", decode[dto.ErrorResponse](t, resp).Code)
	})

	t.Run("con stock suficiente se revierte", func(t *testing.T) {
		resp := f.do(t, http.MethodPost, "/api/movements", f.admin, map[string]any{
			"product_id": p.ID, "type": "ENTRY", "quantity": "3",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		resp = f.do(t, http.MethodDelete, "/api/purchases/"+rec.ID, f.admin, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		report := decode[dto.PurchaseDeletionResponse](t, resp)
		assert.Equal(t, "8", report.QuantityReversed.String())
		assert.Equal(t, "0", report.NewBalance.String())

		resp = f.do(t, http.MethodGet, "/api/purchases/"+rec.ID, f.admin, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestAPI_InvoiceUploadAndDownload(t *testing.T) {
	f := newAPI(t)
	p := f.createProduct(t, "Fungicida", "0")
	resp := f.do(t, http.MethodPost, "/api/purchases", f.admin, map[string]any{
		"supplier": "Química del Campo", "product_id": p.ID, "quantity": "2", "unit": "l", "unit_cost": "30000",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	rec := decode[dto.PurchaseResponse](t, resp)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "factura.pdf")
	require.NoError(t, err)
	_, err = fw.Write([]byte("%PDF-factura"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, "/api/purchases/"+rec.ID+"/invoice", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", f.admin)
	resp, err = f.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decode[dto.PurchaseResponse](t, resp).HasInvoiceDocument)

	resp = f.do(t, http.MethodGet, "/api/purchases/"+rec.ID+"/invoice", f.verifier, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-factura", string(raw))
}

func TestAPI_VerificationFlow(t *testing.T) {
	f := newAPI(t)
	p := f.createProduct(t, "Cal", "100")

	resp := f.do(t, http.MethodPost, "/api/verifications", f.verifier, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	session := decode[dto.VerificationResponse](t, resp)
	require.Len(t, session.Lines, 1)
	base := "/api/verifications/" + session.ID

	t.Run("segunda sesión abierta", func(t *testing.T) {
		resp := f.do(t, http.MethodPost, "/api/verifications", f.verifier, nil)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("enviar sin contar", func(t *testing.T) {
		resp := f.do(t, http.MethodPost, base+"/submit", f.verifier, nil)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, "INVALID_TRANSITION", decode[dto.ErrorResponse](t, resp).Code)
	})

	resp = f.do(t, http.MethodPost, base+"/counts", f.verifier, map[string]any{
		"product_id": p.ID, "counted_quantity": "95",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	counted := decode[dto.VerificationResponse](t, resp)
	assert.Equal(t, "-5", counted.Lines[0].Difference.String())
	assert.Equal(t, "-5000", counted.Summary.TotalMonetaryDifference.String())

	resp = f.do(t, http.MethodPost, base+"/submit", f.verifier, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	t.Run("el verificador no aprueba", func(t *testing.T) {
		resp := f.do(t, http.MethodPost, base+"/approve", f.verifier, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	resp = f.do(t, http.MethodPost, base+"/approve", f.admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	approved := decode[dto.VerificationResponse](t, resp)
	assert.Equal(t, entity.SessionStateApproved, approved.State)
	require.NotNil(t, approved.Lines[0].AdjustmentMovementID)
	assert.Equal(t, "95", f.balance(t, p.ID).String())

	t.Run("aprobar dos veces", func(t *testing.T) {
		resp := f.do(t, http.MethodPost, base+"/approve", f.admin, nil)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, "95", f.balance(t, p.ID).String())
	})

	t.Run("acta en PDF", func(t *testing.T) {
		resp := f.do(t, http.MethodGet, base+"/report.pdf", f.verifier, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
		defer resp.Body.Close()
		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(raw, []byte("%PDF")))
	})
}

func TestAPI_RejectRequiresReason(t *testing.T) {
	f := newAPI(t)
	p := f.createProduct(t, "Herbicida", "4")

	resp := f.do(t, http.MethodPost, "/api/verifications", f.verifier, map[string]string{"notes": "cierre de mes"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	session := decode[dto.VerificationResponse](t, resp)
	base := "/api/verifications/" + session.ID

	resp = f.do(t, http.MethodPost, base+"/counts", f.verifier, map[string]any{"product_id": p.ID, "counted_quantity": "4"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = f.do(t, http.MethodPost, base+"/submit", f.verifier, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodPost, base+"/reject", f.admin, map[string]string{"reason": ""})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = f.do(t, http.MethodPost, base+"/reject", f.admin, map[string]string{"reason": "conteo incompleto en bodega 2"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, entity.SessionStateRejected, decode[dto.VerificationResponse](t, resp).State)
	assert.Equal(t, "4", f.balance(t, p.ID).String())
}

func TestAPI_ValuationMonthly(t *testing.T) {
	f := newAPI(t)
	f.createProduct(t, "Urea", "10")

	resp := f.do(t, http.MethodGet, "/api/valuation/monthly", f.verifier, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary := decode[dto.ValuationSummaryDTO](t, resp)
	assert.Equal(t, "10000", summary.CurrentValuation.String())
	assert.True(t, summary.Approximate)
	assert.Len(t, summary.Buckets, 12)

	resp = f.do(t, http.MethodGet, "/api/valuation/monthly?from=2025-06-01&to=2025-01-01", f.verifier, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}
