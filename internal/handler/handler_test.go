package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/bakery-pos/internal/domain/auth"
	"github.com/xenking/bakery-pos/internal/domain/catalog"
	"github.com/xenking/bakery-pos/internal/domain/discount"
	"github.com/xenking/bakery-pos/internal/domain/order"
	"github.com/xenking/bakery-pos/internal/domain/order/ordertest"
	"github.com/xenking/bakery-pos/internal/domain/payment"
	"github.com/xenking/bakery-pos/internal/domain/pricing"
	"github.com/xenking/bakery-pos/internal/domain/pricing/pricingtest"
	"github.com/xenking/bakery-pos/internal/handler"
)

const (
	testKey    = "till-7-secret"
	testPepper = "pepper"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

// --- Mock implementations ---

type mockAPIKeyRepo struct {
	keys map[string]*auth.APIKeyInfo
	err  error
}

func (m *mockAPIKeyRepo) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	info, ok := m.keys[hash]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return info, nil
}

type memPayments struct {
	mu      sync.Mutex
	byOrder map[string][]payment.Payment
}

func (m *memPayments) Create(_ context.Context, p *payment.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byOrder[p.OrderID] = append(m.byOrder[p.OrderID], *p)
	return nil
}

func (m *memPayments) Latest(_ context.Context, orderID string) (*payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ps := m.byOrder[orderID]
	if len(ps) == 0 {
		return nil, payment.ErrNotFound
	}
	p := ps[len(ps)-1]
	return &p, nil
}

// --- Helpers ---

type fixture struct {
	orders *ordertest.Repository
	keys   *mockAPIKeyRepo
	router http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	prices := pricingtest.NewCatalog(
		catalog.Price{ID: 1, ProductName: "Croissant", SizeName: "M", UnitPrice: decimal.NewFromInt(50000), Active: true},
		catalog.Price{ID: 2, ProductName: "Baguette", SizeName: "L", UnitPrice: decimal.NewFromInt(30000), Active: true},
	)
	discounts := pricingtest.NewDiscounts(discount.Definition{
		ID: 10, Name: "Ten", CouponCode: "TEN",
		Percent: decimal.NewFromInt(10), MinOrderValue: decimal.NewFromInt(100000), MaxDiscount: decimal.NewFromInt(10000),
		Active: true, ValidUntil: testNow.Add(time.Hour),
	})
	evaluator := discount.NewEvaluator(discounts).WithClock(func() time.Time { return testNow })
	engine, err := pricing.NewEngine(catalog.NewPricer(prices), evaluator, pricing.EngineOptions{})
	require.NoError(t, err)

	f := &fixture{
		orders: ordertest.NewRepository(),
		keys: &mockAPIKeyRepo{keys: map[string]*auth.APIKeyInfo{
			auth.HashHex([]byte(testPepper), testKey): {
				ID:      "till-7",
				KeyHash: auth.HashHex([]byte(testPepper), testKey),
				Name:    "Till 7",
			},
		}},
	}
	orderSvc := order.NewService(engine, f.orders)
	paymentSvc := payment.NewService(orderSvc, &memPayments{byOrder: map[string][]payment.Payment{}})

	r := chi.NewRouter()
	handler.NewHandler(orderSvc, paymentSvc).
		Register(r, handler.NewSecurityHandler(f.keys, []byte(testPepper)))
	f.router = r
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(handler.APIKeyHeader, testKey)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	dec := json.NewDecoder(w.Body)
	dec.UseNumber()
	var m map[string]any
	require.NoError(t, dec.Decode(&m), "body: %s", w.Body.String())
	return m
}

func (f *fixture) createOrder(t *testing.T) map[string]any {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/orders", `{
		"employee_id": 7,
		"note": "table 4",
		"lines": [
			{"price_id": 1, "quantity": 2, "note": "warm"},
			{"price_id": 2, "quantity": 1}
		],
		"discounts": [{"coupon_code": "ten"}]
	}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeBody(t, w)
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, code int, reason string) {
	t.Helper()
	assert.Equal(t, code, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	body := decodeBody(t, w)
	assert.Equal(t, json.Number(strconv.Itoa(code)), body["code"])
	assert.Equal(t, reason, body["reason"])
	assert.NotEmpty(t, body["message"])
}

// --- Tests ---

func TestSecurity(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		key  string
	}{
		{name: "Missing", key: ""},
		{name: "Unknown", key: "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
			if tt.key != "" {
				req.Header.Set(handler.APIKeyHeader, tt.key)
			}
			w := httptest.NewRecorder()
			f.router.ServeHTTP(w, req)
			assertError(t, w, http.StatusUnauthorized, "unauthorized")
		})
	}

	t.Run("StoredHashMismatch", func(t *testing.T) {
		f := newFixture(t)
		for _, info := range f.keys.keys {
			info.KeyHash = auth.HashHex([]byte("other"), testKey)
		}
		assertError(t, f.do(t, http.MethodGet, "/api/orders", ""), http.StatusUnauthorized, "unauthorized")
	})

	t.Run("LookupFailure", func(t *testing.T) {
		f := newFixture(t)
		f.keys.err = errors.New("db down")
		assertError(t, f.do(t, http.MethodGet, "/api/orders", ""), http.StatusUnauthorized, "unauthorized")
	})
}

func TestQuote(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/quotes", `{
		"lines": [{"price_id": 1, "quantity": 2}, {"price_id": 2, "quantity": 1}],
		"discounts": [{"coupon_code": "TEN"}]
	}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeBody(t, w)
	assert.Equal(t, json.Number("130000.00"), body["subtotal"])
	assert.Equal(t, json.Number("10000.00"), body["total_discount"])
	assert.Equal(t, json.Number("120000.00"), body["final_amount"])
	assert.Len(t, body["fingerprint"], 64)

	lines := body["lines"].([]any)
	require.Len(t, lines, 2)
	first := lines[0].(map[string]any)
	assert.Equal(t, "Croissant", first["product_name"])
	assert.Equal(t, json.Number("50000.00"), first["unit_price"])
	assert.Equal(t, json.Number("100000.00"), first["total"])

	discounts := body["discounts"].([]any)
	require.Len(t, discounts, 1)
	d := discounts[0].(map[string]any)
	assert.Equal(t, json.Number("10"), d["discount_id"])
	assert.Equal(t, json.Number("10.0"), d["percent"])
	assert.Equal(t, json.Number("10000.00"), d["amount"])

	assert.Zero(t, f.orders.Writes, "quotes are never persisted")
}

func TestQuote_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		code   int
		reason string
	}{
		{
			name:   "MalformedJSON",
			body:   `{"lines": [`,
			code:   http.StatusBadRequest,
			reason: "request_invalid",
		},
		{
			name:   "EmptyBody",
			body:   ``,
			code:   http.StatusBadRequest,
			reason: "request_invalid",
		},
		{
			name:   "NoLines",
			body:   `{"lines": []}`,
			code:   http.StatusBadRequest,
			reason: "lines_empty",
		},
		{
			name:   "ZeroQuantity",
			body:   `{"lines": [{"price_id": 1, "quantity": 0}]}`,
			code:   http.StatusBadRequest,
			reason: "quantity_invalid",
		},
		{
			name:   "QuantityOverflow",
			body:   `{"lines": [{"price_id": 1, "quantity": 5000000000}]}`,
			code:   http.StatusBadRequest,
			reason: "quantity_invalid",
		},
		{
			name:   "TooManyLines",
			body:   `{"lines": [` + strings.TrimSuffix(strings.Repeat(`{"price_id": 1, "quantity": 1},`, 201), ",") + `]}`,
			code:   http.StatusBadRequest,
			reason: "request_invalid",
		},
		{
			name:   "NoteTooLong",
			body:   `{"lines": [{"price_id": 1, "quantity": 1, "note": "` + strings.Repeat("x", 256) + `"}]}`,
			code:   http.StatusBadRequest,
			reason: "request_invalid",
		},
		{
			name:   "UnknownPrice",
			body:   `{"lines": [{"price_id": 99, "quantity": 1}]}`,
			code:   http.StatusNotFound,
			reason: "price_reference",
		},
		{
			name:   "UnknownCoupon",
			body:   `{"lines": [{"price_id": 1, "quantity": 3}], "discounts": [{"coupon_code": "NOPE"}]}`,
			code:   http.StatusNotFound,
			reason: "discount",
		},
		{
			name:   "MinimumNotMet",
			body:   `{"lines": [{"price_id": 2, "quantity": 1}], "discounts": [{"discount_id": 10}]}`,
			code:   http.StatusUnprocessableEntity,
			reason: "discount_minimum_not_met",
		},
		{
			name:   "AmbiguousDiscount",
			body:   `{"lines": [{"price_id": 1, "quantity": 3}], "discounts": [{"discount_id": 10, "coupon_code": "TEN"}]}`,
			code:   http.StatusBadRequest,
			reason: "discount_request_invalid",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			assertError(t, f.do(t, http.MethodPost, "/api/quotes", tt.body), tt.code, tt.reason)
		})
	}
}

func TestValidationNamesField(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/quotes",
		`{"lines": [{"price_id": 1, "quantity": 1, "note": "`+strings.Repeat("x", 256)+`"}]}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeBody(t, w)["message"], "lines[0].note")
}

func TestOrderLifecycle(t *testing.T) {
	f := newFixture(t)
	created := f.createOrder(t)

	id, _ := created["id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "PROCESSING", created["status"])
	assert.Equal(t, json.Number("7"), created["employee_id"])
	assert.Nil(t, created["customer_id"])
	assert.Equal(t, json.Number("120000.00"), created["final_amount"])
	assert.NotEmpty(t, created["pricing_digest"])

	t.Run("Get", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/orders/"+id, "")
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, id, body["id"])
		assert.Equal(t, created["pricing_digest"], body["pricing_digest"])
	})

	t.Run("List", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/orders?status=PROCESSING&limit=5", "")
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, json.Number("1"), body["count"])
	})

	t.Run("RepriceReevaluatesDiscounts", func(t *testing.T) {
		w := f.do(t, http.MethodPatch, "/api/orders/"+id, `{"lines": [{"price_id": 2, "quantity": 1}]}`)
		assertError(t, w, http.StatusUnprocessableEntity, "discount_minimum_not_met")
	})

	t.Run("RepriceQuantityOverflow", func(t *testing.T) {
		w := f.do(t, http.MethodPatch, "/api/orders/"+id, `{"lines": [{"price_id": 1, "quantity": 5000000000}]}`)
		assertError(t, w, http.StatusBadRequest, "quantity_invalid")
	})

	t.Run("RepriceAndDropDiscounts", func(t *testing.T) {
		w := f.do(t, http.MethodPatch, "/api/orders/"+id,
			`{"lines": [{"price_id": 2, "quantity": 1}], "discounts": [], "customer_id": 42}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		body := decodeBody(t, w)
		assert.Equal(t, json.Number("30000.00"), body["subtotal"])
		assert.Equal(t, json.Number("0.00"), body["total_discount"])
		assert.Equal(t, json.Number("30000.00"), body["final_amount"])
		assert.Empty(t, body["discounts"])
		assert.Equal(t, json.Number("42"), body["customer_id"])
		assert.NotEqual(t, created["pricing_digest"], body["pricing_digest"])
	})

	t.Run("ClearCustomer", func(t *testing.T) {
		w := f.do(t, http.MethodPatch, "/api/orders/"+id, `{"customer_id": null}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Nil(t, decodeBody(t, w)["customer_id"])
	})

	t.Run("Complete", func(t *testing.T) {
		w := f.do(t, http.MethodPatch, "/api/orders/"+id, `{"status": "COMPLETED"}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "COMPLETED", decodeBody(t, w)["status"])

		w = f.do(t, http.MethodPatch, "/api/orders/"+id, `{"lines": [{"price_id": 1, "quantity": 1}]}`)
		assertError(t, w, http.StatusUnprocessableEntity, "order_not_editable")
	})

	t.Run("Delete", func(t *testing.T) {
		w := f.do(t, http.MethodDelete, "/api/orders/"+id, "")
		require.Equal(t, http.StatusNoContent, w.Code)

		assertError(t, f.do(t, http.MethodGet, "/api/orders/"+id, ""), http.StatusNotFound, "order")
		assertError(t, f.do(t, http.MethodDelete, "/api/orders/"+id, ""), http.StatusNotFound, "order")
	})
}

func TestCreateOrder_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		code   int
		reason string
	}{
		{
			name:   "MissingEmployee",
			body:   `{"lines": [{"price_id": 1, "quantity": 1}]}`,
			code:   http.StatusBadRequest,
			reason: "employee_required",
		},
		{
			name:   "UnknownStatus",
			body:   `{"employee_id": 1, "status": "BAKING", "lines": [{"price_id": 1, "quantity": 1}]}`,
			code:   http.StatusBadRequest,
			reason: "status_invalid",
		},
		{
			name:   "QuantityOverflow",
			body:   `{"employee_id": 1, "lines": [{"price_id": 1, "quantity": 5000000000}]}`,
			code:   http.StatusBadRequest,
			reason: "quantity_invalid",
		},
		{
			name:   "NegativeCustomer",
			body:   `{"employee_id": 1, "customer_id": -1, "lines": [{"price_id": 1, "quantity": 1}]}`,
			code:   http.StatusBadRequest,
			reason: "request_invalid",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			assertError(t, f.do(t, http.MethodPost, "/api/orders", tt.body), tt.code, tt.reason)
		})
	}
}

func TestCreateOrder_StorageFailure(t *testing.T) {
	f := newFixture(t)
	f.orders.Err = errors.New("connection reset")

	w := f.do(t, http.MethodPost, "/api/orders", `{"employee_id": 1, "lines": [{"price_id": 1, "quantity": 1}]}`)

	assertError(t, w, http.StatusInternalServerError, "internal")
	assert.NotContains(t, w.Body.String(), "connection reset")
}

func TestListOrders_BadQuery(t *testing.T) {
	f := newFixture(t)

	assertError(t, f.do(t, http.MethodGet, "/api/orders?limit=abc", ""), http.StatusBadRequest, "request_invalid")
	assertError(t, f.do(t, http.MethodGet, "/api/orders?offset=-1", ""), http.StatusBadRequest, "request_invalid")
	assertError(t, f.do(t, http.MethodGet, "/api/orders?status=BAKING", ""), http.StatusBadRequest, "status_invalid")
}

func TestPaymentAndInvoice(t *testing.T) {
	f := newFixture(t)
	id := f.createOrder(t)["id"].(string)

	t.Run("InvoiceBeforePayment", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/orders/"+id+"/invoice", "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		body := decodeBody(t, w)
		assert.Nil(t, body["settlement"])
		assert.Equal(t, json.Number("120000.00"), body["due"])
	})

	t.Run("Record", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/orders/"+id+"/payments",
			`{"method": "CASH", "amount_paid": 150000, "paid_at": "2025-06-15T12:30:00Z"}`)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		body := decodeBody(t, w)
		assert.Equal(t, id, body["order_id"])
		assert.Equal(t, "PAID", body["status"])
		assert.Equal(t, json.Number("150000.00"), body["amount_paid"])
		assert.Equal(t, json.Number("30000.00"), body["change"])
		assert.Equal(t, "2025-06-15T12:30:00Z", body["paid_at"])
	})

	t.Run("InvoiceAfterPayment", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/api/orders/"+id+"/invoice", "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		body := decodeBody(t, w)

		assert.Equal(t, json.Number("130000.00"), body["subtotal"])
		assert.Equal(t, json.Number("0.00"), body["due"])
		settlement := body["settlement"].(map[string]any)
		assert.Equal(t, "CASH", settlement["method"])

		lines := body["lines"].([]any)
		require.Len(t, lines, 2)
		assert.Equal(t, "Croissant (M)", lines[0].(map[string]any)["description"])
		assert.Equal(t, "warm", lines[0].(map[string]any)["note"])
	})

	t.Run("Errors", func(t *testing.T) {
		assertError(t, f.do(t, http.MethodPost, "/api/orders/"+id+"/payments", `{"method": "CHEQUE", "amount_paid": 1}`),
			http.StatusBadRequest, "payment_method_invalid")
		assertError(t, f.do(t, http.MethodPost, "/api/orders/"+id+"/payments", `{"method": "CARD", "amount_paid": "-1"}`),
			http.StatusBadRequest, "amount_paid_invalid")
		assertError(t, f.do(t, http.MethodPost, "/api/orders/"+id+"/payments", `{"amount_paid": 1}`),
			http.StatusBadRequest, "request_invalid")
		assertError(t, f.do(t, http.MethodPost, "/api/orders/missing/payments", `{"method": "CARD", "amount_paid": 1}`),
			http.StatusNotFound, "order")
		assertError(t, f.do(t, http.MethodGet, "/api/orders/missing/invoice", ""),
			http.StatusNotFound, "order")
	})
}
