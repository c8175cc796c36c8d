package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-paystack-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-paystack-orderflow/internal/orders"
	"github.com/imrishuroy/go-paystack-orderflow/internal/payments"
	"github.com/imrishuroy/go-paystack-orderflow/internal/paystack"
)

const webhookSecret = "sk_test_webhook"

type testAPI struct {
	router  *gin.Engine
	orders  *memOrders
	idem    *memIdempotency
	gateway *stubGateway
	logs    *bytes.Buffer
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, nil))
	api := &testAPI{
		logs:    logs,
		router:  gin.New(),
		orders:  newMemOrders(),
		idem:    newMemIdempotency(),
		gateway: newStubGateway(),
	}
	svc := payments.NewService(payments.Config{
		Orders:          api.orders,
		Gateway:         api.gateway,
		Logger:          logger,
		CallbackURL:     "https://shop.example.com/payment/success",
		DefaultCurrency: "NGN",
		WebhookSecret:   webhookSecret,
	})
	RegisterRoutes(api.router, Deps{
		Orders:          api.orders,
		Idempotency:     api.idem,
		Payments:        svc,
		Logger:          logger,
		DefaultCurrency: "NGN",
	})
	return api
}

func (a *testAPI) do(method, path, user string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(UserIDHeader, user)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) webhook(body []byte, signature string) *httptest.ResponseRecorder {
	return a.do(http.MethodPost, "/webhook", "", body, map[string]string{paystack.SignatureHeader: signature})
}

const checkoutBody = `{
	"email": "ada@example.com",
	"items": [{"productId": "p1", "quantity": 2, "unitPrice": "7500.00"}],
	"amount": "15000.00",
	"shippingAddress": {"fullName": "Ada Obi", "street": "1 Marina", "city": "Lagos", "country": "NG"},
	"paymentMethod": "card"
}`

func checkout(t *testing.T, a *testAPI, user, key string) string {
	t.Helper()
	w := a.do(http.MethodPost, "/orders", user, []byte(checkoutBody), map[string]string{"Idempotency-Key": key})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp["order_id"].(string)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t)
	w := a.do(http.MethodGet, "/health", "", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestCreateOrder(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(http.MethodPost, "/orders", "U1", []byte(checkoutBody), map[string]string{"Idempotency-Key": "k1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode(t, w)
	id := resp["order_id"].(string)
	assert.Equal(t, "/orders/"+id, w.Header().Get("Location"))
	assert.Equal(t, "15000.00", resp["amount"])
	assert.Equal(t, "NGN", resp["currency"])

	o, err := a.orders.Get(t.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, "U1", o.UserID)
	assert.Equal(t, int64(1500000), o.Amount)
	assert.Equal(t, orders.PaymentPending, o.PaymentStatus)
	assert.Equal(t, []orders.LineItem{{ProductID: "p1", Quantity: 2, UnitPrice: 750000}}, o.Items)
}

func TestCreateOrder_ReplayReturnsStoredResponse(t *testing.T) {
	a := newTestAPI(t)
	headers := map[string]string{"Idempotency-Key": "k1"}

	first := a.do(http.MethodPost, "/orders", "U1", []byte(checkoutBody), headers)
	second := a.do(http.MethodPost, "/orders", "U1", []byte(checkoutBody), headers)

	require.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, a.orders.count())

	// same key from another user is a different checkout
	third := a.do(http.MethodPost, "/orders", "U2", []byte(checkoutBody), headers)
	assert.Equal(t, http.StatusCreated, third.Code)
	assert.Equal(t, 2, a.orders.count())
}

func TestCreateOrder_InProgress(t *testing.T) {
	a := newTestAPI(t)
	_, _ = a.idem.CreateIfNotExists(t.Context(), idempotency.CheckoutKey("U1", "k1"), "reserved")

	w := a.do(http.MethodPost, "/orders", "U1", []byte(checkoutBody), map[string]string{"Idempotency-Key": "k1"})
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "reserved", decode(t, w)["order_id"])
}

func TestCreateOrder_RetriesFailedAttempt(t *testing.T) {
	a := newTestAPI(t)
	_, _ = a.idem.CreateIfNotExists(t.Context(), idempotency.CheckoutKey("U1", "k1"), "reserved")
	_ = a.idem.MarkFailed(t.Context(), idempotency.CheckoutKey("U1", "k1"), "boom")

	w := a.do(http.MethodPost, "/orders", "U1", []byte(checkoutBody), map[string]string{"Idempotency-Key": "k1"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "reserved", decode(t, w)["order_id"])

	rec, _ := a.idem.Get(t.Context(), idempotency.CheckoutKey("U1", "k1"))
	assert.Equal(t, idempotency.StatusDone, rec.Status)
}

func TestCreateOrder_CreateFailureMarksKeyFailed(t *testing.T) {
	a := newTestAPI(t)
	a.orders.createErr = errors.New("table unavailable")
	headers := map[string]string{"Idempotency-Key": "k1"}

	w := a.do(http.MethodPost, "/orders", "U1", []byte(checkoutBody), headers)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	rec, _ := a.idem.Get(t.Context(), idempotency.CheckoutKey("U1", "k1"))
	require.NotNil(t, rec)
	assert.Equal(t, idempotency.StatusFailed, rec.Status)

	a.orders.createErr = nil
	w = a.do(http.MethodPost, "/orders", "U1", []byte(checkoutBody), headers)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestCreateOrder_MarkFailedErrorIsLogged(t *testing.T) {
	a := newTestAPI(t)
	a.orders.createErr = errors.New("table unavailable")
	a.idem.failedErr = errors.New("throttled")

	w := a.do(http.MethodPost, "/orders", "U1", []byte(checkoutBody), map[string]string{"Idempotency-Key": "k1"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, a.logs.String(), "idempotency mark failed failed")
	assert.Contains(t, a.logs.String(), "throttled")
}

func TestCreateOrder_Rejects(t *testing.T) {
	mismatch := bytes.Replace([]byte(checkoutBody), []byte(`"amount": "15000.00"`), []byte(`"amount": "14000.00"`), 1)
	subKobo := bytes.Replace(
		bytes.Replace([]byte(checkoutBody), []byte(`"7500.00"`), []byte(`"7500.005"`), 1),
		[]byte(`"15000.00"`), []byte(`"15000.01"`), 1)

	tests := []struct {
		name   string
		user   string
		key    string
		body   []byte
		status int
	}{
		{"no session", "", "k1", []byte(checkoutBody), http.StatusUnauthorized},
		{"no idempotency key", "U1", "", []byte(checkoutBody), http.StatusBadRequest},
		{"total mismatch", "U1", "k1", mismatch, http.StatusBadRequest},
		{"sub-kobo price", "U1", "k1", subKobo, http.StatusBadRequest},
		{"not json", "U1", "k1", []byte(`{`), http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := newTestAPI(t)
			headers := map[string]string{}
			if tc.key != "" {
				headers["Idempotency-Key"] = tc.key
			}
			w := a.do(http.MethodPost, "/orders", tc.user, tc.body, headers)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
			assert.Zero(t, a.orders.count())
		})
	}
}

func TestGetOrder(t *testing.T) {
	a := newTestAPI(t)
	id := checkout(t, a, "U1", "k1")

	w := a.do(http.MethodGet, "/orders/"+id, "U1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, decode(t, w)["id"])

	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/orders/"+id, "U2", nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/orders/nope", "U1", nil, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/orders/"+id, "", nil, nil).Code)
}
