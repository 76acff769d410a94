package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrobles/orders-intake/internal/domain/order"
	"github.com/mrobles/orders-intake/internal/storage/memory"
)

// Response types are defined locally so the tests exercise the wire format,
// not the internal encoders.

type orderCreatedBody struct {
	ID          int64   `json:"id"`
	ExternalID  string  `json:"external_id"`
	Total       float64 `json:"total"`
	IsVIP       bool    `json:"is_vip"`
	ArrivalDate string  `json:"arrival_date"`
}

type reportRowBody struct {
	CustomerEmail    string  `json:"customer_email"`
	TotalOrders      int     `json:"total_orders"`
	TotalAmountSpent float64 `json:"total_amount_spent"`
	IsVIP            string  `json:"is_vip"`
	ArrivalDate      string  `json:"arrival_date"`
}

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint"`
}

func newTestServer() *httptest.Server {
	svc := order.NewService(memory.NewOrderRepository())
	return httptest.NewServer(New(svc).Routes())
}

func postOrder(t *testing.T, ts *httptest.Server, payload string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+"/orders", "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

const validPayload = `{
	"external_id": "X1",
	"customer": {"email": "a@b.com", "name": "Ada", "client_id": "C-1"},
	"items": [{"sku": "S1", "quantity": 2, "price_unit": 50.0}],
	"date": "2024-01-01T00:00:00Z"
}`

func TestCreateOrder_Created(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	resp := postOrder(t, ts, validPayload)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody[orderCreatedBody](t, resp)
	assert.Equal(t, int64(1), body.ID)
	assert.Equal(t, "X1", body.ExternalID)
	assert.InDelta(t, 100.0, body.Total, 0.001)
	assert.False(t, body.IsVIP)
	assert.Equal(t, "2024-01-06T00:00:00Z", body.ArrivalDate)
}

func TestCreateOrder_VIPShortensArrival(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	payload := `{
		"external_id": "X9",
		"customer": {"email": "a@b.com", "name": "Ada", "client_id": "C-1"},
		"items": [{"sku": "S1", "quantity": 1, "price_unit": 300.01}],
		"date": "2024-01-01T00:00:00Z"
	}`
	resp := postOrder(t, ts, payload)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody[orderCreatedBody](t, resp)
	assert.True(t, body.IsVIP)
	assert.Equal(t, "2024-01-04T00:00:00Z", body.ArrivalDate)
}

func TestCreateOrder_DuplicateExternalID(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	resp := postOrder(t, ts, validPayload)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = postOrder(t, ts, validPayload)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	body := decodeBody[errorBody](t, resp)
	assert.Equal(t, http.StatusConflict, body.Code)
	assert.Contains(t, body.Message, "X1")
}

func TestCreateOrder_Validation(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{
			name:    "malformed json",
			payload: `{"external_id": `,
		},
		{
			name: "empty external_id",
			payload: `{"external_id": "", "customer": {"email": "a@b.com", "name": "Ada", "client_id": "C-1"},
				"items": [{"sku": "S1", "quantity": 1, "price_unit": 1}], "date": "2024-01-01T00:00:00Z"}`,
		},
		{
			name: "invalid email",
			payload: `{"external_id": "X1", "customer": {"email": "not-an-email", "name": "Ada", "client_id": "C-1"},
				"items": [{"sku": "S1", "quantity": 1, "price_unit": 1}], "date": "2024-01-01T00:00:00Z"}`,
		},
		{
			name: "no items",
			payload: `{"external_id": "X1", "customer": {"email": "a@b.com", "name": "Ada", "client_id": "C-1"},
				"items": [], "date": "2024-01-01T00:00:00Z"}`,
		},
		{
			name: "zero quantity",
			payload: `{"external_id": "X1", "customer": {"email": "a@b.com", "name": "Ada", "client_id": "C-1"},
				"items": [{"sku": "S1", "quantity": 0, "price_unit": 1}], "date": "2024-01-01T00:00:00Z"}`,
		},
		{
			name: "negative price",
			payload: `{"external_id": "X1", "customer": {"email": "a@b.com", "name": "Ada", "client_id": "C-1"},
				"items": [{"sku": "S1", "quantity": 1, "price_unit": -1}], "date": "2024-01-01T00:00:00Z"}`,
		},
		{
			name: "missing date",
			payload: `{"external_id": "X1", "customer": {"email": "a@b.com", "name": "Ada", "client_id": "C-1"},
				"items": [{"sku": "S1", "quantity": 1, "price_unit": 1}]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer()
			defer ts.Close()

			resp := postOrder(t, ts, tt.payload)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		})
	}
}

func TestCustomerReport_Formatting(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	orders := []string{
		`{"external_id": "X1", "customer": {"email": "a@b.com", "name": "Ada", "client_id": "C-1"},
			"items": [{"sku": "S1", "quantity": 1, "price_unit": 100.0}], "date": "2024-01-01T00:00:00Z"}`,
		`{"external_id": "X2", "customer": {"email": "a@b.com", "name": "Ada", "client_id": "C-1"},
			"items": [{"sku": "S2", "quantity": 1, "price_unit": 250.0}], "date": "2024-02-01T00:00:00Z"}`,
		`{"external_id": "X3", "customer": {"email": "z@b.com", "name": "Zed", "client_id": "C-2"},
			"items": [{"sku": "S3", "quantity": 1, "price_unit": 10.0}], "date": "2024-01-01T00:00:00Z"}`,
	}
	for _, payload := range orders {
		resp := postOrder(t, ts, payload)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		resp.Body.Close()
	}

	resp, err := http.Get(ts.URL + "/orders/report")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	rows := decodeBody[[]reportRowBody](t, resp)
	require.Len(t, rows, 2)

	a := rows[0]
	assert.Equal(t, "a@b.com", a.CustomerEmail)
	assert.Equal(t, 2, a.TotalOrders)
	assert.InDelta(t, 350.0, a.TotalAmountSpent, 0.001)
	assert.Equal(t, "True", a.IsVIP)
	assert.Equal(t, "2024-02-06T00:00:00Z", a.ArrivalDate)

	z := rows[1]
	assert.Equal(t, "z@b.com", z.CustomerEmail)
	assert.Equal(t, "False", z.IsVIP)
}

func TestCustomerReport_Empty(t *testing.T) {
	ts := newTestServer()
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/orders/report")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	rows := decodeBody[[]reportRowBody](t, resp)
	assert.Empty(t, rows)
}

// failingRepo simulates an unreachable store.
type failingRepo struct{}

func (failingRepo) ExternalIDExists(context.Context, string) (bool, error) {
	return false, order.Infrastructure(errors.New("connection refused"), "check external id")
}

func (failingRepo) SaveOrder(context.Context, *order.Order) (int64, error) {
	return 0, order.Infrastructure(errors.New("connection refused"), "save order")
}

func (failingRepo) CustomerReport(context.Context) ([]order.ReportRow, error) {
	return nil, order.Infrastructure(errors.New("connection refused"), "customer report")
}

func TestCreateOrder_StorageUnavailable(t *testing.T) {
	ts := httptest.NewServer(New(order.NewService(failingRepo{})).Routes())
	defer ts.Close()

	resp := postOrder(t, ts, validPayload)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	body := decodeBody[errorBody](t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, body.Code)
	assert.NotContains(t, body.Message, "connection refused")
	assert.NotEmpty(t, body.Hint)
}

func TestCustomerReport_StorageUnavailable(t *testing.T) {
	ts := httptest.NewServer(New(order.NewService(failingRepo{})).Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/orders/report")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
