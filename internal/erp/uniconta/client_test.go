package uniconta_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"billrecon/internal/config"
	"billrecon/internal/domain"
	"billrecon/internal/erp/uniconta"
	"billrecon/internal/port"
)

type recorded struct {
	Method string
	Path   string
	Auth   string
	Body   []byte
}

func newServer(t *testing.T, handler func(r recorded) (int, any)) (*uniconta.Client, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rec := recorded{Method: r.Method, Path: r.URL.Path, Auth: r.Header.Get("Authorization"), Body: body}
		calls = append(calls, rec)
		status, out := handler(rec)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if out != nil {
			_ = json.NewEncoder(w).Encode(out)
		}
	}))
	t.Cleanup(srv.Close)

	client := uniconta.NewClient(&config.ERPConfig{BaseURL: srv.URL + "/api/Entities/", APIToken: "tok", TimeoutSecs: 5}, zap.NewNop())
	return client, &calls
}

func TestClient_LoadDebtors(t *testing.T) {
	client, calls := newServer(t, func(r recorded) (int, any) {
		return http.StatusOK, []map[string]any{
			{"Account": "10001", "Name": "Acme", "LegalIdent": "DK12345678"},
		}
	})

	rows, err := client.LoadDebtors(context.Background())

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "10001", rows[0].String("Account"))

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, http.MethodPost, call.Method)
	assert.Equal(t, "/api/Entities/Query/Get/DebtorClient", call.Path)
	assert.Equal(t, "Bearer tok", call.Auth)

	var filters []map[string]any
	require.NoError(t, json.Unmarshal(call.Body, &filters))
	require.Len(t, filters, 1)
	assert.Equal(t, "Account", filters[0]["PropertyName"])
	assert.Equal(t, "", filters[0]["FilterValue"])
	assert.EqualValues(t, 0, filters[0]["Take"])
}

func TestClient_LoadDebtors_StatusError(t *testing.T) {
	client, _ := newServer(t, func(r recorded) (int, any) {
		return http.StatusUnauthorized, map[string]string{"error": "bad token"}
	})

	_, err := client.LoadDebtors(context.Background())

	var statusErr *uniconta.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "bad token")
}

func TestClient_FindOrders_FiltersByAccount(t *testing.T) {
	client, calls := newServer(t, func(r recorded) (int, any) {
		return http.StatusOK, []map[string]any{{"OrderNumber": 555, "Account": "10001"}}
	})

	orders, err := client.FindOrders(context.Background(), "10001")

	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "555", orders[0].String("OrderNumber"))

	var filters []map[string]any
	require.NoError(t, json.Unmarshal((*calls)[0].Body, &filters))
	assert.Equal(t, "10001", filters[0]["FilterValue"])
	assert.Equal(t, "/api/Entities/Query/Get/DebtorOrderClient", (*calls)[0].Path)
}

func TestClient_CreateOrder(t *testing.T) {
	client, calls := newServer(t, func(r recorded) (int, any) {
		return http.StatusOK, map[string]any{"OrderNumber": 9001}
	})
	debtor := &domain.Debtor{Fields: domain.Record{"Account": "10001", "Name": "Acme"}}

	number, err := client.CreateOrder(context.Background(), debtor, port.OrderMetadata{
		YourRef: "API-ORDER-001", InvoiceDate: "2024-02-01", Simulate: true,
	})

	require.NoError(t, err)
	assert.Equal(t, "9001", number)

	call := (*calls)[0]
	assert.Equal(t, "/api/Entities/Crud/Insert/DebtorOrderClient", call.Path)
	var body map[string]any
	require.NoError(t, json.Unmarshal(call.Body, &body))
	assert.Equal(t, "10001", body["Account"])
	assert.Equal(t, "API-ORDER-001", body["YourRef"])
	assert.Equal(t, "2024-02-01", body["InvoiceDate"])
	assert.Equal(t, true, body["Simulate"])
}

func TestClient_CreateOrder_InvoiceNumberFallback(t *testing.T) {
	client, _ := newServer(t, func(r recorded) (int, any) {
		return http.StatusOK, map[string]any{"invoiceNumber": "INV-7"}
	})

	number, err := client.CreateOrder(context.Background(), &domain.Debtor{Fields: domain.Record{"Account": "1"}}, port.OrderMetadata{})

	require.NoError(t, err)
	assert.Equal(t, "INV-7", number)
}

func TestClient_CreateOrder_InvalidNumber(t *testing.T) {
	client, _ := newServer(t, func(r recorded) (int, any) {
		return http.StatusOK, map[string]any{"OrderNumber": "Invalid"}
	})

	_, err := client.CreateOrder(context.Background(), &domain.Debtor{Fields: domain.Record{"Account": "1"}}, port.OrderMetadata{})

	assert.ErrorIs(t, err, uniconta.ErrInvalidOrderNumber)
}

func TestClient_SubmitLines(t *testing.T) {
	client, calls := newServer(t, func(r recorded) (int, any) {
		return http.StatusOK, nil
	})
	lines := []port.OrderLine{
		{OrderNumber: "9001", Item: "CFTEST", Text: "Keepit M365", Qty: 3, Total: 29.85},
	}

	require.NoError(t, client.SubmitLines(context.Background(), "9001", lines))

	call := (*calls)[0]
	assert.Equal(t, "/api/Entities/Crud/InsertList/DebtorOrderLineClient", call.Path)
	var sent []port.OrderLine
	require.NoError(t, json.Unmarshal(call.Body, &sent))
	assert.Equal(t, lines, sent)
}

func TestClient_SubmitLines_EmptyIsNoop(t *testing.T) {
	client, calls := newServer(t, func(r recorded) (int, any) {
		return http.StatusOK, nil
	})

	require.NoError(t, client.SubmitLines(context.Background(), "9001", nil))
	assert.Empty(t, *calls)
}

func TestClient_ListOrdersByRef(t *testing.T) {
	client, _ := newServer(t, func(r recorded) (int, any) {
		return http.StatusOK, []map[string]any{
			{"OrderNumber": 1, "YourRef": "API-ORDER-001"},
			{"OrderNumber": 2, "YourRef": "manual"},
			{"OrderNumber": 3, "YourRef": "API-ORDER-001"},
		}
	})

	orders, err := client.ListOrdersByRef(context.Background(), "API-ORDER-001")

	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "3", orders[1].String("OrderNumber"))
}

func TestClient_DeleteOrders(t *testing.T) {
	client, calls := newServer(t, func(r recorded) (int, any) {
		return http.StatusOK, nil
	})

	err := client.DeleteOrders(context.Background(), []domain.Record{{"OrderNumber": "1", "RowId": 10}})

	require.NoError(t, err)
	call := (*calls)[0]
	assert.Equal(t, http.MethodDelete, call.Method)
	assert.Equal(t, "/api/Entities/Crud/DeleteList/DebtorOrderClient", call.Path)
	assert.JSONEq(t, `[{"OrderNumber":"1","RowId":10}]`, string(call.Body))
}
