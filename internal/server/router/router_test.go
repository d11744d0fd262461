package router

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/mamadbah2/warehouse/internal/metrics"
	"github.com/mamadbah2/warehouse/internal/repository/sessions"
	"github.com/mamadbah2/warehouse/internal/repository/sqlstore"
	"github.com/mamadbah2/warehouse/internal/server/handlers"
	"github.com/mamadbah2/warehouse/internal/service/inventory"
	"github.com/mamadbah2/warehouse/internal/service/shipment"
)

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	ctx := context.Background()

	store, err := sqlstore.NewSQLRepository(ctx, sqlstore.DriverSQLite, ":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(ctx) })
	require.NoError(t, store.Migrate(ctx))

	recorder := metrics.New()
	stock := handlers.NewStockHandler(inventory.NewService(store, nil, recorder, zap.NewNop()), zap.NewNop())
	shipments := handlers.NewShipmentHandler(
		shipment.NewService(store, sessions.NewMemoryStore(), recorder, zap.NewNop()),
		time.UTC,
		zap.NewNop(),
	)
	return New(stock, shipments, recorder.Handler(), zap.NewNop())
}

func do(t *testing.T, r http.Handler, method, path, session string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&reader).Encode(body))
	}
	req := httptest.NewRequest(method, path, &reader)
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.Header.Set(handlers.SessionHeader, session)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func receive(t *testing.T, r http.Handler, partition string, rows ...map[string]interface{}) []string {
	t.Helper()
	w := do(t, r, http.MethodPost, "/api/stock/"+partition+"/receipts", "", map[string]interface{}{"rows": rows})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var result inventory.ReceiptResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	ids := make([]string, 0, len(result.Items))
	for _, item := range result.Items {
		ids = append(ids, item.ID)
	}
	return ids
}

func TestReceiveSelectAndShip(t *testing.T) {
	r := setupRouter(t)
	ids := receive(t, r, "IP", map[string]interface{}{"barcode": "111", "quantity": 20, "box_number": "K1"})

	w := do(t, r, http.MethodPost, "/api/cart/IP/items", "s1", map[string]interface{}{"ids": ids})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s1", w.Header().Get(handlers.SessionHeader))

	w = do(t, r, http.MethodPost, "/api/cart/IP/dialog", "s1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["dialog_open"])

	w = do(t, r, http.MethodPost, "/api/cart/IP/manifest", "s1", map[string]interface{}{
		"shipper_name": "Ivanov", "ship_destination": "Warehouse B", "ship_date": "2024-01-10",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "shipment_IP_20240110.xlsx")

	w = do(t, r, http.MethodPost, "/api/cart/IP/commit", "s1", map[string]interface{}{
		"shipper_name": "Ivanov", "ship_destination": "Warehouse B", "ship_date": "2024-01-10",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, r, http.MethodGet, "/api/stock/IP", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["items"])

	w = do(t, r, http.MethodGet, "/api/archive/IP?q=ivanov", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["items"], 1)

	w = do(t, r, http.MethodGet, "/api/cart/IP", "s1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	cart := decode(t, w)
	assert.Empty(t, cart["ids"])
	assert.Equal(t, float64(1), cart["reset_counter"])
}

func TestCommit_RejectsMissingShipper(t *testing.T) {
	r := setupRouter(t)
	ids := receive(t, r, "IP", map[string]interface{}{"barcode": "111", "quantity": 1})

	do(t, r, http.MethodPost, "/api/cart/IP/items", "s1", map[string]interface{}{"ids": ids})
	w := do(t, r, http.MethodPost, "/api/cart/IP/commit", "s1", map[string]interface{}{"ship_destination": "B"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/api/cart/IP/commit", "s1", map[string]interface{}{
		"shipper_name": "Ivanov", "ship_destination": "B", "ship_date": "10.01.2024",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDelete_ConfirmationPhrase(t *testing.T) {
	r := setupRouter(t)
	ids := receive(t, r, "OOO", map[string]interface{}{"barcode": "111", "quantity": 1})

	w := do(t, r, http.MethodPost, "/api/stock/OOO/delete", "", map[string]interface{}{"ids": ids, "confirmation": "yes"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "УДАЛИТЬ", decode(t, w)["expected"])

	w = do(t, r, http.MethodPost, "/api/stock/OOO/delete", "", map[string]interface{}{"ids": ids, "confirmation": "удалить"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["deleted"])
}

func TestReceive_BadRowAndPartition(t *testing.T) {
	r := setupRouter(t)

	w := do(t, r, http.MethodPost, "/api/stock/IP/receipts", "", map[string]interface{}{
		"rows": []map[string]interface{}{{"barcode": "111", "quantity": 1}, {"barcode": "222", "quantity": -2}},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["row"])

	w = do(t, r, http.MethodGet, "/api/stock/LLC", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReceive_QuantityMustBePresentAndNumeric(t *testing.T) {
	r := setupRouter(t)

	w := do(t, r, http.MethodPost, "/api/stock/IP/receipts", "", map[string]interface{}{
		"rows": []map[string]interface{}{{"barcode": "111", "box_number": "K1"}},
	})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, float64(1), decode(t, w)["row"])

	w = do(t, r, http.MethodPost, "/api/stock/IP/receipts", "", map[string]interface{}{
		"rows": []map[string]interface{}{
			{"barcode": "111", "quantity": 1, "box_number": "K1"},
			{"barcode": "222", "quantity": "abc", "box_number": "K1"},
		},
	})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, float64(2), decode(t, w)["row"])

	w = do(t, r, http.MethodPost, "/api/stock/IP/receipts", "", map[string]interface{}{
		"rows": []map[string]interface{}{{"barcode": "111", "quantity": nil}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodGet, "/api/stock/IP", "", nil)
	assert.Empty(t, decode(t, w)["items"], "a rejected batch stores nothing")
}

func TestReceive_AcceptsQuantityAsText(t *testing.T) {
	r := setupRouter(t)

	w := do(t, r, http.MethodPost, "/api/stock/IP/receipts", "", map[string]interface{}{
		"rows": []map[string]interface{}{{"barcode": "111", "quantity": "2,5", "box_number": "K1"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var result inventory.ReceiptResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	require.Len(t, result.Items, 1)
	assert.Equal(t, 2.5, result.Items[0].Quantity)
}

func TestUploadReceipt(t *testing.T) {
	r := setupRouter(t)

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Баркод", "Количество", "Короб"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"4601234567890", 20, "K1"}))
	workbook, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "receipt.xlsx")
	require.NoError(t, err)
	_, err = part.Write(workbook.Bytes())
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/stock/000/receipts/upload", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, r, http.MethodGet, "/api/stock/OOO", "", nil)
	items := decode(t, w)["items"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, "4601234567890", items[0].(map[string]interface{})["barcode"])
}

func TestSessionHeaderIsIssued(t *testing.T) {
	r := setupRouter(t)

	w := do(t, r, http.MethodGet, "/api/cart/IP", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(handlers.SessionHeader))
}

func TestHealthAndMetrics(t *testing.T) {
	r := setupRouter(t)

	assert.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/healthz", "", nil).Code)

	receive(t, r, "IP", map[string]interface{}{"barcode": "111", "quantity": 1})
	w := do(t, r, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "warehouse_")
}
