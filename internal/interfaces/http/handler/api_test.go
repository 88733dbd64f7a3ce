package handler_test

import (
	"net/http"
	"testing"

	appinv "github.com/erp/warehouse/internal/application/inventory"
	"github.com/erp/warehouse/internal/infrastructure/logger"
	"github.com/erp/warehouse/internal/interfaces/http/dto"
	"github.com/erp/warehouse/internal/interfaces/http/handler"
	"github.com/erp/warehouse/internal/interfaces/http/middleware"
	"github.com/erp/warehouse/internal/interfaces/http/router"
	"github.com/erp/warehouse/tests/testutil"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAPI(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()

	stack := testutil.NewStack(t, testutil.NewSQLiteDB(t))
	log := zap.NewNop()
	opts := appinv.DefaultOptions()
	metrics := appinv.NopMetrics()

	engine := gin.New()
	engine.Use(logger.GinMiddleware(log), middleware.Actor(), middleware.BodyLimit(1<<20))
	h := router.Handlers{
		System:    handler.NewSystemHandler("warehouse", "test", nil),
		Product:   handler.NewProductHandler(appinv.NewProductService(stack.Scope, opts, metrics, log)),
		Receiving: handler.NewReceivingHandler(appinv.NewReceivingService(stack.Scope, opts, metrics, log)),
		Picking:   handler.NewPickingHandler(appinv.NewPickingService(stack.Scope, opts, metrics, log)),
		StockTake: handler.NewStockTakeHandler(appinv.NewStockTakeService(stack.Scope, opts, metrics, log)),
		Inventory: handler.NewInventoryHandler(appinv.NewQueryService(stack.Scope, metrics, log)),
		Serial:    handler.NewSerialHandler(appinv.NewDamageService(stack.Scope, opts, metrics, log)),
	}
	router.RegisterWarehouseRoutes(router.NewRouter(engine), h).Setup()
	return engine
}

var alice = map[string]string{middleware.ActorHeader: "alice"}

func createProduct(t *testing.T, api *gin.Engine, id string, serialTracked bool) {
	t.Helper()
	w := testutil.DoJSON(t, api, http.MethodPut, "/api/v1/products/"+id, map[string]any{
		"code": "SKU-" + id, "name": "Widget", "unit": "pcs", "serial_tracked": serialTracked,
	}, nil)
	testutil.RequireSuccess[appinv.ProductResponse](t, w, http.StatusOK)
}

func receive(t *testing.T, api *gin.Engine, productID int64, qty, price string) appinv.FinalizeReceivingDetailResponse {
	t.Helper()
	w := testutil.DoJSON(t, api, http.MethodPost, "/api/v1/receivings", map[string]any{
		"partner_id": 9,
		"lines":      []map[string]any{{"product_id": productID, "ordered_quantity": qty, "unit_price": price}},
	}, alice)
	rcv := testutil.RequireSuccess[appinv.ReceivingResponse](t, w, http.StatusCreated)
	require.Len(t, rcv.Details, 1)

	w = testutil.DoJSON(t, api, http.MethodPost,
		"/api/v1/receivings/details/"+itoa(rcv.Details[0].ID)+"/finalize",
		map[string]any{"accepted_quantity": qty}, alice)
	return testutil.RequireSuccess[appinv.FinalizeReceivingDetailResponse](t, w, http.StatusOK)
}

func itoa(id int64) string { return decimal.NewFromInt(id).String() }

func TestProductEndpoints(t *testing.T) {
	api := newAPI(t)

	createProduct(t, api, "1", false)

	w := testutil.DoJSON(t, api, http.MethodGet, "/api/v1/products/1", nil, nil)
	product := testutil.RequireSuccess[appinv.ProductResponse](t, w, http.StatusOK)
	assert.Equal(t, "SKU-1", product.Code)

	w = testutil.DoJSON(t, api, http.MethodGet, "/api/v1/products/2", nil, nil)
	testutil.AssertErrorResponse(t, w, http.StatusNotFound, dto.ErrCodeNotFound)

	w = testutil.DoJSON(t, api, http.MethodGet, "/api/v1/products/abc", nil, nil)
	testutil.AssertErrorResponse(t, w, http.StatusBadRequest, dto.ErrCodeBadRequest)

	w = testutil.DoJSON(t, api, http.MethodPut, "/api/v1/products/3", map[string]any{"name": "No code"}, nil)
	apiErr := testutil.AssertErrorResponse(t, w, http.StatusBadRequest, dto.ErrCodeValidation)
	assert.Contains(t, string(apiErr.Details), `"field":"code"`)
}

func TestReceiveAndPickOverHTTP(t *testing.T) {
	api := newAPI(t)
	createProduct(t, api, "1", false)

	received := receive(t, api, 1, "10", "100")
	require.NotNil(t, received.LedgerEntry)
	assert.Equal(t, "alice", received.LedgerEntry.UserID)

	w := testutil.DoJSON(t, api, http.MethodPost, "/api/v1/picking-orders", map[string]any{}, alice)
	order := testutil.RequireSuccess[appinv.PickingOrderResponse](t, w, http.StatusCreated)
	itemsPath := "/api/v1/picking-orders/" + itoa(order.ID) + "/items"

	w = testutil.DoJSON(t, api, http.MethodPost, itemsPath, map[string]any{"product_id": 1, "quantity": "4"}, alice)
	detail := testutil.RequireSuccess[appinv.PickingDetailResponse](t, w, http.StatusCreated)
	assert.True(t, detail.QuantityPicked.Equal(decimal.NewFromInt(4)))

	t.Run("insufficient stock carries requested and available", func(t *testing.T) {
		w := testutil.DoJSON(t, api, http.MethodPost, itemsPath, map[string]any{"product_id": 1, "quantity": "7"}, alice)
		apiErr := testutil.AssertErrorResponse(t, w, http.StatusUnprocessableEntity, dto.ErrCodeInsufficientStock)
		assert.JSONEq(t, `{"product_id":1,"requested":"7","available":"6"}`, string(apiErr.Details))
	})

	t.Run("quantity must be positive", func(t *testing.T) {
		w := testutil.DoJSON(t, api, http.MethodPost, itemsPath, map[string]any{"product_id": 1, "quantity": "0"}, alice)
		testutil.AssertErrorResponse(t, w, http.StatusBadRequest, dto.ErrCodeValidation)
	})

	t.Run("malformed body", func(t *testing.T) {
		w := testutil.DoJSON(t, api, http.MethodPost, itemsPath, `{"product_id": 1, "quantity": `, alice)
		testutil.AssertErrorResponse(t, w, http.StatusBadRequest, dto.ErrCodeInvalidJSON)
	})

	t.Run("update and delete reverse the detail", func(t *testing.T) {
		detailPath := itemsPath + "/" + itoa(detail.ID)
		w := testutil.DoJSON(t, api, http.MethodPut, detailPath, map[string]any{"quantity": "6"}, alice)
		updated := testutil.RequireSuccess[appinv.PickingDetailResponse](t, w, http.StatusOK)
		assert.True(t, updated.QuantityPicked.Equal(decimal.NewFromInt(6)))

		w = testutil.DoJSON(t, api, http.MethodDelete, detailPath, nil, alice)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("queries", func(t *testing.T) {
		w := testutil.DoJSON(t, api, http.MethodGet, "/api/v1/inventory/summary?product_id=1", nil, nil)
		summary := testutil.RequireSuccess[[]appinv.SummaryResponse](t, w, http.StatusOK)
		require.Len(t, summary, 1)
		assert.True(t, summary[0].EndingBalance.Equal(decimal.NewFromInt(10)))

		w = testutil.DoJSON(t, api, http.MethodGet, "/api/v1/inventory/movements?product_id=1&type=OUT", nil, nil)
		movements := testutil.RequireSuccess[[]appinv.LedgerEntryResponse](t, w, http.StatusOK)
		assert.NotEmpty(t, movements)

		w = testutil.DoJSON(t, api, http.MethodGet, "/api/v1/inventory/movements?type=SIDEWAYS", nil, nil)
		testutil.AssertErrorResponse(t, w, http.StatusBadRequest, dto.ErrCodeValidation)

		w = testutil.DoJSON(t, api, http.MethodGet, "/api/v1/inventory/products/1/lots?include_depleted=true", nil, nil)
		lots := testutil.RequireSuccess[[]appinv.LotResponse](t, w, http.StatusOK)
		require.Len(t, lots, 1)

		w = testutil.DoJSON(t, api, http.MethodGet, "/api/v1/inventory/products/1/lots?include_depleted=maybe", nil, nil)
		testutil.AssertErrorResponse(t, w, http.StatusBadRequest, dto.ErrCodeBadRequest)

		w = testutil.DoJSON(t, api, http.MethodGet, "/api/v1/inventory/products/1/consistency", nil, nil)
		report := testutil.RequireSuccess[appinv.ConsistencyReport](t, w, http.StatusOK)
		assert.True(t, report.Consistent)
	})

	t.Run("completed orders reject edits", func(t *testing.T) {
		w := testutil.DoJSON(t, api, http.MethodPost, "/api/v1/picking-orders/"+itoa(order.ID)+"/complete", nil, alice)
		testutil.RequireSuccess[appinv.PickingOrderResponse](t, w, http.StatusOK)

		w = testutil.DoJSON(t, api, http.MethodPost, itemsPath, map[string]any{"product_id": 1, "quantity": "1"}, alice)
		testutil.AssertErrorResponse(t, w, http.StatusUnprocessableEntity, dto.ErrCodeInvalidState)
	})
}

func TestStockTakeOverHTTP(t *testing.T) {
	api := newAPI(t)
	createProduct(t, api, "1", false)
	receive(t, api, 1, "6", "10")

	w := testutil.DoJSON(t, api, http.MethodPost, "/api/v1/stock-takes", map[string]any{
		"lines": []map[string]any{{"product_id": 1, "actual_quantity": "3"}},
	}, alice)
	st := testutil.RequireSuccess[appinv.StockTakeResponse](t, w, http.StatusCreated)
	base := "/api/v1/stock-takes/" + itoa(st.ID)

	w = testutil.DoJSON(t, api, http.MethodPost, base+"/complete", nil, alice)
	testutil.AssertErrorResponse(t, w, http.StatusUnprocessableEntity, dto.ErrCodeInvalidState)

	w = testutil.DoJSON(t, api, http.MethodPost, base+"/submit", nil, alice)
	st = testutil.RequireSuccess[appinv.StockTakeResponse](t, w, http.StatusOK)
	assert.Equal(t, "PENDING", st.Status)

	w = testutil.DoJSON(t, api, http.MethodPost, base+"/review", map[string]any{"approve": true}, map[string]string{middleware.ActorHeader: "bob"})
	st = testutil.RequireSuccess[appinv.StockTakeResponse](t, w, http.StatusOK)
	assert.Equal(t, "bob", st.ReviewedBy)

	w = testutil.DoJSON(t, api, http.MethodPost, base+"/complete", nil, alice)
	st = testutil.RequireSuccess[appinv.StockTakeResponse](t, w, http.StatusOK)
	assert.Equal(t, "COMPLETED", st.Status)

	w = testutil.DoJSON(t, api, http.MethodGet, base, nil, nil)
	st = testutil.RequireSuccess[appinv.StockTakeResponse](t, w, http.StatusOK)
	assert.True(t, st.Details[0].Variance.Equal(decimal.NewFromInt(-3)))

	w = testutil.DoJSON(t, api, http.MethodPost, base+"/cancel", nil, alice)
	testutil.AssertErrorResponse(t, w, http.StatusUnprocessableEntity, dto.ErrCodeInvalidState)
}

func TestSerialIssueOverHTTP(t *testing.T) {
	api := newAPI(t)
	createProduct(t, api, "1", true)
	received := receive(t, api, 1, "1", "500")
	require.Len(t, received.SerialNumbers, 1)
	sn := received.SerialNumbers[0]

	w := testutil.DoJSON(t, api, http.MethodPost, "/api/v1/serials/"+sn+"/issues", map[string]any{"status": "DAMAGED"}, alice)
	testutil.AssertErrorResponse(t, w, http.StatusConflict, dto.ErrCodeSerialNotAvailable)

	w = testutil.DoJSON(t, api, http.MethodPost, "/api/v1/picking-orders", map[string]any{}, alice)
	order := testutil.RequireSuccess[appinv.PickingOrderResponse](t, w, http.StatusCreated)
	w = testutil.DoJSON(t, api, http.MethodPost, "/api/v1/picking-orders/"+itoa(order.ID)+"/items",
		map[string]any{"product_id": 1, "quantity": "1", "serial_numbers": []string{sn}}, alice)
	testutil.RequireSuccess[appinv.PickingDetailResponse](t, w, http.StatusCreated)

	w = testutil.DoJSON(t, api, http.MethodPost, "/api/v1/serials/"+sn+"/issues", map[string]any{"status": "BROKEN"}, alice)
	testutil.AssertErrorResponse(t, w, http.StatusBadRequest, dto.ErrCodeValidation)

	w = testutil.DoJSON(t, api, http.MethodPost, "/api/v1/serials/"+sn+"/issues", map[string]any{"status": "DAMAGED"}, alice)
	testutil.AssertErrorResponse(t, w, http.StatusUnprocessableEntity, dto.ErrCodeInvalidState)

	w = testutil.DoJSON(t, api, http.MethodPost, "/api/v1/picking-orders/"+itoa(order.ID)+"/complete", nil, alice)
	testutil.RequireSuccess[appinv.PickingOrderResponse](t, w, http.StatusOK)

	w = testutil.DoJSON(t, api, http.MethodPost, "/api/v1/serials/"+sn+"/issues", map[string]any{"status": "DAMAGED", "reason": "screen"}, alice)
	serial := testutil.RequireSuccess[appinv.SerialResponse](t, w, http.StatusOK)
	assert.Equal(t, "DAMAGED", serial.Status)

	w = testutil.DoJSON(t, api, http.MethodGet, "/api/v1/serials/"+sn, nil, nil)
	serial = testutil.RequireSuccess[appinv.SerialResponse](t, w, http.StatusOK)
	assert.Equal(t, "DAMAGED", serial.Status)
}
