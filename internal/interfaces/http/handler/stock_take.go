package handler

import (
	"context"

	inventoryapp "github.com/erp/warehouse/internal/application/inventory"
	"github.com/gin-gonic/gin"
)

// StockTakeHandler serves stock-take documents through their approval flow
type StockTakeHandler struct {
	BaseHandler
	stockTakeService *inventoryapp.StockTakeService
}

// NewStockTakeHandler creates a new StockTakeHandler
func NewStockTakeHandler(stockTakeService *inventoryapp.StockTakeService) *StockTakeHandler {
	return &StockTakeHandler{stockTakeService: stockTakeService}
}

// Create opens a draft stock-take.
// POST /stock-takes
func (h *StockTakeHandler) Create(c *gin.Context) {
	var req inventoryapp.CreateStockTakeRequest
	if !h.bindJSON(c, &req) {
		return
	}
	stockTake, err := h.stockTakeService.Create(c.Request.Context(), req, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, stockTake)
}

// GetByID returns a stock-take with its lines.
// GET /stock-takes/:id
func (h *StockTakeHandler) GetByID(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	stockTake, err := h.stockTakeService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stockTake)
}

// Submit moves a draft to review.
// POST /stock-takes/:id/submit
func (h *StockTakeHandler) Submit(c *gin.Context) {
	h.transition(c, h.stockTakeService.Submit)
}

// Review approves or rejects a pending stock-take.
// POST /stock-takes/:id/review
func (h *StockTakeHandler) Review(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.ReviewStockTakeRequest
	if !h.bindJSON(c, &req) {
		return
	}
	stockTake, err := h.stockTakeService.Review(c.Request.Context(), id, req, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stockTake)
}

// Complete posts the approved differences to the ledger.
// POST /stock-takes/:id/complete
func (h *StockTakeHandler) Complete(c *gin.Context) {
	h.transition(c, h.stockTakeService.Complete)
}

// Cancel abandons a stock-take that has not been completed.
// POST /stock-takes/:id/cancel
func (h *StockTakeHandler) Cancel(c *gin.Context) {
	h.transition(c, h.stockTakeService.Cancel)
}

func (h *StockTakeHandler) transition(c *gin.Context, fn func(ctx context.Context, id int64, actor string) (*inventoryapp.StockTakeResponse, error)) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	stockTake, err := fn(c.Request.Context(), id, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stockTake)
}
