package handler

import (
	"net/http"

	inventoryapp "github.com/erp/warehouse/internal/application/inventory"
	"github.com/gin-gonic/gin"
)

// PickingHandler serves picking orders. Adding, changing and deleting items
// allocate and reverse stock immediately.
type PickingHandler struct {
	BaseHandler
	pickingService *inventoryapp.PickingService
}

// NewPickingHandler creates a new PickingHandler
func NewPickingHandler(pickingService *inventoryapp.PickingService) *PickingHandler {
	return &PickingHandler{pickingService: pickingService}
}

// Create opens a picking order.
// POST /picking-orders
func (h *PickingHandler) Create(c *gin.Context) {
	var req inventoryapp.CreatePickingOrderRequest
	if !h.bindJSON(c, &req) {
		return
	}
	order, err := h.pickingService.Create(c.Request.Context(), req, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, order)
}

// GetByID returns an order with details, allocations and serials.
// GET /picking-orders/:id
func (h *PickingHandler) GetByID(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	order, err := h.pickingService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// AddItem picks a quantity of a product FIFO across its lots.
// POST /picking-orders/:id/items
func (h *PickingHandler) AddItem(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.AddPickingItemRequest
	if !h.bindJSON(c, &req) {
		return
	}
	detail, err := h.pickingService.AddItem(c.Request.Context(), id, req, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, detail)
}

// UpdateItem reverses a detail and picks the new quantity.
// PUT /picking-orders/:id/items/:detailId
func (h *PickingHandler) UpdateItem(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	detailID, ok := h.pathID(c, "detailId")
	if !ok {
		return
	}
	var req inventoryapp.UpdatePickingItemRequest
	if !h.bindJSON(c, &req) {
		return
	}
	detail, err := h.pickingService.UpdateItem(c.Request.Context(), id, detailID, req, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, detail)
}

// DeleteItem reverses a detail and removes it.
// DELETE /picking-orders/:id/items/:detailId
func (h *PickingHandler) DeleteItem(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	detailID, ok := h.pathID(c, "detailId")
	if !ok {
		return
	}
	if err := h.pickingService.DeleteItem(c.Request.Context(), id, detailID, actor(c)); err != nil {
		h.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Complete closes the order.
// POST /picking-orders/:id/complete
func (h *PickingHandler) Complete(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	order, err := h.pickingService.Complete(c.Request.Context(), id, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// Cancel reverses every detail and cancels the order.
// POST /picking-orders/:id/cancel
func (h *PickingHandler) Cancel(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	order, err := h.pickingService.Cancel(c.Request.Context(), id, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}
