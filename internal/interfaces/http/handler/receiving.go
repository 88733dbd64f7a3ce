package handler

import (
	inventoryapp "github.com/erp/warehouse/internal/application/inventory"
	"github.com/gin-gonic/gin"
)

// ReceivingHandler serves receiving documents. Finalizing a detail is the
// only receiving operation that moves stock.
type ReceivingHandler struct {
	BaseHandler
	receivingService *inventoryapp.ReceivingService
}

// NewReceivingHandler creates a new ReceivingHandler
func NewReceivingHandler(receivingService *inventoryapp.ReceivingService) *ReceivingHandler {
	return &ReceivingHandler{receivingService: receivingService}
}

// Create opens a receiving with provisional details.
// POST /receivings
func (h *ReceivingHandler) Create(c *gin.Context) {
	var req inventoryapp.CreateReceivingRequest
	if !h.bindJSON(c, &req) {
		return
	}
	receiving, err := h.receivingService.Create(c.Request.Context(), req, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, receiving)
}

// GetByID returns a receiving with its details.
// GET /receivings/:id
func (h *ReceivingHandler) GetByID(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	receiving, err := h.receivingService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, receiving)
}

// RecordProvisional stores a preliminary count for a detail.
// PUT /receivings/details/:detailId/provisional
func (h *ReceivingHandler) RecordProvisional(c *gin.Context) {
	detailID, ok := h.pathID(c, "detailId")
	if !ok {
		return
	}
	var req inventoryapp.RecordProvisionalRequest
	if !h.bindJSON(c, &req) {
		return
	}
	receiving, err := h.receivingService.RecordProvisionalQuantity(c.Request.Context(), detailID, req, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, receiving)
}

// Finalize accepts stock into a new lot and records damage.
// POST /receivings/details/:detailId/finalize
func (h *ReceivingHandler) Finalize(c *gin.Context) {
	detailID, ok := h.pathID(c, "detailId")
	if !ok {
		return
	}
	var req inventoryapp.FinalizeReceivingDetailRequest
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := h.receivingService.FinalizeDetail(c.Request.Context(), detailID, req, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
