package handler

import (
	"strconv"

	inventoryapp "github.com/erp/warehouse/internal/application/inventory"
	"github.com/gin-gonic/gin"
)

// InventoryHandler serves read-only views over the ledger, lots and serials
type InventoryHandler struct {
	BaseHandler
	queryService *inventoryapp.QueryService
}

// NewInventoryHandler creates a new InventoryHandler
func NewInventoryHandler(queryService *inventoryapp.QueryService) *InventoryHandler {
	return &InventoryHandler{queryService: queryService}
}

// GetSummary returns beginning, movement totals and ending balance per product.
// GET /inventory/summary
func (h *InventoryHandler) GetSummary(c *gin.Context) {
	var filter inventoryapp.SummaryFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	summary, err := h.queryService.GetSummary(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// GetMovements lists ledger entries.
// GET /inventory/movements
func (h *InventoryHandler) GetMovements(c *gin.Context) {
	var filter inventoryapp.MovementFilter
	if !h.bindQuery(c, &filter) {
		return
	}
	entries, err := h.queryService.GetMovements(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entries)
}

// GetLots lists the lots of a product in FIFO order.
// GET /inventory/products/:productId/lots
func (h *InventoryHandler) GetLots(c *gin.Context) {
	productID, ok := h.pathID(c, "productId")
	if !ok {
		return
	}
	includeDepleted := false
	if raw := c.Query("include_depleted"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			h.BadRequest(c, "include_depleted must be a boolean")
			return
		}
		includeDepleted = v
	}
	lots, err := h.queryService.GetLots(c.Request.Context(), productID, includeDepleted)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, lots)
}

// VerifyConsistency checks the ledger chain of a product against its lots.
// GET /inventory/products/:productId/consistency
func (h *InventoryHandler) VerifyConsistency(c *gin.Context) {
	productID, ok := h.pathID(c, "productId")
	if !ok {
		return
	}
	report, err := h.queryService.VerifyConsistency(c.Request.Context(), productID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// GetSerial returns one serial.
// GET /serials/:serialNumber
func (h *InventoryHandler) GetSerial(c *gin.Context) {
	serial, err := h.queryService.GetSerial(c.Request.Context(), c.Param("serialNumber"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, serial)
}
