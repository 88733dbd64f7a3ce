package handler

import (
	inventoryapp "github.com/erp/warehouse/internal/application/inventory"
	"github.com/gin-gonic/gin"
)

// SerialHandler records issues on serials after they were picked
type SerialHandler struct {
	BaseHandler
	damageService *inventoryapp.DamageService
}

// NewSerialHandler creates a new SerialHandler
func NewSerialHandler(damageService *inventoryapp.DamageService) *SerialHandler {
	return &SerialHandler{damageService: damageService}
}

// ReportIssue marks a picked serial as damaged or lost.
// POST /serials/:serialNumber/issues
func (h *SerialHandler) ReportIssue(c *gin.Context) {
	var req inventoryapp.ReportSerialIssueRequest
	if !h.bindJSON(c, &req) {
		return
	}
	serial, err := h.damageService.ReportSerialIssue(c.Request.Context(), c.Param("serialNumber"), req, actor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, serial)
}
