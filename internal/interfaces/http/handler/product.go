package handler

import (
	inventoryapp "github.com/erp/warehouse/internal/application/inventory"
	"github.com/gin-gonic/gin"
)

// ProductHandler serves the local product reference rows
type ProductHandler struct {
	BaseHandler
	productService *inventoryapp.ProductService
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(productService *inventoryapp.ProductService) *ProductHandler {
	return &ProductHandler{productService: productService}
}

// Upsert mirrors a catalog product.
// PUT /products/:id
func (h *ProductHandler) Upsert(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.UpsertProductRequest
	if !h.bindJSON(c, &req) {
		return
	}

	product, err := h.productService.Upsert(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, product)
}

// GetByID returns one product.
// GET /products/:id
func (h *ProductHandler) GetByID(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	product, err := h.productService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, product)
}
