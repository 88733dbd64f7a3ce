package router

import (
	"github.com/erp/warehouse/internal/interfaces/http/handler"
)

// Handlers are the HTTP handlers of the warehouse API. A nil Outbox leaves
// the outbox administration routes unregistered.
type Handlers struct {
	System    *handler.SystemHandler
	Product   *handler.ProductHandler
	Receiving *handler.ReceivingHandler
	Picking   *handler.PickingHandler
	StockTake *handler.StockTakeHandler
	Inventory *handler.InventoryHandler
	Serial    *handler.SerialHandler
	Outbox    *handler.OutboxHandler
}

// RegisterWarehouseRoutes adds the domain groups of the warehouse API to r
func RegisterWarehouseRoutes(r *Router, h Handlers) *Router {
	health := NewDomainGroup("health", "/health")
	health.GET("", h.System.Health)

	system := NewDomainGroup("system", "/system")
	system.GET("/info", h.System.GetSystemInfo)
	system.GET("/ping", h.System.Ping)
	if h.Outbox != nil {
		system.Group("outbox", "/outbox").
			GET("/stats", h.Outbox.GetStats).
			GET("/dead", h.Outbox.GetDeadLetterEntries).
			POST("/dead/retry-all", h.Outbox.RetryAllDeadEntries).
			GET("/:id", h.Outbox.GetEntry).
			POST("/:id/retry", h.Outbox.RetryDeadEntry)
	}

	products := NewDomainGroup("products", "/products").
		PUT("/:id", h.Product.Upsert).
		GET("/:id", h.Product.GetByID)

	receivings := NewDomainGroup("receivings", "/receivings").
		POST("", h.Receiving.Create).
		GET("/:id", h.Receiving.GetByID).
		PUT("/details/:detailId/provisional", h.Receiving.RecordProvisional).
		POST("/details/:detailId/finalize", h.Receiving.Finalize)

	picking := NewDomainGroup("picking", "/picking-orders").
		POST("", h.Picking.Create).
		GET("/:id", h.Picking.GetByID).
		POST("/:id/items", h.Picking.AddItem).
		PUT("/:id/items/:detailId", h.Picking.UpdateItem).
		DELETE("/:id/items/:detailId", h.Picking.DeleteItem).
		POST("/:id/complete", h.Picking.Complete).
		POST("/:id/cancel", h.Picking.Cancel)

	stockTakes := NewDomainGroup("stock-takes", "/stock-takes").
		POST("", h.StockTake.Create).
		GET("/:id", h.StockTake.GetByID).
		POST("/:id/submit", h.StockTake.Submit).
		POST("/:id/review", h.StockTake.Review).
		POST("/:id/complete", h.StockTake.Complete).
		POST("/:id/cancel", h.StockTake.Cancel)

	inventory := NewDomainGroup("inventory", "/inventory").
		GET("/summary", h.Inventory.GetSummary).
		GET("/movements", h.Inventory.GetMovements).
		GET("/products/:productId/lots", h.Inventory.GetLots).
		GET("/products/:productId/consistency", h.Inventory.VerifyConsistency)

	serials := NewDomainGroup("serials", "/serials").
		GET("/:serialNumber", h.Inventory.GetSerial).
		POST("/:serialNumber/issues", h.Serial.ReportIssue)

	return r.Register(health).
		Register(system).
		Register(products).
		Register(receivings).
		Register(picking).
		Register(stockTakes).
		Register(inventory).
		Register(serials)
}
