package middleware

import (
	"strings"

	"github.com/erp/warehouse/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
)

// ActorHeader names the user performing the request. It is recorded on
// every ledger entry and document the request creates.
const ActorHeader = "X-User-ID"

// maxActorLength matches the user_id / created_by columns
const maxActorLength = 100

// Actor copies the acting user from ActorHeader into the request context
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := strings.TrimSpace(c.GetHeader(ActorHeader))
		if len(actor) > maxActorLength {
			actor = actor[:maxActorLength]
		}
		if actor != "" {
			c.Request = c.Request.WithContext(logger.WithActor(c.Request.Context(), actor))
		}
		c.Next()
	}
}

// GetActor returns the acting user of the request, or "" when none was sent
func GetActor(c *gin.Context) string {
	return logger.GetActor(c.Request.Context())
}
