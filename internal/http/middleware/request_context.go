package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/bloomie-backend/internal/platform/ctxutil"
)

const headerUserID = "X-User-Id"

// AttachRequestContext copies the gateway-asserted caller id into the request context.
// A missing or malformed header leaves the request anonymous.
func AttachRequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(headerUserID))
		if raw == "" {
			c.Next()
			return
		}
		if id, err := uuid.Parse(raw); err == nil {
			ctx := ctxutil.WithRequestData(c.Request.Context(), &ctxutil.RequestData{UserID: id})
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}
