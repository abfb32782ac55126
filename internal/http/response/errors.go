package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/bloomie-backend/internal/platform/apierr"
)

// RespondAPIError writes a typed API error; anything else becomes a 500.
func RespondAPIError(c *gin.Context, err error) {
	if ae, ok := apierr.As(err); ok {
		status := ae.Status
		if status == 0 {
			status = http.StatusInternalServerError
		}
		RespondError(c, status, ae.Code, ae.Err)
		return
	}
	RespondError(c, http.StatusInternalServerError, "internal_error", err)
}
