package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/attendance-backend/internal/platform/apierr"
)

// RespondErr maps err to its HTTP status and code. Internal errors hide their message.
func RespondErr(c *gin.Context, err error) {
	ae := apierr.From(err)
	if ae == nil {
		RespondError(c, http.StatusInternalServerError, "internal", nil)
		return
	}
	if ae.Status >= http.StatusInternalServerError && ae.Status != http.StatusServiceUnavailable {
		_ = c.Error(err)
		c.JSON(ae.Status, ErrorEnvelope{Error: APIError{Message: "internal error", Code: ae.Code}})
		return
	}
	RespondError(c, ae.Status, ae.Code, ae.Err)
}
