package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"xhunt-server/middleware"
	"xhunt-server/models"
	"xhunt-server/types"
)

// callerFrom returns the authenticated user or aborts with 401. The auth
// middleware always sets it, so a miss means the route was wired without it.
func callerFrom(c *gin.Context, log *zap.Logger) (*models.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		middleware.AbortWithError(c, log, types.NewError(types.ErrUnauthorized, "Authentication required"))
		return nil, false
	}
	return user, true
}

func (h *NotificationHandler) caller(c *gin.Context) (*models.User, bool) {
	return callerFrom(c, h.log)
}
