package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"xhunt-server/middleware"
	"xhunt-server/services"
	"xhunt-server/types"
	ws "xhunt-server/websocket"
)

// Actions accepted by POST /api/notifications.
const (
	actionCreate      = "create"
	actionMarkRead    = "mark-read"
	actionMarkAllRead = "mark-all-read"
	actionArchive     = "archive"
)

// NotificationHandler serves /api/notifications.
type NotificationHandler struct {
	notifications *services.NotificationService
	hub           *ws.Hub
	log           *zap.Logger
}

func NewNotificationHandler(notifications *services.NotificationService, hub *ws.Hub, log *zap.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, hub: hub, log: log}
}

// RegisterNotificationRoutes registers notification routes
func RegisterNotificationRoutes(router *gin.RouterGroup, h *NotificationHandler, auth *middleware.Authenticator) {
	router.GET("/notifications/ws", auth.WebSocketAuthMiddleware(), h.Stream)

	notifications := router.Group("/notifications", auth.AuthMiddleware())
	{
		notifications.GET("", h.List)
		notifications.POST("", h.Post)
		notifications.PUT("", h.Update)
		notifications.DELETE("", h.Delete)
	}
}

// List handles GET /api/notifications.
func (h *NotificationHandler) List(c *gin.Context) {
	user, ok := h.caller(c)
	if !ok {
		return
	}

	filter, err := h.notifications.ParseListFilter(c.Query("type"), c.Query("read"), c.Query("page"), c.Query("limit"))
	if err != nil {
		h.fail(c, err)
		return
	}

	result, err := h.notifications.List(c.Request.Context(), user, filter)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"notifications": result.Notifications,
		"pagination":    result.Pagination,
		"unreadCount":   result.UnreadCount,
	})
}

type notificationActionRequest struct {
	Action          string   `json:"action"`
	NotificationIDs []string `json:"notificationIds"`
	services.CreateNotificationInput
}

// Post dispatches POST /api/notifications on the body's action.
func (h *NotificationHandler) Post(c *gin.Context) {
	user, ok := h.caller(c)
	if !ok {
		return
	}

	var req notificationActionRequest
	decodeErrs, err := bindJSON(c, &req)
	if err != nil {
		h.fail(c, err)
		return
	}
	if len(decodeErrs.Fields) > 0 {
		if req.Action == actionCreate {
			h.fail(c, services.CheckInput(req.CreateNotificationInput, decodeErrs))
		} else {
			h.fail(c, decodeErrs)
		}
		return
	}

	ctx := c.Request.Context()
	switch req.Action {
	case actionCreate:
		notification, err := h.notifications.Create(ctx, user, req.CreateNotificationInput)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"success": true, "notification": notification})

	case actionMarkRead:
		h.respondCount(c, func() (int64, error) { return h.notifications.MarkRead(ctx, user, req.NotificationIDs) })

	case actionMarkAllRead:
		h.respondCount(c, func() (int64, error) { return h.notifications.MarkAllRead(ctx, user) })

	// archive is a permanent delete; nothing keeps an archived copy.
	case actionArchive:
		h.respondCount(c, func() (int64, error) { return h.notifications.Archive(ctx, user, req.NotificationIDs) })

	case "":
		h.fail(c, types.NewError(types.ErrBadRequest, "action is required"))
	default:
		h.fail(c, types.NewError(types.ErrBadRequest, "Unknown action: "+req.Action))
	}
}

// Update handles PUT /api/notifications?id=ID.
func (h *NotificationHandler) Update(c *gin.Context) {
	user, ok := h.caller(c)
	if !ok {
		return
	}

	var input services.UpdateNotificationInput
	if c.Request.ContentLength != 0 {
		decodeErrs, err := bindJSON(c, &input)
		if err != nil {
			h.fail(c, err)
			return
		}
		if err := decodeErrs.OrNil(); err != nil {
			h.fail(c, err)
			return
		}
	}

	notification, err := h.notifications.Update(c.Request.Context(), user, c.Query("id"), input)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "notification": notification})
}

// Delete handles DELETE /api/notifications?id=ID.
func (h *NotificationHandler) Delete(c *gin.Context) {
	user, ok := h.caller(c)
	if !ok {
		return
	}

	if err := h.notifications.Delete(c.Request.Context(), user, c.Query("id")); err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Notification deleted"})
}

// Stream upgrades to a websocket carrying the caller's live notification events.
func (h *NotificationHandler) Stream(c *gin.Context) {
	user, ok := h.caller(c)
	if !ok {
		return
	}
	h.hub.ServeWebSocket(c.Writer, c.Request, user.ID)
}

func (h *NotificationHandler) respondCount(c *gin.Context, op func() (int64, error)) {
	count, err := op()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": count})
}

func (h *NotificationHandler) fail(c *gin.Context, err error) {
	middleware.AbortWithError(c, h.log, err)
}
