package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"xhunt-server/config"
	"xhunt-server/middleware"
	"xhunt-server/services"
	ws "xhunt-server/websocket"
)

// Dependencies are the collaborators the HTTP layer needs.
type Dependencies struct {
	Config        *config.Config
	DB            *gorm.DB
	Log           *zap.Logger
	Users         *services.UserService
	Tokens        *services.JWTService
	Notifications *services.NotificationService
	Hub           *ws.Hub
	RateLimiter   *middleware.RateLimiter
}

// NewRouter builds the gin engine with the full middleware stack and every route.
func NewRouter(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	limiter := deps.RateLimiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter()
	}

	router := gin.New()

	// Disable automatic redirects for trailing slashes
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false

	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.Metrics())
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.CORS))
	router.Use(middleware.InputValidationMiddleware())

	router.GET("/health", healthHandler(deps.DB))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := middleware.NewAuthenticator(deps.Tokens, deps.Users, log)

	api := router.Group("/api")
	api.Use(middleware.RateLimitMiddleware(limiter, "api", cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst, log))
	{
		authLimit := middleware.RateLimitMiddleware(limiter, "auth", cfg.RateLimit.AuthPerMinute, 0, log)
		RegisterAuthRoutes(api, NewAuthHandler(deps.Users, deps.Tokens, log), auth, authLimit)
		RegisterNotificationRoutes(api, NewNotificationHandler(deps.Notifications, deps.Hub, log), auth)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, middleware.ErrorResponse{Error: "Route not found"})
	})

	return router
}

func healthHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "degraded",
				"database": "unavailable",
				"time":     time.Now().UTC(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"database": "ok",
			"time":     time.Now().UTC(),
		})
	}
}
