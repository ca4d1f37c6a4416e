package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"xhunt-server/middleware"
	"xhunt-server/models"
	"xhunt-server/services"
	"xhunt-server/types"
)

// AuthResponse represents the authentication response
type AuthResponse struct {
	Success bool `json:"success"`
	*services.Session
	User *models.User `json:"user"`
}

// AuthHandler serves /api/auth.
type AuthHandler struct {
	users  *services.UserService
	tokens *services.JWTService
	log    *zap.Logger
}

func NewAuthHandler(users *services.UserService, tokens *services.JWTService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens, log: log}
}

// RegisterAuthRoutes registers authentication routes
func RegisterAuthRoutes(router *gin.RouterGroup, h *AuthHandler, auth *middleware.Authenticator, limit gin.HandlerFunc) {
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", limit, h.Register)
		authGroup.POST("/login", limit, h.Login)
		authGroup.POST("/logout", auth.AuthMiddleware(), h.Logout)
		authGroup.GET("/me", auth.AuthMiddleware(), h.Me)
	}
}

// Register handles user registration
func (h *AuthHandler) Register(c *gin.Context) {
	var input services.RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		middleware.AbortWithError(c, h.log, types.NewError(types.ErrBadRequest, "Invalid JSON body"))
		return
	}

	user, err := h.users.Register(c.Request.Context(), input)
	if err != nil {
		middleware.AbortWithError(c, h.log, err)
		return
	}

	h.issue(c, http.StatusCreated, user)
}

// Login exchanges credentials for a session token.
func (h *AuthHandler) Login(c *gin.Context) {
	var input services.LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		middleware.AbortWithError(c, h.log, types.NewError(types.ErrBadRequest, "Invalid JSON body"))
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), input)
	if err != nil {
		middleware.AbortWithError(c, h.log, err)
		return
	}

	h.issue(c, http.StatusOK, user)
}

// Logout revokes the current session until its token would have expired.
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		middleware.AbortWithError(c, h.log, types.NewError(types.ErrUnauthorized, "Authentication required"))
		return
	}

	if err := h.tokens.RevokeToken(c.Request.Context(), claims); err != nil {
		middleware.AbortWithError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out successfully"})
}

// Me returns the caller's profile.
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := callerFrom(c, h.log)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

func (h *AuthHandler) issue(c *gin.Context, status int, user *models.User) {
	session, err := h.tokens.GenerateToken(user)
	if err != nil {
		middleware.AbortWithError(c, h.log, err)
		return
	}
	c.JSON(status, AuthResponse{Success: true, Session: session, User: user})
}
