package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"xhunt-server/models"
	"xhunt-server/types"
)

// Context keys set by the auth middleware.
const (
	UserKey   = "user"
	UserIDKey = "user_id"
	ClaimsKey = "claims"
)

// TokenValidator verifies a session token.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*types.Claims, error)
}

// UserLookup resolves the identity carried by a session.
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// Authenticator turns a session token into the typed caller stored on the gin context.
type Authenticator struct {
	tokens TokenValidator
	users  UserLookup
	log    *zap.Logger
}

func NewAuthenticator(tokens TokenValidator, users UserLookup, log *zap.Logger) *Authenticator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Authenticator{tokens: tokens, users: users, log: log}
}

// AuthMiddleware requires an `Authorization: Bearer <token>` header.
func (a *Authenticator) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			AbortWithError(c, a.log, types.NewError(types.ErrUnauthorized, "Authorization header required"))
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader || tokenString == "" {
			AbortWithError(c, a.log, types.NewError(types.ErrUnauthorized, "Token must be in format: Bearer <token>"))
			return
		}

		a.authenticate(c, tokenString)
	}
}

// WebSocketAuthMiddleware reads the token from the `token` query parameter since
// browsers cannot set headers on an upgrade request.
func (a *Authenticator) WebSocketAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.Query("token")
		if tokenString == "" {
			AbortWithError(c, a.log, types.NewError(types.ErrUnauthorized, "Token required"))
			return
		}

		a.authenticate(c, tokenString)
	}
}

func (a *Authenticator) authenticate(c *gin.Context, tokenString string) {
	ctx := c.Request.Context()

	claims, err := a.tokens.ValidateToken(ctx, tokenString)
	if err != nil {
		a.log.Debug("token rejected", zap.Error(err))
		AbortWithError(c, a.log, types.NewError(types.ErrUnauthorized, "Token is invalid or expired"))
		return
	}

	user, err := a.users.GetByEmail(ctx, claims.Email)
	if errors.Is(err, types.ErrNotFound) {
		AbortWithError(c, a.log, types.NewError(types.ErrNotFound, "User not found"))
		return
	}
	if err != nil {
		AbortWithError(c, a.log, err)
		return
	}

	if !user.IsActive {
		AbortWithError(c, a.log, types.NewError(types.ErrUnauthorized, "User account is deactivated"))
		return
	}

	c.Set(UserKey, user)
	c.Set(UserIDKey, user.ID)
	c.Set(ClaimsKey, claims)

	c.Next()
}

// CurrentUser returns the caller set by the auth middleware.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(UserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}

// CurrentClaims returns the validated session claims.
func CurrentClaims(c *gin.Context) (*types.Claims, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*types.Claims)
	return claims, ok
}
