package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"xhunt-server/config"
	"xhunt-server/models"
	"xhunt-server/types"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenRevoked = errors.New("session has been revoked")
)

// JWTService issues and validates session tokens.
type JWTService struct {
	secret   []byte
	issuer   string
	ttl      time.Duration
	leeway   time.Duration
	sessions SessionStore
	now      func() time.Time
}

// NewJWTService creates a new JWT service
func NewJWTService(cfg config.JWTConfig, sessions SessionStore) *JWTService {
	if sessions == nil {
		sessions = NoopSessionStore{}
	}
	return &JWTService{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		ttl:      cfg.TokenTTL(),
		leeway:   cfg.Leeway,
		sessions: sessions,
		now:      time.Now,
	}
}

// Session is an issued token with its lifetime.
type Session struct {
	Token     string `json:"token"`
	TokenType string `json:"tokenType"`
	ExpiresIn int64  `json:"expiresIn"`
}

// GenerateToken issues a session token identifying the user by email.
func (js *JWTService) GenerateToken(user *models.User) (*Session, error) {
	now := js.now()
	claims := &types.Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			Issuer:    js.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(js.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(js.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &Session{
		Token:     tokenString,
		TokenType: "Bearer",
		ExpiresIn: int64(js.ttl.Seconds()),
	}, nil
}

// ValidateToken verifies signature, expiry and revocation and returns the claims.
func (js *JWTService) ValidateToken(ctx context.Context, tokenString string) (*types.Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(js.leeway),
		jwt.WithTimeFunc(js.now),
		jwt.WithExpirationRequired(),
	}
	if js.issuer != "" {
		opts = append(opts, jwt.WithIssuer(js.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &types.Claims{}, func(token *jwt.Token) (interface{}, error) {
		return js.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*types.Claims)
	if !ok || !token.Valid || claims.Email == "" {
		return nil, ErrInvalidToken
	}

	revoked, err := js.sessions.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check session revocation: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	return claims, nil
}

// RevokeToken revokes the session for the rest of the token's lifetime.
func (js *JWTService) RevokeToken(ctx context.Context, claims *types.Claims) error {
	if claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	return js.sessions.Revoke(ctx, claims.ID, claims.ExpiresAt.Time.Sub(js.now()))
}
