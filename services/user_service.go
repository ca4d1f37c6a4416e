package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"xhunt-server/database"
	"xhunt-server/models"
	"xhunt-server/types"
	"xhunt-server/utils"
)

// UserService manages accounts and credentials.
type UserService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewUserService(db *gorm.DB, log *zap.Logger) *UserService {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserService{db: db, log: log}
}

// RegisterInput is the self-service signup payload. Admins are created from the CLI.
type RegisterInput struct {
	Email    string          `json:"email" validate:"required,email,max=255"`
	Password string          `json:"password" validate:"required,min=8,max=72"`
	Name     string          `json:"name" validate:"max=255"`
	Role     models.UserRole `json:"role" validate:"omitempty,oneof=user host"`
}

// LoginInput is the credentials payload.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Register creates an active account.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	input.Email = models.NormalizeEmail(input.Email)
	if err := validateStruct(input); err != nil {
		return nil, err
	}
	return s.create(ctx, input.Email, input.Password, strings.TrimSpace(input.Name), input.Role)
}

// CreateAdmin creates an admin account, bypassing the signup role restriction.
func (s *UserService) CreateAdmin(ctx context.Context, email, password, name string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	if err := validateStruct(RegisterInput{Email: email, Password: password, Name: name}); err != nil {
		return nil, err
	}
	return s.create(ctx, email, password, name, models.RoleAdmin)
}

func (s *UserService) create(ctx context.Context, email, password, name string, role models.UserRole) (*models.User, error) {
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if !user.IsValidRole() {
		return nil, (&types.ValidationError{}).Add("role", "is invalid")
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, types.NewError(types.ErrConflict, "A user with this email already exists")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// Authenticate checks credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *UserService) Authenticate(ctx context.Context, input LoginInput) (*models.User, error) {
	input.Email = models.NormalizeEmail(input.Email)
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	invalid := types.NewError(types.ErrUnauthorized, "Invalid email or password")
	user, err := s.GetByEmail(ctx, input.Email)
	if errors.Is(err, types.ErrNotFound) {
		return nil, invalid
	}
	if err != nil {
		return nil, err
	}
	if !utils.CheckPasswordHash(input.Password, user.PasswordHash) {
		return nil, invalid
	}
	if !user.IsActive {
		return nil, types.NewError(types.ErrUnauthorized, "Account is inactive")
	}
	return user, nil
}

// GetByEmail loads a user by normalized email.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", models.NormalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NewError(types.ErrNotFound, "User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}
