package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"realestate/internal/config"
	"realestate/internal/domain"
	"realestate/internal/metrics"
	"realestate/internal/util"
	apperrors "realestate/pkg/errors"
)

// AuthService handles back-office login and user management
type AuthService struct {
	db  *gorm.DB
	cfg config.AuthConfig
}

// LoginInput is the login payload
type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResult is returned on successful login
type LoginResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// UserResult is the public view of a back-office user
type UserResult struct {
	ID        uint    `json:"id"`
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	FullName  *string `json:"full_name,omitempty"`
	IsActive  bool    `json:"is_active"`
	IsAdmin   bool    `json:"is_admin"`
	IsStaff   bool    `json:"is_staff"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt *string `json:"updated_at,omitempty"`
	LastLogin *string `json:"last_login,omitempty"`
}

// CreateUserInput is the payload for a new back-office user
type CreateUserInput struct {
	Username string  `json:"username" validate:"required,min=3"`
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=8"`
	FullName *string `json:"full_name"`
	IsActive *bool   `json:"is_active"`
	IsAdmin  bool    `json:"is_admin"`
	IsStaff  bool    `json:"is_staff"`
}

// UpdateUserInput changes selected fields of a user
type UpdateUserInput struct {
	Email    *string `json:"email" validate:"omitempty,email"`
	FullName *string `json:"full_name"`
	Password *string `json:"password" validate:"omitempty,min=8"`
	IsActive *bool   `json:"is_active"`
	IsAdmin  *bool   `json:"is_admin"`
	IsStaff  *bool   `json:"is_staff"`
}

// NewAuthService creates a new auth service
func NewAuthService(db *gorm.DB, cfg config.AuthConfig) *AuthService {
	return &AuthService{db: db, cfg: cfg}
}

// Login checks credentials and issues a bearer token
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	username := strings.TrimSpace(in.Username)
	password := strings.TrimSpace(in.Password)
	if username == "" || password == "" {
		return nil, apperrors.Validation("username and password are required")
	}

	log.Printf("[AUTH] Login attempt for user: %s", username)

	var user domain.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		metrics.RecordAuthAttempt(false)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[AUTH] Login failed: user '%s' not found", username)
			return nil, apperrors.Unauthorized("incorrect username or password")
		}
		log.Printf("[AUTH] Login failed: database error for user '%s': %v", username, err)
		return nil, apperrors.Internal("login failed, please try again", err)
	}

	if !util.CheckPasswordHash(password, user.HashedPassword) {
		log.Printf("[AUTH] Login failed: invalid password for user '%s'", username)
		metrics.RecordAuthAttempt(false)
		return nil, apperrors.Unauthorized("incorrect username or password")
	}

	if !user.IsActive {
		log.Printf("[AUTH] Login failed: user '%s' is inactive", username)
		metrics.RecordAuthAttempt(false)
		return nil, apperrors.Unauthorized("user account is inactive")
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login", now).Error; err != nil {
		log.Printf("[AUTH] Warning: could not record last login for '%s': %v", username, err)
	}

	token, err := util.GenerateToken(s.cfg, &user)
	if err != nil {
		log.Printf("[AUTH] Login failed: token generation error for user '%s': %v", username, err)
		return nil, apperrors.Internal("login failed, please try again", err)
	}

	log.Printf("[AUTH] Login successful for user '%s' (id=%d, admin=%v, staff=%v)", username, user.ID, user.IsAdmin, user.IsStaff)
	metrics.RecordAuthAttempt(true)
	return &LoginResult{AccessToken: token, TokenType: "bearer"}, nil
}

// Authenticate resolves a bearer token to an active user
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	claims, err := util.ValidateToken(s.cfg, token)
	if err != nil {
		return nil, apperrors.Unauthorized("invalid or expired token")
	}

	user, err := util.GetUserFromToken(s.db.WithContext(ctx), claims)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Unauthorized("user not found")
		}
		return nil, apperrors.Internal("failed to load user", err)
	}
	if !user.IsActive {
		return nil, apperrors.Unauthorized("user account is inactive")
	}
	return user, nil
}

// CreateUser adds a back-office user
func (s *AuthService) CreateUser(ctx context.Context, in CreateUserInput) (*UserResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Password = strings.TrimSpace(in.Password)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	log.Printf("[AUTH] CreateUser request: username=%s, email=%s", in.Username, in.Email)

	var count int64
	if err := s.db.WithContext(ctx).Model(&domain.User{}).
		Where("username = ? OR email = ?", in.Username, in.Email).
		Count(&count).Error; err != nil {
		return nil, apperrors.Internal("failed to create user", err)
	}
	if count > 0 {
		log.Printf("[AUTH] CreateUser failed: username or email already registered")
		return nil, apperrors.New(apperrors.ErrCodeConflict, "username or email already registered")
	}

	hashed, err := util.HashPassword(in.Password)
	if err != nil {
		log.Printf("[AUTH] CreateUser failed: password hashing error: %v", err)
		return nil, apperrors.Internal("failed to create user", err)
	}

	user := domain.User{
		Username:       in.Username,
		Email:          in.Email,
		HashedPassword: hashed,
		FullName:       trimPtr(in.FullName),
		IsActive:       true,
		IsAdmin:        in.IsAdmin,
		IsStaff:        in.IsStaff,
	}
	if in.IsActive != nil {
		user.IsActive = *in.IsActive
	}

	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		log.Printf("[AUTH] CreateUser failed: database error: %v", err)
		return nil, apperrors.Internal("failed to create user", err)
	}

	log.Printf("[AUTH] CreateUser successful: username=%s, id=%d", user.Username, user.ID)
	return ToUserResult(&user), nil
}

// ListUsers returns users newest first
func (s *AuthService) ListUsers(ctx context.Context, skip, limit int) ([]*UserResult, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if skip < 0 {
		skip = 0
	}

	var users []domain.User
	if err := s.db.WithContext(ctx).Order("created_at DESC").Offset(skip).Limit(limit).Find(&users).Error; err != nil {
		log.Printf("[AUTH] ListUsers failed: database error: %v", err)
		return nil, apperrors.Internal("failed to list users", err)
	}

	results := make([]*UserResult, len(users))
	for i := range users {
		results[i] = ToUserResult(&users[i])
	}
	return results, nil
}

// UpdateUser changes a user's profile, password or roles
func (s *AuthService) UpdateUser(ctx context.Context, id uint, in UpdateUserInput) (*UserResult, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	var user domain.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, apperrors.Internal("failed to load user", err)
	}

	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		var count int64
		if err := s.db.WithContext(ctx).Model(&domain.User{}).
			Where("email = ? AND id != ?", email, id).
			Count(&count).Error; err != nil {
			return nil, apperrors.Internal("failed to update user", err)
		}
		if count > 0 {
			return nil, apperrors.New(apperrors.ErrCodeConflict, "email already taken")
		}
		user.Email = email
	}
	if in.FullName != nil {
		user.FullName = trimPtr(in.FullName)
	}
	if in.IsActive != nil {
		user.IsActive = *in.IsActive
	}
	if in.IsAdmin != nil {
		user.IsAdmin = *in.IsAdmin
	}
	if in.IsStaff != nil {
		user.IsStaff = *in.IsStaff
	}
	if in.Password != nil {
		hashed, err := util.HashPassword(strings.TrimSpace(*in.Password))
		if err != nil {
			return nil, apperrors.Internal("failed to update user", err)
		}
		user.HashedPassword = hashed
	}

	if err := s.db.WithContext(ctx).Save(&user).Error; err != nil {
		log.Printf("[AUTH] UpdateUser failed: database error: %v", err)
		return nil, apperrors.Internal("failed to update user", err)
	}
	log.Printf("[AUTH] UpdateUser successful: id=%d, username=%s", user.ID, user.Username)
	return ToUserResult(&user), nil
}

// DeleteUser removes a user. Users cannot delete themselves.
func (s *AuthService) DeleteUser(ctx context.Context, current *domain.User, id uint) error {
	if current != nil && current.ID == id {
		log.Printf("[AUTH] DeleteUser failed: user '%s' attempted self-deletion", current.Username)
		return apperrors.BadRequest("cannot delete your own account")
	}

	res := s.db.WithContext(ctx).Delete(&domain.User{}, id)
	if res.Error != nil {
		log.Printf("[AUTH] DeleteUser failed: database error: %v", res.Error)
		return apperrors.Internal("failed to delete user", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("user not found")
	}
	log.Printf("[AUTH] DeleteUser successful: id=%d", id)
	return nil
}

// ToUserResult converts a user to its public view
func ToUserResult(user *domain.User) *UserResult {
	result := &UserResult{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		FullName:  user.FullName,
		IsActive:  user.IsActive,
		IsAdmin:   user.IsAdmin,
		IsStaff:   user.IsStaff,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
	if user.UpdatedAt.After(user.CreatedAt) {
		updated := user.UpdatedAt.Format(time.RFC3339)
		result.UpdatedAt = &updated
	}
	if user.LastLogin != nil {
		last := user.LastLogin.Format(time.RFC3339)
		result.LastLogin = &last
	}
	return result
}
