package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/zfogg/clipstream/backend/internal/cache"
	"github.com/zfogg/clipstream/backend/internal/database"
	"github.com/zfogg/clipstream/backend/internal/models"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrUsernameExists     = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserBanned         = errors.New("account is banned")
	ErrSessionRevoked     = errors.New("session revoked or expired")
	ErrTwoFactorRequired  = errors.New("two-factor code required")
)

const tokenTTL = 24 * time.Hour

// Service handles all authentication operations
type Service struct {
	jwtSecret    []byte
	googleConfig *oauth2.Config
}

// NewService creates a new authentication service
func NewService(jwtSecret []byte, googleClientID, googleClientSecret string) *Service {
	// OAuth redirect URL - development default, overridden via API_BASE_URL
	googleRedirectURL := "http://localhost:8788/api/v1/auth/google/callback"
	if apiBaseURL := os.Getenv("API_BASE_URL"); apiBaseURL != "" {
		googleRedirectURL = apiBaseURL + "/api/v1/auth/google/callback"
	}

	return &Service{
		jwtSecret: jwtSecret,
		googleConfig: &oauth2.Config{
			ClientID:     googleClientID,
			ClientSecret: googleClientSecret,
			RedirectURL:  googleRedirectURL,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     google.Endpoint,
		},
	}
}

// AuthResponse represents authentication response
type AuthResponse struct {
	Token     string      `json:"token"`
	User      models.User `json:"user"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// RegisterRequest represents native registration request
type RegisterRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Username    string `json:"username" binding:"required,min=3,max=30"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"display_name" binding:"required,min=1,max=50"`
}

// LoginRequest represents native login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	// TOTP code, required only when the account has 2FA enabled
	TwoFactorCode string `json:"two_factor_code"`
}

// ClientInfo captures request attributes recorded on the session
type ClientInfo struct {
	UserAgent string
	IPAddress string
}

// RegisterUser creates a new user with email/password
func (s *Service) RegisterUser(req RegisterRequest, client ClientInfo) (*AuthResponse, error) {
	// Check if user exists by email (case-insensitive)
	var existingUser models.User
	err := database.DB.Where("LOWER(email) = LOWER(?)", req.Email).First(&existingUser).Error
	if err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}

	// Check if username is taken
	var usernameCheck models.User
	err = database.DB.Where("LOWER(username) = LOWER(?)", req.Username).First(&usernameCheck).Error
	if err == nil {
		return nil, ErrUsernameExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	hashedPasswordStr := string(hashedPassword)
	verifyToken := randomToken()
	user := models.User{
		ID:               uuid.New().String(),
		Email:            req.Email,
		Username:         req.Username,
		DisplayName:      req.DisplayName,
		PasswordHash:     &hashedPasswordStr,
		EmailVerifyToken: &verifyToken,
	}

	if err := database.DB.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return s.generateAuthResponse(&user, client)
}

// LoginUser authenticates with email/password and issues a session token
func (s *Service) LoginUser(req LoginRequest, client ClientInfo) (*AuthResponse, error) {
	var user models.User
	err := database.DB.Where("LOWER(email) = LOWER(?)", req.Email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	if user.PasswordHash == nil {
		// OAuth-only account
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if user.IsBanned {
		return nil, ErrUserBanned
	}

	if user.TwoFactorEnabled {
		if req.TwoFactorCode == "" {
			return nil, ErrTwoFactorRequired
		}
		if !s.VerifyTOTP(&user, req.TwoFactorCode) {
			return nil, ErrInvalidCredentials
		}
	}

	now := time.Now().UTC()
	database.DB.Model(&user).UpdateColumn("last_active_at", now)
	user.LastActiveAt = &now

	return s.generateAuthResponse(&user, client)
}

// VerifyEmail marks the account matching the token as verified
func (s *Service) VerifyEmail(token string) error {
	var user models.User
	err := database.DB.Where("email_verify_token = ?", token).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	} else if err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	return database.DB.Model(&user).Updates(map[string]interface{}{
		"email_verified":     true,
		"email_verify_token": nil,
	}).Error
}

// generateAuthResponse creates a session row and a JWT bound to it
func (s *Service) generateAuthResponse(user *models.User, client ClientInfo) (*AuthResponse, error) {
	expiresAt := time.Now().Add(tokenTTL)

	session := models.Session{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		UserAgent: client.UserAgent,
		IPAddress: client.IPAddress,
		ExpiresAt: expiresAt,
	}
	if err := database.DB.Create(&session).Error; err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	claims := jwt.MapClaims{
		"user_id":    user.ID,
		"session_id": session.ID,
		"email":      user.Email,
		"username":   user.Username,
		"is_admin":   user.IsAdmin,
		"exp":        expiresAt.Unix(),
		"iat":        time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &AuthResponse{
		Token:     tokenString,
		User:      *user,
		ExpiresAt: expiresAt,
	}, nil
}

// ValidateToken validates a JWT, checks its backing session, and returns
// the user. The session check hits Redis first when available so most
// requests avoid a sessions-table read.
func (s *Service) ValidateToken(tokenString string) (*models.User, string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, "", errors.New("invalid token claims")
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		return nil, "", errors.New("invalid user_id in token")
	}
	sessionID, ok := claims["session_id"].(string)
	if !ok {
		return nil, "", errors.New("invalid session_id in token")
	}

	if err := s.checkSession(sessionID); err != nil {
		return nil, "", err
	}

	// Fetch fresh user data
	var user models.User
	if err := database.DB.Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, "", fmt.Errorf("user not found: %w", err)
	}

	if user.IsBanned {
		return nil, "", ErrUserBanned
	}

	return &user, sessionID, nil
}

// checkSession verifies the session is live, consulting Redis first
func (s *Service) checkSession(sessionID string) error {
	cacheKey := "session:live:" + sessionID

	if rc := cache.GetRedisClient(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if n, err := rc.Exists(ctx, cacheKey); err == nil && n > 0 {
			return nil
		}
	}

	var session models.Session
	err := database.DB.Where("id = ?", sessionID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrSessionRevoked
	} else if err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	if !session.Active(time.Now()) {
		return ErrSessionRevoked
	}

	if rc := cache.GetRedisClient(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		ttl := time.Until(session.ExpiresAt)
		if ttl > 5*time.Minute {
			ttl = 5 * time.Minute
		}
		if ttl > 0 {
			rc.SetEx(ctx, cacheKey, "1", ttl)
		}
	}

	return nil
}

// RevokeSession marks a session revoked and drops its cache entry
func (s *Service) RevokeSession(sessionID string) error {
	now := time.Now().UTC()
	result := database.DB.Model(&models.Session{}).
		Where("id = ? AND revoked_at IS NULL", sessionID).
		UpdateColumn("revoked_at", now)
	if result.Error != nil {
		return fmt.Errorf("failed to revoke session: %w", result.Error)
	}

	if rc := cache.GetRedisClient(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		rc.Del(ctx, "session:live:"+sessionID)
	}

	return nil
}

// GetGoogleOAuthURL returns the Google OAuth authorization URL
func (s *Service) GetGoogleOAuthURL(state string) string {
	return s.googleConfig.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// RequestPasswordReset creates a password reset token for the account
func (s *Service) RequestPasswordReset(email string) (*models.PasswordReset, error) {
	var user models.User
	err := database.DB.Where("LOWER(email) = LOWER(?)", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	reset := models.PasswordReset{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Token:     randomToken(),
		ExpiresAt: time.Now().Add(1 * time.Hour),
	}
	if err := database.DB.Create(&reset).Error; err != nil {
		return nil, fmt.Errorf("failed to create password reset: %w", err)
	}

	reset.User = user
	return &reset, nil
}

// ResetPassword consumes a reset token and sets the new password
func (s *Service) ResetPassword(token, newPassword string) error {
	var reset models.PasswordReset
	err := database.DB.Where("token = ?", token).First(&reset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.New("invalid or expired reset token")
	} else if err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	if reset.UsedAt != nil || time.Now().After(reset.ExpiresAt) {
		return errors.New("invalid or expired reset token")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	hashedPasswordStr := string(hashedPassword)

	return database.DB.Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		if err := tx.Model(&reset).UpdateColumn("used_at", now).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("id = ?", reset.UserID).
			UpdateColumn("password_hash", hashedPasswordStr).Error; err != nil {
			return err
		}
		// Revoke all live sessions so a stolen token dies with the old password
		return tx.Model(&models.Session{}).
			Where("user_id = ? AND revoked_at IS NULL", reset.UserID).
			UpdateColumn("revoked_at", now).Error
	})
}

// randomToken returns a 32-byte hex token
func randomToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing means something is deeply wrong with the host
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return hex.EncodeToString(b)
}
