package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/clipstream/backend/internal/auth"
	"github.com/zfogg/clipstream/backend/internal/email"
	apierrors "github.com/zfogg/clipstream/backend/internal/errors"
	"github.com/zfogg/clipstream/backend/internal/logger"
	"github.com/zfogg/clipstream/backend/internal/util"
	"go.uber.org/zap"
)

// AuthHandlers bundles authentication endpoints around the auth service
type AuthHandlers struct {
	authService *auth.Service
	email       *email.EmailService
}

// NewAuthHandlers creates the auth endpoint handlers
func NewAuthHandlers(authService *auth.Service) *AuthHandlers {
	return &AuthHandlers{authService: authService}
}

// SetEmailService wires the transactional email sender
func (h *AuthHandlers) SetEmailService(emailService *email.EmailService) {
	h.email = emailService
}

func clientInfoFromRequest(c *gin.Context) auth.ClientInfo {
	return auth.ClientInfo{
		UserAgent: c.GetHeader("User-Agent"),
		IPAddress: c.ClientIP(),
	}
}

// Register creates a new account with email and password
// POST /api/v1/auth/register
func (h *AuthHandlers) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithAPIError(c, apierrors.ValidationError("", err.Error()))
		return
	}

	resp, err := h.authService.RegisterUser(req, clientInfoFromRequest(c))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserExists):
			util.RespondWithAPIError(c, apierrors.AlreadyExists("account with this email"))
		case errors.Is(err, auth.ErrUsernameExists):
			util.RespondWithAPIError(c, apierrors.Conflict("username already taken"))
		default:
			logger.ErrorWithFields("registration failed", err)
			util.RespondWithAPIError(c, apierrors.InternalError("failed to create account"))
		}
		return
	}

	// Verification email is best effort; the account works either way
	if h.email != nil && resp.User.EmailVerifyToken != nil {
		if err := h.email.SendVerificationEmail(c.Request.Context(), resp.User.Email, *resp.User.EmailVerifyToken); err != nil {
			logger.Log.Warn("failed to send verification email",
				zap.String("user_id", resp.User.ID),
				zap.Error(err))
		}
	}

	c.JSON(http.StatusCreated, resp)
}

// Login authenticates with email and password
// POST /api/v1/auth/login
func (h *AuthHandlers) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithAPIError(c, apierrors.ValidationError("", err.Error()))
		return
	}

	resp, err := h.authService.LoginUser(req, clientInfoFromRequest(c))
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTwoFactorRequired):
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":               "two_factor_required",
				"message":             "Two-factor authentication code required",
				"two_factor_required": true,
			})
		case errors.Is(err, auth.ErrUserBanned):
			util.RespondWithAPIError(c, apierrors.Forbidden("account is banned"))
		case errors.Is(err, auth.ErrInvalidCredentials):
			util.RespondWithAPIError(c, apierrors.Unauthorized("invalid email or password"))
		default:
			logger.ErrorWithFields("login failed", err)
			util.RespondWithAPIError(c, apierrors.InternalError("login failed"))
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Logout revokes the current session
// POST /api/v1/auth/logout
func (h *AuthHandlers) Logout(c *gin.Context) {
	sessionID, exists := c.Get("session_id")
	if !exists {
		util.RespondWithAPIError(c, apierrors.Unauthorized("not authenticated"))
		return
	}

	if err := h.authService.RevokeSession(sessionID.(string)); err != nil {
		logger.ErrorWithFields("failed to revoke session", err)
		util.RespondWithAPIError(c, apierrors.InternalError("logout failed"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

// Me returns the authenticated user's account
// GET /api/v1/auth/me
func (h *AuthHandlers) Me(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// VerifyEmail confirms an email address using the emailed token
// POST /api/v1/auth/verify-email
func (h *AuthHandlers) VerifyEmail(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithAPIError(c, apierrors.ValidationError("token", "token is required"))
		return
	}

	if err := h.authService.VerifyEmail(req.Token); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			util.RespondWithAPIError(c, apierrors.BadRequest("invalid verification token"))
			return
		}
		logger.ErrorWithFields("email verification failed", err)
		util.RespondWithAPIError(c, apierrors.InternalError("verification failed"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "verified"})
}

// RequestPasswordReset emails a password reset link.
// Always returns 200 so the endpoint can't be used to enumerate accounts.
// POST /api/v1/auth/password-reset
func (h *AuthHandlers) RequestPasswordReset(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithAPIError(c, apierrors.ValidationError("email", "valid email is required"))
		return
	}

	reset, err := h.authService.RequestPasswordReset(req.Email)
	if err != nil && !errors.Is(err, auth.ErrUserNotFound) {
		logger.ErrorWithFields("password reset request failed", err)
		util.RespondWithAPIError(c, apierrors.InternalError("could not process request"))
		return
	}

	if err == nil && h.email != nil {
		if sendErr := h.email.SendPasswordResetEmail(c.Request.Context(), reset.User.Email, reset.Token); sendErr != nil {
			logger.Log.Warn("failed to send password reset email",
				zap.String("user_id", reset.UserID),
				zap.Error(sendErr))
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"message": "If an account exists for that email, a reset link has been sent",
	})
}

// ConfirmPasswordReset sets a new password using a reset token
// POST /api/v1/auth/password-reset/confirm
func (h *AuthHandlers) ConfirmPasswordReset(c *gin.Context) {
	var req struct {
		Token       string `json:"token" binding:"required"`
		NewPassword string `json:"new_password" binding:"required,min=8"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithAPIError(c, apierrors.ValidationError("", err.Error()))
		return
	}

	if err := h.authService.ResetPassword(req.Token, req.NewPassword); err != nil {
		util.RespondWithAPIError(c, apierrors.BadRequest(err.Error()))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "password_reset"})
}

// GoogleLogin redirects to Google's OAuth consent screen
// GET /api/v1/auth/google
func (h *AuthHandlers) GoogleLogin(c *gin.Context) {
	stateBytes := make([]byte, 16)
	rand.Read(stateBytes)
	state := hex.EncodeToString(stateBytes)

	// State cookie guards against CSRF on the callback
	c.SetCookie("oauth_state", state, 600, "/", "", false, true)
	c.Redirect(http.StatusTemporaryRedirect, h.authService.GetGoogleOAuthURL(state))
}

// GoogleCallback completes the Google OAuth flow
// GET /api/v1/auth/google/callback
func (h *AuthHandlers) GoogleCallback(c *gin.Context) {
	state := c.Query("state")
	cookieState, err := c.Cookie("oauth_state")
	if err != nil || state == "" || state != cookieState {
		util.RespondWithAPIError(c, apierrors.BadRequest("invalid OAuth state"))
		return
	}

	code := c.Query("code")
	if code == "" {
		util.RespondWithAPIError(c, apierrors.BadRequest("missing authorization code"))
		return
	}

	resp, err := h.authService.HandleGoogleCallback(c.Request.Context(), code, clientInfoFromRequest(c))
	if err != nil {
		if errors.Is(err, auth.ErrUserBanned) {
			util.RespondWithAPIError(c, apierrors.Forbidden("account is banned"))
			return
		}
		logger.ErrorWithFields("google oauth callback failed", err)
		util.RespondWithAPIError(c, apierrors.InternalError("authentication failed"))
		return
	}

	c.JSON(http.StatusOK, resp)
}

// SetupTwoFactor begins TOTP enrollment for the authenticated user
// POST /api/v1/auth/2fa/setup
func (h *AuthHandlers) SetupTwoFactor(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	setup, err := h.authService.SetupTwoFactor(user)
	if err != nil {
		util.RespondWithAPIError(c, apierrors.BadRequest(err.Error()))
		return
	}

	c.JSON(http.StatusOK, setup)
}

// EnableTwoFactor verifies the first TOTP code and turns 2FA on
// POST /api/v1/auth/2fa/enable
func (h *AuthHandlers) EnableTwoFactor(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithAPIError(c, apierrors.ValidationError("code", "code is required"))
		return
	}

	if err := h.authService.EnableTwoFactor(user, req.Code); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			util.RespondWithAPIError(c, apierrors.Unauthorized("invalid code"))
			return
		}
		util.RespondWithAPIError(c, apierrors.BadRequest(err.Error()))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "enabled"})
}

// DisableTwoFactor turns 2FA off after verifying a current code
// POST /api/v1/auth/2fa/disable
func (h *AuthHandlers) DisableTwoFactor(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithAPIError(c, apierrors.ValidationError("code", "code is required"))
		return
	}

	if err := h.authService.DisableTwoFactor(user, req.Code); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			util.RespondWithAPIError(c, apierrors.Unauthorized("invalid code"))
			return
		}
		util.RespondWithAPIError(c, apierrors.BadRequest(err.Error()))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "disabled"})
}

// OptionalAuthMiddleware loads the user when a valid token is present
// but lets anonymous requests through. Public endpoints use it to
// personalize responses.
func (h *AuthHandlers) OptionalAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		tokenString := strings.TrimPrefix(header, "Bearer ")
		user, sessionID, err := h.authService.ValidateToken(tokenString)
		if err == nil {
			c.Set("user", user)
			c.Set("user_id", user.ID)
			c.Set("session_id", sessionID)
		}
		c.Next()
	}
}

// AuthMiddleware validates the bearer token and loads the user into the
// request context
func (h *AuthHandlers) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "no token provided"})
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(header, "Bearer ")

		user, sessionID, err := h.authService.ValidateToken(tokenString)
		if err != nil {
			status := http.StatusUnauthorized
			message := "invalid token"
			if errors.Is(err, auth.ErrUserBanned) {
				status = http.StatusForbidden
				message = "account is banned"
			} else if errors.Is(err, auth.ErrSessionRevoked) {
				message = "session expired"
			}
			c.JSON(status, gin.H{"error": message})
			c.Abort()
			return
		}

		c.Set("user", user)
		c.Set("user_id", user.ID)
		c.Set("session_id", sessionID)
		c.Next()
	}
}
