package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/zfogg/clipstream/backend/internal/database"
	"github.com/zfogg/clipstream/backend/internal/models"
	"gorm.io/gorm"
)

// GoogleUserInfo holds the fields we use from Google's userinfo endpoint
type GoogleUserInfo struct {
	Sub     string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// HandleGoogleCallback exchanges the OAuth code, then finds or creates
// the matching account. Existing native accounts with the same email get
// the Google ID linked instead of a duplicate account.
func (s *Service) HandleGoogleCallback(ctx context.Context, code string, client ClientInfo) (*AuthResponse, error) {
	userInfo, err := s.getGoogleUserInfo(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get Google user info: %w", err)
	}

	// Already linked?
	var user models.User
	err = database.DB.Where("google_id = ?", userInfo.Sub).First(&user).Error
	if err == nil {
		if user.IsBanned {
			return nil, ErrUserBanned
		}
		return s.generateAuthResponse(&user, client)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}

	// Link by email if a native account exists
	err = database.DB.Where("LOWER(email) = LOWER(?)", userInfo.Email).First(&user).Error
	if err == nil {
		if user.IsBanned {
			return nil, ErrUserBanned
		}
		updates := map[string]interface{}{
			"google_id":      userInfo.Sub,
			"email_verified": true,
		}
		if user.AvatarURL == "" && userInfo.Picture != "" {
			updates["avatar_url"] = userInfo.Picture
		}
		if err := database.DB.Model(&user).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("failed to link Google account: %w", err)
		}
		return s.generateAuthResponse(&user, client)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}

	// New account
	username, err := s.ensureUniqueUsername(generateUsernameFromName(userInfo.Name))
	if err != nil {
		return nil, err
	}

	user = models.User{
		ID:            uuid.New().String(),
		Email:         userInfo.Email,
		Username:      username,
		DisplayName:   userInfo.Name,
		GoogleID:      &userInfo.Sub,
		EmailVerified: true,
		AvatarURL:     userInfo.Picture,
	}
	if err := database.DB.Create(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return s.generateAuthResponse(&user, client)
}

// getGoogleUserInfo exchanges the code and fetches the user's profile
func (s *Service) getGoogleUserInfo(ctx context.Context, code string) (*GoogleUserInfo, error) {
	token, err := s.googleConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	httpClient := s.googleConfig.Client(ctx, token)
	resp, err := httpClient.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("userinfo returned %d: %s", resp.StatusCode, string(body))
	}

	var userInfo GoogleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}

	if userInfo.Email == "" {
		return nil, errors.New("google account has no email")
	}

	return &userInfo, nil
}

// ensureUniqueUsername appends a counter until the username is free
func (s *Service) ensureUniqueUsername(base string) (string, error) {
	username := base
	for i := 1; i <= 999; i++ {
		var count int64
		err := database.DB.Model(&models.User{}).
			Where("LOWER(username) = LOWER(?)", username).
			Count(&count).Error
		if err != nil {
			return "", fmt.Errorf("database error: %w", err)
		}
		if count == 0 {
			return username, nil
		}
		username = fmt.Sprintf("%s%d", base, i)
	}
	return "", errors.New("could not generate unique username")
}

// generateUsernameFromName lowercases a display name into a username slug
func generateUsernameFromName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	username := b.String()
	if len(username) > 20 {
		username = username[:20]
	}
	if username == "" {
		username = "user" + uuid.New().String()[:8]
	}
	return username
}
