package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/clipstream/backend/internal/database"
	apierrors "github.com/zfogg/clipstream/backend/internal/errors"
	"github.com/zfogg/clipstream/backend/internal/logger"
	"github.com/zfogg/clipstream/backend/internal/models"
	"github.com/zfogg/clipstream/backend/internal/util"
	"gorm.io/gorm"
)

// GetMyProfile returns the caller's full account
// GET /api/v1/users/me
func (h *Handlers) GetMyProfile(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateMyProfile edits display name, bio, and username
// PUT /api/v1/users/me
func (h *Handlers) UpdateMyProfile(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var req struct {
		DisplayName *string `json:"display_name"`
		Bio         *string `json:"bio"`
		Username    *string `json:"username"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithAPIError(c, apierrors.ValidationError("", err.Error()))
		return
	}

	updates := map[string]interface{}{}
	if req.DisplayName != nil {
		name := strings.TrimSpace(*req.DisplayName)
		if name == "" || len(name) > 50 {
			util.RespondWithAPIError(c, apierrors.ValidationError("display_name", "display name must be 1-50 characters"))
			return
		}
		updates["display_name"] = name
	}
	if req.Bio != nil {
		bio := strings.TrimSpace(*req.Bio)
		if len(bio) > 500 {
			util.RespondWithAPIError(c, apierrors.ValidationError("bio", "bio must be at most 500 characters"))
			return
		}
		updates["bio"] = bio
	}
	if req.Username != nil {
		username := strings.ToLower(strings.TrimSpace(*req.Username))
		if len(username) < 3 || len(username) > 30 {
			util.RespondWithAPIError(c, apierrors.ValidationError("username", "username must be 3-30 characters"))
			return
		}
		if username != strings.ToLower(user.Username) {
			var count int64
			database.DB.Model(&models.User{}).
				Where("LOWER(username) = ? AND id != ?", username, user.ID).
				Count(&count)
			if count > 0 {
				util.RespondWithAPIError(c, apierrors.Conflict("username already taken"))
				return
			}
		}
		updates["username"] = username
	}

	if len(updates) == 0 {
		c.JSON(http.StatusOK, gin.H{"user": user})
		return
	}

	if err := database.DB.Model(user).Updates(updates).Error; err != nil {
		logger.ErrorWithFields("failed to update profile", err)
		util.RespondWithAPIError(c, apierrors.InternalError("failed to update profile"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UploadAvatar stores a new avatar image
// POST /api/v1/users/me/avatar
func (h *Handlers) UploadAvatar(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	file, err := c.FormFile("avatar")
	if err != nil {
		util.RespondWithAPIError(c, apierrors.BadRequest("avatar file is required"))
		return
	}

	if !isValidImageFile(file.Filename) {
		util.RespondWithAPIError(c, apierrors.ValidationError("avatar", "unsupported image format"))
		return
	}
	if file.Size > maxAvatarUploadSize {
		util.RespondWithAPIError(c, apierrors.PayloadTooLarge("avatar exceeds maximum upload size"))
		return
	}

	src, err := file.Open()
	if err != nil {
		util.RespondWithAPIError(c, apierrors.InternalError("failed to read upload"))
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		util.RespondWithAPIError(c, apierrors.InternalError("failed to read upload"))
		return
	}

	result, err := h.store.UploadAvatar(c.Request.Context(), data, user.ID, file.Filename)
	if err != nil {
		logger.ErrorWithFields("failed to upload avatar", err)
		util.RespondWithAPIError(c, apierrors.InternalError("failed to store avatar"))
		return
	}

	if err := database.DB.Model(user).UpdateColumn("avatar_url", result.URL).Error; err != nil {
		logger.ErrorWithFields("failed to save avatar url", err)
		util.RespondWithAPIError(c, apierrors.InternalError("failed to update profile"))
		return
	}
	user.AvatarURL = result.URL

	c.JSON(http.StatusOK, gin.H{"avatar_url": result.URL})
}

// PublicProfile is the subset of account data anyone can see
type PublicProfile struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio"`
	AvatarURL   string `json:"avatar_url"`
	VideoCount  int    `json:"video_count"`
	CreatedAt   string `json:"created_at"`
}

// GetPublicProfile returns a user's public profile with their recent
// public videos
// GET /api/v1/users/:id/profile
func (h *Handlers) GetPublicProfile(c *gin.Context) {
	var user models.User
	err := database.DB.Where("id = ?", c.Param("id")).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondWithAPIError(c, apierrors.NotFound("user"))
		return
	} else if err != nil {
		logger.ErrorWithFields("failed to load user", err)
		util.RespondWithAPIError(c, apierrors.InternalError("failed to load profile"))
		return
	}

	if user.IsBanned {
		util.RespondWithAPIError(c, apierrors.NotFound("user"))
		return
	}

	var videos []models.Video
	database.DB.
		Where("user_id = ? AND is_public = ? AND processing_status = ?",
			user.ID, true, models.ProcessingComplete).
		Order("created_at DESC").
		Limit(12).
		Find(&videos)
	if videos == nil {
		videos = []models.Video{}
	}

	c.JSON(http.StatusOK, gin.H{
		"profile": PublicProfile{
			ID:          user.ID,
			Username:    user.Username,
			DisplayName: user.DisplayName,
			Bio:         user.Bio,
			AvatarURL:   user.AvatarURL,
			VideoCount:  user.VideoCount,
			CreatedAt:   user.CreatedAt.UTC().Format("2006-01-02"),
		},
		"videos": videos,
	})
}
