package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/clipstream/backend/internal/database"
	apierrors "github.com/zfogg/clipstream/backend/internal/errors"
	"github.com/zfogg/clipstream/backend/internal/logger"
	"github.com/zfogg/clipstream/backend/internal/models"
	"github.com/zfogg/clipstream/backend/internal/util"
	"gorm.io/gorm"
)

// AddToWatchlist saves a video to the caller's watchlist. Adding a video
// that is already saved is a no-op.
// POST /api/v1/videos/:id/watchlist
func (h *Handlers) AddToWatchlist(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	video, ok := h.loadWatchableVideo(c, c.Param("id"), userID)
	if !ok {
		return
	}

	added := false
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var existing models.WatchlistItem
		err := tx.Where("user_id = ? AND video_id = ?", userID, video.ID).First(&existing).Error
		if err == nil {
			return nil // already saved
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		added = true
		item := models.WatchlistItem{
			UserID:  userID,
			VideoID: video.ID,
		}
		if err := tx.Create(&item).Error; err != nil {
			return err
		}
		return tx.Model(&models.Video{}).Where("id = ?", video.ID).
			UpdateColumn("watchlist_count", gorm.Expr("watchlist_count + 1")).Error
	})
	if err != nil {
		logger.ErrorWithFields("failed to add to watchlist", err)
		util.RespondWithAPIError(c, apierrors.InternalError("failed to update watchlist"))
		return
	}

	status := "already_saved"
	if added {
		status = "saved"
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// RemoveFromWatchlist removes a video from the caller's watchlist
// DELETE /api/v1/videos/:id/watchlist
func (h *Handlers) RemoveFromWatchlist(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	videoID := c.Param("id")

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var existing models.WatchlistItem
		if err := tx.Where("user_id = ? AND video_id = ?", userID, videoID).First(&existing).Error; err != nil {
			return err
		}
		if err := tx.Delete(&existing).Error; err != nil {
			return err
		}
		return tx.Model(&models.Video{}).Where("id = ?", videoID).
			UpdateColumn("watchlist_count", gorm.Expr("GREATEST(watchlist_count - 1, 0)")).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondWithAPIError(c, apierrors.NotFound("watchlist item"))
		return
	} else if err != nil {
		logger.ErrorWithFields("failed to remove from watchlist", err)
		util.RespondWithAPIError(c, apierrors.InternalError("failed to update watchlist"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

// GetWatchlist returns the caller's saved videos, newest saves first
// GET /api/v1/users/me/watchlist
func (h *Handlers) GetWatchlist(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	limit, offset := util.ParsePagination(c.Query("limit"), c.Query("offset"), catalogDefaultLimit, catalogMaxLimit)

	var items []models.WatchlistItem
	err := database.DB.
		Preload("Video").
		Preload("Video.User").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit + 1).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		logger.ErrorWithFields("failed to load watchlist", err)
		util.RespondWithAPIError(c, apierrors.InternalError("failed to load watchlist"))
		return
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	// Saved videos that went private or got deleted stay hidden
	visible := make([]models.WatchlistItem, 0, len(items))
	for _, item := range items {
		if item.Video.ID != "" && (item.Video.Watchable() || item.Video.UserID == userID) {
			visible = append(visible, item)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"watchlist": visible,
		"limit":     limit,
		"offset":    offset,
		"has_more":  hasMore,
	})
}

// CheckWatchlisted reports whether the caller has saved the video
// GET /api/v1/videos/:id/watchlisted
func (h *Handlers) CheckWatchlisted(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var count int64
	err := database.DB.Model(&models.WatchlistItem{}).
		Where("user_id = ? AND video_id = ?", userID, c.Param("id")).
		Count(&count).Error
	if err != nil {
		logger.ErrorWithFields("failed to check watchlist", err)
		util.RespondWithAPIError(c, apierrors.InternalError("failed to check watchlist"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"watchlisted": count > 0})
}
