package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/clipstream/backend/internal/database"
	apierrors "github.com/zfogg/clipstream/backend/internal/errors"
	"github.com/zfogg/clipstream/backend/internal/logger"
	"github.com/zfogg/clipstream/backend/internal/metrics"
	"github.com/zfogg/clipstream/backend/internal/models"
	"github.com/zfogg/clipstream/backend/internal/notify"
	"github.com/zfogg/clipstream/backend/internal/util"
	"gorm.io/gorm"
)

func reactionCounterColumn(reactionType string) string {
	if reactionType == models.ReactionLike {
		return "like_count"
	}
	return "dislike_count"
}

// SetReaction upserts the caller's like/dislike on a video. The join row
// and the denormalized counters move in one transaction so they cannot
// drift.
// POST /api/v1/videos/:id/reaction
func (h *Handlers) SetReaction(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req struct {
		Type string `json:"type" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithAPIError(c, apierrors.ValidationError("type", "type is required"))
		return
	}
	if req.Type != models.ReactionLike && req.Type != models.ReactionDislike {
		util.RespondWithAPIError(c, apierrors.ValidationError("type", "type must be like or dislike"))
		return
	}

	video, ok := h.loadWatchableVideo(c, c.Param("id"), userID)
	if !ok {
		return
	}

	var action string
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var existing models.Reaction
		err := tx.Where("user_id = ? AND video_id = ?", userID, video.ID).First(&existing).Error

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			action = "added"
			reaction := models.Reaction{
				UserID:  userID,
				VideoID: video.ID,
				Type:    req.Type,
			}
			if err := tx.Create(&reaction).Error; err != nil {
				return err
			}
			return tx.Model(&models.Video{}).Where("id = ?", video.ID).
				UpdateColumn(reactionCounterColumn(req.Type), gorm.Expr(reactionCounterColumn(req.Type)+" + 1")).Error

		case err != nil:
			return err

		case existing.Type == req.Type:
			action = "unchanged"
			return nil

		default:
			// Switching type flips both counters
			action = "switched"
			if err := tx.Model(&existing).UpdateColumn("type", req.Type).Error; err != nil {
				return err
			}
			oldCol := reactionCounterColumn(existing.Type)
			newCol := reactionCounterColumn(req.Type)
			if err := tx.Model(&models.Video{}).Where("id = ?", video.ID).
				UpdateColumn(oldCol, gorm.Expr("GREATEST("+oldCol+" - 1, 0)")).Error; err != nil {
				return err
			}
			return tx.Model(&models.Video{}).Where("id = ?", video.ID).
				UpdateColumn(newCol, gorm.Expr(newCol+" + 1")).Error
		}
	})
	if err != nil {
		logger.ErrorWithFields("failed to set reaction", err)
		util.RespondWithAPIError(c, apierrors.InternalError("failed to set reaction"))
		return
	}

	if action != "unchanged" {
		metrics.RecordReaction(req.Type, action)

		// Tell the uploader, unless they reacted to their own video
		if h.notifyHub != nil && video.UserID != userID && action == "added" && req.Type == models.ReactionLike {
			h.notifyHub.SendToUser(video.UserID, notify.NewEvent(notify.EventNewReaction, map[string]interface{}{
				"video_id": video.ID,
				"type":     req.Type,
			}))
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   action,
		"reaction": req.Type,
	})
}

// RemoveReaction deletes the caller's reaction and decrements its counter
// DELETE /api/v1/videos/:id/reaction
func (h *Handlers) RemoveReaction(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	videoID := c.Param("id")

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		var existing models.Reaction
		err := tx.Where("user_id = ? AND video_id = ?", userID, videoID).First(&existing).Error
		if err != nil {
			return err
		}

		if err := tx.Delete(&existing).Error; err != nil {
			return err
		}

		col := reactionCounterColumn(existing.Type)
		return tx.Model(&models.Video{}).Where("id = ?", videoID).
			UpdateColumn(col, gorm.Expr("GREATEST("+col+" - 1, 0)")).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondWithAPIError(c, apierrors.NotFound("reaction"))
		return
	} else if err != nil {
		logger.ErrorWithFields("failed to remove reaction", err)
		util.RespondWithAPIError(c, apierrors.InternalError("failed to remove reaction"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

// GetReactions returns the video's counters plus the caller's reaction
// GET /api/v1/videos/:id/reactions
func (h *Handlers) GetReactions(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	video, ok := h.loadWatchableVideo(c, c.Param("id"), userID)
	if !ok {
		return
	}

	var callerReaction interface{}
	var reaction models.Reaction
	if err := database.DB.Where("user_id = ? AND video_id = ?", userID, video.ID).
		First(&reaction).Error; err == nil {
		callerReaction = reaction.Type
	}

	c.JSON(http.StatusOK, gin.H{
		"like_count":    video.LikeCount,
		"dislike_count": video.DislikeCount,
		"reaction":      callerReaction,
	})
}

// loadWatchableVideo loads a video and 404s unless the caller may see it
func (h *Handlers) loadWatchableVideo(c *gin.Context, videoID, callerID string) (*models.Video, bool) {
	var video models.Video
	err := database.DB.Where("id = ?", videoID).First(&video).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondWithAPIError(c, apierrors.NotFound("video"))
		return nil, false
	} else if err != nil {
		logger.ErrorWithFields("failed to load video", err)
		util.RespondWithAPIError(c, apierrors.InternalError("failed to load video"))
		return nil, false
	}

	if !video.Watchable() && video.UserID != callerID {
		util.RespondWithAPIError(c, apierrors.NotFound("video"))
		return nil, false
	}

	return &video, true
}
