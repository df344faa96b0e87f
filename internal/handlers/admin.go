package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/clipstream/backend/internal/database"
	apierrors "github.com/zfogg/clipstream/backend/internal/errors"
	"github.com/zfogg/clipstream/backend/internal/logger"
	"github.com/zfogg/clipstream/backend/internal/models"
	"github.com/zfogg/clipstream/backend/internal/util"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AdminDeleteVideo removes any video for moderation
// DELETE /api/v1/admin/videos/:id
func (h *Handlers) AdminDeleteVideo(c *gin.Context) {
	adminID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var video models.Video
	err := database.DB.Where("id = ?", c.Param("id")).First(&video).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondWithAPIError(c, apierrors.NotFound("video"))
		return
	} else if err != nil {
		logger.ErrorWithFields("failed to load video", err)
		util.RespondWithAPIError(c, apierrors.InternalError("failed to delete video"))
		return
	}

	if err := h.removeVideo(c.Request.Context(), &video); err != nil {
		logger.ErrorWithFields("failed to delete video", err)
		util.RespondWithAPIError(c, apierrors.InternalError("failed to delete video"))
		return
	}

	logger.InfoWithFields("video removed by admin",
		logger.WithVideoID(video.ID),
		zap.String("admin_id", adminID),
		zap.String("owner_id", video.UserID))

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// AdminDeleteComment removes any comment for moderation
// DELETE /api/v1/admin/comments/:id
func (h *Handlers) AdminDeleteComment(c *gin.Context) {
	adminID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var comment models.Comment
	err := database.DB.Where("id = ?", c.Param("id")).First(&comment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondWithAPIError(c, apierrors.NotFound("comment"))
		return
	} else if err != nil {
		logger.ErrorWithFields("failed to load comment", err)
		util.RespondWithAPIError(c, apierrors.InternalError("failed to delete comment"))
		return
	}

	if comment.IsDeleted {
		util.RespondWithAPIError(c, apierrors.NotFound("comment"))
		return
	}

	if err := deleteCommentTx(&comment); err != nil {
		logger.ErrorWithFields("failed to delete comment", err)
		util.RespondWithAPIError(c, apierrors.InternalError("failed to delete comment"))
		return
	}

	logger.InfoWithFields("comment removed by admin",
		zap.String("comment_id", comment.ID),
		zap.String("admin_id", adminID),
		logger.WithVideoID(comment.VideoID))

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// AdminBanUser bans an account and revokes its sessions. Banned users
// fail every authenticated request.
// POST /api/v1/admin/users/:id/ban
func (h *Handlers) AdminBanUser(c *gin.Context) {
	adminID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	targetID := c.Param("id")
	if targetID == adminID {
		util.RespondWithAPIError(c, apierrors.BadRequest("cannot ban yourself"))
		return
	}

	var target models.User
	err := database.DB.Where("id = ?", targetID).First(&target).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondWithAPIError(c, apierrors.NotFound("user"))
		return
	} else if err != nil {
		logger.ErrorWithFields("failed to load user", err)
		util.RespondWithAPIError(c, apierrors.InternalError("failed to ban user"))
		return
	}

	if target.IsAdmin {
		util.RespondWithAPIError(c, apierrors.Forbidden("cannot ban an admin"))
		return
	}

	now := time.Now().UTC()
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&target).UpdateColumn("is_banned", true).Error; err != nil {
			return err
		}
		return tx.Model(&models.Session{}).
			Where("user_id = ? AND revoked_at IS NULL", targetID).
			UpdateColumn("revoked_at", now).Error
	})
	if err != nil {
		logger.ErrorWithFields("failed to ban user", err)
		util.RespondWithAPIError(c, apierrors.InternalError("failed to ban user"))
		return
	}

	logger.InfoWithFields("user banned",
		logger.WithUserID(targetID),
		zap.String("admin_id", adminID))

	c.JSON(http.StatusOK, gin.H{"status": "banned"})
}

// DailyCount is one day of an admin stats time series
type DailyCount struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}

// AdminGetStats returns platform totals plus 30-day daily signup and
// upload series for the dashboard
// GET /api/v1/admin/stats
func (h *Handlers) AdminGetStats(c *gin.Context) {
	var stats struct {
		TotalUsers    int64 `json:"total_users"`
		TotalVideos   int64 `json:"total_videos"`
		TotalComments int64 `json:"total_comments"`
		TotalViews    int64 `json:"total_views"`
		BannedUsers   int64 `json:"banned_users"`
		FailedVideos  int64 `json:"failed_videos"`
	}

	database.DB.Model(&models.User{}).Count(&stats.TotalUsers)
	database.DB.Model(&models.Video{}).Count(&stats.TotalVideos)
	database.DB.Model(&models.Comment{}).Where("is_deleted = ?", false).Count(&stats.TotalComments)
	database.DB.Model(&models.User{}).Where("is_banned = ?", true).Count(&stats.BannedUsers)
	database.DB.Model(&models.Video{}).Where("processing_status = ?", models.ProcessingFailed).Count(&stats.FailedVideos)
	database.DB.Model(&models.Video{}).Select("COALESCE(SUM(view_count), 0)").Scan(&stats.TotalViews)

	since := time.Now().AddDate(0, 0, -30)

	signups, err := dailySeries("users", since)
	if err != nil {
		logger.ErrorWithFields("failed to load signup series", err)
		util.RespondWithAPIError(c, apierrors.InternalError("failed to load stats"))
		return
	}

	uploads, err := dailySeries("videos", since)
	if err != nil {
		logger.ErrorWithFields("failed to load upload series", err)
		util.RespondWithAPIError(c, apierrors.InternalError("failed to load stats"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"totals":         stats,
		"daily_signups":  signups,
		"daily_uploads":  uploads,
		"window_days":    30,
	})
}

// dailySeries groups a table's rows per day since the cutoff
func dailySeries(table string, since time.Time) ([]DailyCount, error) {
	var series []DailyCount
	err := database.DB.Raw(`
		SELECT to_char(date_trunc('day', created_at), 'YYYY-MM-DD') AS day,
		       COUNT(*) AS count
		FROM `+table+`
		WHERE created_at >= ? AND deleted_at IS NULL
		GROUP BY day
		ORDER BY day ASC
	`, since).Scan(&series).Error
	if series == nil {
		series = []DailyCount{}
	}
	return series, err
}
