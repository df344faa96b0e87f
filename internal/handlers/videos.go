package handlers

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/clipstream/backend/internal/database"
	apierrors "github.com/zfogg/clipstream/backend/internal/errors"
	"github.com/zfogg/clipstream/backend/internal/logger"
	"github.com/zfogg/clipstream/backend/internal/metrics"
	"github.com/zfogg/clipstream/backend/internal/middleware"
	"github.com/zfogg/clipstream/backend/internal/models"
	"github.com/zfogg/clipstream/backend/internal/search"
	"github.com/zfogg/clipstream/backend/internal/util"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var uploadTempDir = filepath.Join(os.TempDir(), "clipstream_uploads")

// UploadVideo accepts a multipart video upload and queues it for
// processing. The response carries the video row (pending) and a job ID
// the client can poll.
// POST /api/v1/videos
func (h *Handlers) UploadVideo(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	file, err := c.FormFile("video")
	if err != nil {
		util.RespondWithAPIError(c, apierrors.BadRequest("video file is required"))
		return
	}

	if !isValidVideoFile(file.Filename) {
		util.RespondWithAPIError(c, apierrors.ValidationError("video", "unsupported video format"))
		return
	}
	if file.Size > maxVideoUploadSize {
		util.RespondWithAPIError(c, apierrors.PayloadTooLarge("video exceeds maximum upload size"))
		return
	}

	title := strings.TrimSpace(c.PostForm("title"))
	if title == "" {
		util.RespondWithAPIError(c, apierrors.ValidationError("title", "title is required"))
		return
	}
	if len(title) > 120 {
		util.RespondWithAPIError(c, apierrors.ValidationError("title", "title must be at most 120 characters"))
		return
	}

	description := strings.TrimSpace(c.PostForm("description"))
	tags := util.ParseTagArray(c.PostForm("tags"))

	isPublic := true
	if v := c.PostForm("is_public"); v == "false" {
		isPublic = false
	}

	tempPath, err := saveUploadedFile(file, uploadTempDir)
	if err != nil {
		logger.ErrorWithFields("failed to save uploaded video", err)
		util.RespondWithAPIError(c, apierrors.InternalError("failed to store upload"))
		return
	}

	// Optional pre-made thumbnail
	thumbTempPath := ""
	if thumbFile, err := c.FormFile("thumbnail"); err == nil {
		if !isValidImageFile(thumbFile.Filename) {
			os.Remove(tempPath)
			util.RespondWithAPIError(c, apierrors.ValidationError("thumbnail", "unsupported image format"))
			return
		}
		if thumbFile.Size > maxThumbnailUploadSize {
			os.Remove(tempPath)
			util.RespondWithAPIError(c, apierrors.PayloadTooLarge("thumbnail exceeds maximum upload size"))
			return
		}
		thumbTempPath, err = saveUploadedFile(thumbFile, uploadTempDir)
		if err != nil {
			os.Remove(tempPath)
			logger.ErrorWithFields("failed to save uploaded thumbnail", err)
			util.RespondWithAPIError(c, apierrors.InternalError("failed to store upload"))
			return
		}
	}

	video := models.Video{
		UserID:           user.ID,
		OriginalFilename: file.Filename,
		FileSize:         file.Size,
		Title:            title,
		Description:      description,
		Tags:             tags,
		IsPublic:         isPublic,
		ProcessingStatus: models.ProcessingPending,
	}

	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&video).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", user.ID).
			UpdateColumn("video_count", gorm.Expr("video_count + 1")).Error
	})
	if err != nil {
		os.Remove(tempPath)
		if thumbTempPath != "" {
			os.Remove(thumbTempPath)
		}
		logger.ErrorWithFields("failed to create video row", err)
		util.RespondWithAPIError(c, apierrors.InternalError("failed to create video"))
		return
	}

	job, err := h.processor.SubmitJob(user.ID, video.ID, tempPath, thumbTempPath, file.Filename)
	if err != nil {
		logger.ErrorWithFields("failed to queue video job", err)
		util.RespondWithAPIError(c, apierrors.ServiceUnavailable("video processing"))
		return
	}

	metrics.Get().VideosUploadedTotal.WithLabelValues("accepted").Inc()
	logger.InfoWithFields("video upload accepted",
		logger.WithUserID(user.ID),
		logger.WithVideoID(video.ID),
		zap.String("job_id", job.ID),
		zap.Int64("size", file.Size))

	c.JSON(http.StatusAccepted, gin.H{
		"video":  video,
		"job_id": job.ID,
		"status": job.Status,
	})
}

// GetUploadStatus polls a processing job
// GET /api/v1/videos/status/:job_id
func (h *Handlers) GetUploadStatus(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	job, err := h.processor.GetJobStatus(c.Param("job_id"))
	if err != nil {
		util.RespondWithAPIError(c, apierrors.NotFound("job"))
		return
	}

	if job.UserID != userID {
		util.RespondWithAPIError(c, apierrors.Forbidden("not your upload"))
		return
	}

	resp := gin.H{
		"job_id":   job.ID,
		"video_id": job.VideoID,
		"status":   job.Status,
	}
	if job.ErrorMessage != "" {
		resp["error"] = job.ErrorMessage
	}
	if job.CompletedAt != nil {
		resp["completed_at"] = job.CompletedAt
	}

	c.JSON(http.StatusOK, resp)
}

// GetVideo returns a single video with the caller's engagement state
// and bumps the view counter.
// GET /api/v1/videos/:id
func (h *Handlers) GetVideo(c *gin.Context) {
	videoID := c.Param("id")
	callerID, _ := c.Get("user_id")

	var video models.Video
	err := database.DB.Preload("User").Where("id = ?", videoID).First(&video).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondWithAPIError(c, apierrors.NotFound("video"))
		return
	} else if err != nil {
		logger.ErrorWithFields("failed to load video", err)
		util.RespondWithAPIError(c, apierrors.InternalError("failed to load video"))
		return
	}

	isOwner := callerID == video.UserID
	if !video.Watchable() && !isOwner {
		util.RespondWithAPIError(c, apierrors.NotFound("video"))
		return
	}

	// Owner views don't count
	if !isOwner {
		database.DB.Model(&video).UpdateColumn("view_count", gorm.Expr("view_count + 1"))
		video.ViewCount++
	}

	resp := gin.H{"video": video}
	if callerIDStr, ok := callerID.(string); ok {
		resp["viewer"] = h.viewerState(callerIDStr, video.ID)
	}

	c.JSON(http.StatusOK, resp)
}

// viewerState returns the caller's reaction and watchlist membership
func (h *Handlers) viewerState(userID, videoID string) gin.H {
	state := gin.H{
		"reaction":    nil,
		"watchlisted": false,
	}

	var reaction models.Reaction
	if err := database.DB.Where("user_id = ? AND video_id = ?", userID, videoID).
		First(&reaction).Error; err == nil {
		state["reaction"] = reaction.Type
	}

	var count int64
	database.DB.Model(&models.WatchlistItem{}).
		Where("user_id = ? AND video_id = ?", userID, videoID).
		Count(&count)
	state["watchlisted"] = count > 0

	return state
}

// UpdateVideo lets the owner edit catalog metadata
// PUT /api/v1/videos/:id
func (h *Handlers) UpdateVideo(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req struct {
		Title       *string  `json:"title"`
		Description *string  `json:"description"`
		Tags        []string `json:"tags"`
		IsPublic    *bool    `json:"is_public"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithAPIError(c, apierrors.ValidationError("", err.Error()))
		return
	}

	var video models.Video
	err := database.DB.Where("id = ?", c.Param("id")).First(&video).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondWithAPIError(c, apierrors.NotFound("video"))
		return
	} else if err != nil {
		logger.ErrorWithFields("failed to load video", err)
		util.RespondWithAPIError(c, apierrors.InternalError("failed to load video"))
		return
	}

	if video.UserID != userID {
		util.RespondWithAPIError(c, apierrors.Forbidden("not your video"))
		return
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" || len(title) > 120 {
			util.RespondWithAPIError(c, apierrors.ValidationError("title", "title must be 1-120 characters"))
			return
		}
		updates["title"] = title
	}
	if req.Description != nil {
		updates["description"] = strings.TrimSpace(*req.Description)
	}
	if req.Tags != nil {
		updates["tags"] = models.StringArray(util.ParseTagArray(strings.Join(req.Tags, ",")))
	}
	if req.IsPublic != nil {
		updates["is_public"] = *req.IsPublic
	}

	if len(updates) == 0 {
		c.JSON(http.StatusOK, gin.H{"video": video})
		return
	}

	if err := database.DB.Model(&video).Updates(updates).Error; err != nil {
		logger.ErrorWithFields("failed to update video", err)
		util.RespondWithAPIError(c, apierrors.InternalError("failed to update video"))
		return
	}

	h.syncSearchIndex(&video)

	c.JSON(http.StatusOK, gin.H{"video": video})
}

// DeleteVideo soft-deletes the video and cleans up stored media
// DELETE /api/v1/videos/:id
func (h *Handlers) DeleteVideo(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
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
		util.RespondWithAPIError(c, apierrors.InternalError("failed to load video"))
		return
	}

	if video.UserID != userID {
		util.RespondWithAPIError(c, apierrors.Forbidden("not your video"))
		return
	}

	if err := h.removeVideo(c.Request.Context(), &video); err != nil {
		logger.ErrorWithFields("failed to delete video", err)
		util.RespondWithAPIError(c, apierrors.InternalError("failed to delete video"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// removeVideo soft-deletes the row, decrements the owner's video count,
// removes stored media, and drops the search document. Storage and index
// cleanup are best effort once the row is gone.
func (h *Handlers) removeVideo(ctx context.Context, video *models.Video) error {
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(video).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ? AND video_count > 0", video.UserID).
			UpdateColumn("video_count", gorm.Expr("video_count - 1")).Error
	})
	if err != nil {
		return err
	}

	for _, key := range []string{video.StorageKey, video.ThumbnailKey} {
		if key == "" {
			continue
		}
		if err := h.store.Delete(ctx, key); err != nil {
			logger.Log.Warn("failed to delete stored media",
				logger.WithVideoID(video.ID),
				zap.String("key", key),
				zap.Error(err))
		}
	}

	if h.search != nil {
		deleteCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.search.DeleteVideo(deleteCtx, video.ID); err != nil {
			logger.Log.Warn("failed to remove video from search index",
				logger.WithVideoID(video.ID),
				zap.Error(err))
		}
	}

	middleware.InvalidateResponseCache("/api/v1/catalog")

	return nil
}

// syncSearchIndex reindexes a video, or drops it when it is no longer
// publicly watchable. Cached catalog pages are invalidated either way.
func (h *Handlers) syncSearchIndex(video *models.Video) {
	middleware.InvalidateResponseCache("/api/v1/catalog")

	if h.search == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var fresh models.Video
	if err := database.DB.Preload("User").Where("id = ?", video.ID).First(&fresh).Error; err != nil {
		return
	}

	if !fresh.Watchable() {
		if err := h.search.DeleteVideo(ctx, fresh.ID); err != nil {
			logger.Log.Warn("failed to remove video from search index",
				logger.WithVideoID(fresh.ID), zap.Error(err))
		}
		return
	}

	if err := h.search.IndexVideo(ctx, fresh.ID, search.VideoDocument(&fresh)); err != nil {
		logger.Log.Warn("failed to index video",
			logger.WithVideoID(fresh.ID), zap.Error(err))
	}
}
