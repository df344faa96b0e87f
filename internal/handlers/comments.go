package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

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

const (
	maxCommentLength  = 2000
	commentEditWindow = 15 * time.Minute
)

// deletedCommentPlaceholder replaces the content of removed comments
// that still have live replies
const deletedCommentPlaceholder = "[deleted]"

// CreateComment posts a comment or a one-level reply on a video.
// Replying to a reply re-parents to the top-level comment so threads
// stay flat.
// POST /api/v1/videos/:id/comments
func (h *Handlers) CreateComment(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var req struct {
		Content  string  `json:"content" binding:"required"`
		ParentID *string `json:"parent_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithAPIError(c, apierrors.ValidationError("content", "content is required"))
		return
	}

	content := strings.TrimSpace(req.Content)
	if content == "" || len(content) > maxCommentLength {
		util.RespondWithAPIError(c, apierrors.ValidationError("content", "content must be 1-2000 characters"))
		return
	}

	video, ok := h.loadWatchableVideo(c, c.Param("id"), user.ID)
	if !ok {
		return
	}

	// Validate and normalize threading before the transaction
	parentID := req.ParentID
	if parentID != nil {
		var parent models.Comment
		err := database.DB.Where("id = ? AND video_id = ?", *parentID, video.ID).First(&parent).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.RespondWithAPIError(c, apierrors.NotFound("parent comment"))
			return
		} else if err != nil {
			logger.ErrorWithFields("failed to load parent comment", err)
			util.RespondWithAPIError(c, apierrors.InternalError("failed to post comment"))
			return
		}
		if parent.ParentID != nil {
			parentID = parent.ParentID
		}
	}

	comment := models.Comment{
		VideoID:  video.ID,
		UserID:   user.ID,
		Content:  content,
		ParentID: parentID,
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&comment).Error; err != nil {
			return err
		}
		return tx.Model(&models.Video{}).Where("id = ?", video.ID).
			UpdateColumn("comment_count", gorm.Expr("comment_count + 1")).Error
	})
	if err != nil {
		logger.ErrorWithFields("failed to create comment", err)
		util.RespondWithAPIError(c, apierrors.InternalError("failed to post comment"))
		return
	}

	comment.User = *user
	kind := "comment"
	if comment.ParentID != nil {
		kind = "reply"
	}
	metrics.Get().CommentsTotal.WithLabelValues(kind).Inc()

	if h.notifyHub != nil && video.UserID != user.ID {
		h.notifyHub.SendToUser(video.UserID, notify.NewEvent(notify.EventNewComment, map[string]interface{}{
			"video_id":   video.ID,
			"comment_id": comment.ID,
			"username":   user.Username,
		}))
	}

	c.JSON(http.StatusCreated, gin.H{"comment": comment})
}

// GetComments lists a video's top-level comments, newest first, with
// reply counts
// GET /api/v1/videos/:id/comments
func (h *Handlers) GetComments(c *gin.Context) {
	videoID := c.Param("id")
	callerID, _ := c.Get("user_id")
	callerIDStr, _ := callerID.(string)

	if _, ok := h.loadWatchableVideoLoose(c, videoID, callerIDStr); !ok {
		return
	}

	limit, offset := util.ParsePagination(c.Query("limit"), c.Query("offset"), catalogDefaultLimit, catalogMaxLimit)

	var comments []models.Comment
	err := database.DB.
		Preload("User").
		Where("video_id = ? AND parent_id IS NULL", videoID).
		Order("created_at DESC").
		Limit(limit + 1).
		Offset(offset).
		Find(&comments).Error
	if err != nil {
		logger.ErrorWithFields("failed to load comments", err)
		util.RespondWithAPIError(c, apierrors.InternalError("failed to load comments"))
		return
	}

	hasMore := len(comments) > limit
	if hasMore {
		comments = comments[:limit]
	}

	type commentWithReplies struct {
		models.Comment
		ReplyCount int64 `json:"reply_count"`
	}

	out := make([]commentWithReplies, 0, len(comments))
	for _, comment := range comments {
		maskDeletedComment(&comment)

		var replyCount int64
		database.DB.Model(&models.Comment{}).
			Where("parent_id = ?", comment.ID).
			Count(&replyCount)

		// Deleted leaves disappear entirely; deleted comments with
		// replies stay as placeholders to keep the thread readable
		if comment.IsDeleted && replyCount == 0 {
			continue
		}

		out = append(out, commentWithReplies{Comment: comment, ReplyCount: replyCount})
	}

	c.JSON(http.StatusOK, gin.H{
		"comments": out,
		"limit":    limit,
		"offset":   offset,
		"has_more": hasMore,
	})
}

// GetReplies lists replies to a comment, oldest first
// GET /api/v1/comments/:id/replies
func (h *Handlers) GetReplies(c *gin.Context) {
	commentID := c.Param("id")

	var parent models.Comment
	err := database.DB.Where("id = ?", commentID).First(&parent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondWithAPIError(c, apierrors.NotFound("comment"))
		return
	} else if err != nil {
		logger.ErrorWithFields("failed to load comment", err)
		util.RespondWithAPIError(c, apierrors.InternalError("failed to load replies"))
		return
	}

	limit, offset := util.ParsePagination(c.Query("limit"), c.Query("offset"), catalogDefaultLimit, catalogMaxLimit)

	var replies []models.Comment
	err = database.DB.
		Preload("User").
		Where("parent_id = ? AND is_deleted = ?", commentID, false).
		Order("created_at ASC").
		Limit(limit + 1).
		Offset(offset).
		Find(&replies).Error
	if err != nil {
		logger.ErrorWithFields("failed to load replies", err)
		util.RespondWithAPIError(c, apierrors.InternalError("failed to load replies"))
		return
	}

	hasMore := len(replies) > limit
	if hasMore {
		replies = replies[:limit]
	}

	c.JSON(http.StatusOK, gin.H{
		"replies":  replies,
		"limit":    limit,
		"offset":   offset,
		"has_more": hasMore,
	})
}

// UpdateComment lets the author edit within the edit window
// PUT /api/v1/comments/:id
func (h *Handlers) UpdateComment(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithAPIError(c, apierrors.ValidationError("content", "content is required"))
		return
	}

	content := strings.TrimSpace(req.Content)
	if content == "" || len(content) > maxCommentLength {
		util.RespondWithAPIError(c, apierrors.ValidationError("content", "content must be 1-2000 characters"))
		return
	}

	var comment models.Comment
	err := database.DB.Where("id = ?", c.Param("id")).First(&comment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondWithAPIError(c, apierrors.NotFound("comment"))
		return
	} else if err != nil {
		logger.ErrorWithFields("failed to load comment", err)
		util.RespondWithAPIError(c, apierrors.InternalError("failed to update comment"))
		return
	}

	if comment.UserID != userID {
		util.RespondWithAPIError(c, apierrors.Forbidden("not your comment"))
		return
	}
	if comment.IsDeleted {
		util.RespondWithAPIError(c, apierrors.BadRequest("comment has been deleted"))
		return
	}
	if time.Since(comment.CreatedAt) > commentEditWindow {
		util.RespondWithAPIError(c, apierrors.BadRequest("edit window has expired"))
		return
	}

	now := time.Now().UTC()
	err = database.DB.Model(&comment).Updates(map[string]interface{}{
		"content":   content,
		"is_edited": true,
		"edited_at": now,
	}).Error
	if err != nil {
		logger.ErrorWithFields("failed to update comment", err)
		util.RespondWithAPIError(c, apierrors.InternalError("failed to update comment"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"comment": comment})
}

// DeleteComment removes a comment. The author, the video owner, and
// admins may delete.
// DELETE /api/v1/comments/:id
func (h *Handlers) DeleteComment(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
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

	if !user.IsAdmin && comment.UserID != user.ID {
		var video models.Video
		if err := database.DB.Select("user_id").Where("id = ?", comment.VideoID).First(&video).Error; err != nil ||
			video.UserID != user.ID {
			util.RespondWithAPIError(c, apierrors.Forbidden("cannot delete this comment"))
			return
		}
	}

	if err := deleteCommentTx(&comment); err != nil {
		logger.ErrorWithFields("failed to delete comment", err)
		util.RespondWithAPIError(c, apierrors.InternalError("failed to delete comment"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// deleteCommentTx flags the comment deleted and decrements the video's
// comment counter in one transaction
func deleteCommentTx(comment *models.Comment) error {
	return database.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(comment).UpdateColumn("is_deleted", true).Error; err != nil {
			return err
		}
		return tx.Model(&models.Video{}).Where("id = ?", comment.VideoID).
			UpdateColumn("comment_count", gorm.Expr("GREATEST(comment_count - 1, 0)")).Error
	})
}

// maskDeletedComment blanks out a deleted comment's content and author
func maskDeletedComment(comment *models.Comment) {
	if !comment.IsDeleted {
		return
	}
	comment.Content = deletedCommentPlaceholder
	comment.User = models.User{}
	comment.UserID = ""
}

// loadWatchableVideoLoose is loadWatchableVideo for endpoints with
// optional auth, where the caller may be anonymous
func (h *Handlers) loadWatchableVideoLoose(c *gin.Context, videoID, callerID string) (*models.Video, bool) {
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
	if !video.Watchable() && (callerID == "" || video.UserID != callerID) {
		util.RespondWithAPIError(c, apierrors.NotFound("video"))
		return nil, false
	}
	return &video, true
}
