package search

import (
	"time"

	"github.com/zfogg/clipstream/backend/internal/models"
)

// VideoDocument builds the Elasticsearch document for a video.
// Only public, fully processed videos should be indexed.
func VideoDocument(video *models.Video) map[string]interface{} {
	return map[string]interface{}{
		"id":            video.ID,
		"user_id":       video.UserID,
		"username":      video.User.Username,
		"title":         video.Title,
		"description":   video.Description,
		"tags":          []string(video.Tags),
		"duration":      video.Duration,
		"like_count":    video.LikeCount,
		"view_count":    video.ViewCount,
		"comment_count": video.CommentCount,
		"created_at":    video.CreatedAt.UTC().Format(time.RFC3339),
	}
}
