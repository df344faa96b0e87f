package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/clipstream/backend/internal/database"
	apierrors "github.com/zfogg/clipstream/backend/internal/errors"
	"github.com/zfogg/clipstream/backend/internal/logger"
	"github.com/zfogg/clipstream/backend/internal/metrics"
	"github.com/zfogg/clipstream/backend/internal/models"
	"github.com/zfogg/clipstream/backend/internal/search"
	"github.com/zfogg/clipstream/backend/internal/util"
	"go.uber.org/zap"
)

const (
	catalogDefaultLimit = 20
	catalogMaxLimit     = 50
)

// GetCatalog lists public, fully processed videos
// GET /api/v1/catalog?sort=recent|popular|views&tag=&limit=&offset=
func (h *Handlers) GetCatalog(c *gin.Context) {
	limit, offset := util.ParsePagination(c.Query("limit"), c.Query("offset"), catalogDefaultLimit, catalogMaxLimit)

	query := database.DB.Model(&models.Video{}).
		Preload("User").
		Where("is_public = ? AND processing_status = ?", true, models.ProcessingComplete)

	if tag := strings.ToLower(strings.TrimSpace(c.Query("tag"))); tag != "" {
		query = query.Where("? = ANY(tags)", tag)
	}

	switch c.DefaultQuery("sort", "recent") {
	case "popular":
		query = query.Order("like_count DESC, created_at DESC")
	case "views":
		query = query.Order("view_count DESC, created_at DESC")
	case "recent":
		query = query.Order("created_at DESC")
	default:
		util.RespondWithAPIError(c, apierrors.ValidationError("sort", "sort must be recent, popular, or views"))
		return
	}

	var videos []models.Video
	// Fetch one extra row to compute has_more without a count query
	if err := query.Limit(limit + 1).Offset(offset).Find(&videos).Error; err != nil {
		logger.ErrorWithFields("failed to load catalog", err)
		util.RespondWithAPIError(c, apierrors.InternalError("failed to load catalog"))
		return
	}

	hasMore := len(videos) > limit
	if hasMore {
		videos = videos[:limit]
	}

	c.JSON(http.StatusOK, gin.H{
		"videos":   videos,
		"limit":    limit,
		"offset":   offset,
		"has_more": hasMore,
	})
}

// SearchCatalog searches videos via Elasticsearch, falling back to SQL
// when the search cluster is unavailable
// GET /api/v1/catalog/search?q=&tag=&limit=&offset=
func (h *Handlers) SearchCatalog(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		util.RespondWithAPIError(c, apierrors.ValidationError("q", "search query is required"))
		return
	}

	limit, offset := util.ParsePagination(c.Query("limit"), c.Query("offset"), catalogDefaultLimit, catalogMaxLimit)
	tags := util.ParseTagArray(c.Query("tag"))

	if h.search != nil {
		result, err := h.search.SearchVideos(c.Request.Context(), search.SearchVideosParams{
			Query:  q,
			Tags:   tags,
			Limit:  limit,
			Offset: offset,
		})
		if err == nil {
			metrics.RecordSearch("elasticsearch")
			videos := h.hydrateSearchHits(result.Videos)
			c.JSON(http.StatusOK, gin.H{
				"videos":  videos,
				"total":   result.Total,
				"limit":   limit,
				"offset":  offset,
				"backend": "elasticsearch",
			})
			return
		}
		logger.Log.Warn("search query failed, falling back to SQL", zap.Error(err))
	}

	metrics.RecordSearch("sql")
	videos, err := h.sqlSearch(q, tags, limit, offset)
	if err != nil {
		logger.ErrorWithFields("sql search failed", err)
		util.RespondWithAPIError(c, apierrors.InternalError("search failed"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"videos":  videos,
		"limit":   limit,
		"offset":  offset,
		"backend": "sql",
	})
}

// hydrateSearchHits loads the database rows for search hits, preserving
// relevance order. Hits whose rows vanished since indexing are dropped.
func (h *Handlers) hydrateSearchHits(hits []search.VideoSearchHit) []models.Video {
	if len(hits) == 0 {
		return []models.Video{}
	}

	ids := make([]string, 0, len(hits))
	for _, hit := range hits {
		ids = append(ids, hit.ID)
	}

	var rows []models.Video
	err := database.DB.Preload("User").
		Where("id IN ? AND is_public = ? AND processing_status = ?", ids, true, models.ProcessingComplete).
		Find(&rows).Error
	if err != nil {
		logger.ErrorWithFields("failed to hydrate search hits", err)
		return []models.Video{}
	}

	byID := make(map[string]models.Video, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}

	videos := make([]models.Video, 0, len(hits))
	for _, hit := range hits {
		if video, ok := byID[hit.ID]; ok {
			videos = append(videos, video)
		}
	}
	return videos
}

// sqlSearch is the ILIKE fallback used when Elasticsearch is down.
// Matches title, description, and exact tag, like the indexed search does.
func (h *Handlers) sqlSearch(q string, tags []string, limit, offset int) ([]models.Video, error) {
	pattern := "%" + q + "%"

	query := database.DB.Model(&models.Video{}).
		Preload("User").
		Where("is_public = ? AND processing_status = ?", true, models.ProcessingComplete).
		Where("title ILIKE ? OR description ILIKE ? OR ? = ANY(tags)", pattern, pattern, strings.ToLower(q))

	for _, tag := range tags {
		query = query.Where("? = ANY(tags)", tag)
	}

	var videos []models.Video
	err := query.Order("like_count DESC, created_at DESC").
		Limit(limit).Offset(offset).
		Find(&videos).Error
	if videos == nil {
		videos = []models.Video{}
	}
	return videos, err
}

// GetTags returns distinct tags with usage counts across public videos
// GET /api/v1/catalog/tags
func (h *Handlers) GetTags(c *gin.Context) {
	limit := util.ParseInt(c.Query("limit"), 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}

	type tagCount struct {
		Tag   string `json:"tag"`
		Count int64  `json:"count"`
	}

	var results []tagCount
	err := database.DB.Raw(`
		SELECT unnest(tags) AS tag, COUNT(*) AS count
		FROM videos
		WHERE is_public = true
		  AND processing_status = 'complete'
		  AND deleted_at IS NULL
		GROUP BY tag
		ORDER BY count DESC, tag ASC
		LIMIT ?
	`, limit).Scan(&results).Error
	if err != nil {
		logger.ErrorWithFields("failed to load tags", err)
		util.RespondWithAPIError(c, apierrors.InternalError("failed to load tags"))
		return
	}

	if results == nil {
		results = []tagCount{}
	}

	c.JSON(http.StatusOK, gin.H{"tags": results})
}

// GetUserVideos lists a user's videos. Owners see everything including
// private and still-processing uploads; everyone else sees only public,
// complete videos.
// GET /api/v1/users/:id/videos
func (h *Handlers) GetUserVideos(c *gin.Context) {
	targetID := c.Param("id")
	callerID, _ := c.Get("user_id")

	limit, offset := util.ParsePagination(c.Query("limit"), c.Query("offset"), catalogDefaultLimit, catalogMaxLimit)

	query := database.DB.Model(&models.Video{}).
		Preload("User").
		Where("user_id = ?", targetID)

	if callerID != targetID {
		query = query.Where("is_public = ? AND processing_status = ?", true, models.ProcessingComplete)
	}

	var videos []models.Video
	if err := query.Order("created_at DESC").Limit(limit + 1).Offset(offset).Find(&videos).Error; err != nil {
		logger.ErrorWithFields("failed to load user videos", err)
		util.RespondWithAPIError(c, apierrors.InternalError("failed to load videos"))
		return
	}

	hasMore := len(videos) > limit
	if hasMore {
		videos = videos[:limit]
	}

	c.JSON(http.StatusOK, gin.H{
		"videos":   videos,
		"limit":    limit,
		"offset":   offset,
		"has_more": hasMore,
	})
}
