package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/zfogg/clipstream/backend/internal/models"
	"gorm.io/gorm"
)

type ReactionTestSuite struct {
	suite.Suite
	db        *gorm.DB
	router    *gin.Engine
	handlers  *Handlers
	testUser  *models.User
	testVideo *models.Video
}

func (suite *ReactionTestSuite) SetupSuite() {
	suite.db = openTestDB(suite.T())
	suite.handlers = NewHandlers(nil, nil)

	gin.SetMode(gin.TestMode)
	suite.router = gin.New()

	videos := suite.router.Group("/api/v1/videos")
	videos.Use(testAuthMiddleware(suite.db))
	videos.POST("/:id/reaction", suite.handlers.SetReaction)
	videos.DELETE("/:id/reaction", suite.handlers.RemoveReaction)
	videos.GET("/:id/reactions", suite.handlers.GetReactions)
}

func (suite *ReactionTestSuite) TearDownSuite() {
	if suite.db != nil {
		sqlDB, _ := suite.db.DB()
		sqlDB.Close()
	}
}

func (suite *ReactionTestSuite) SetupTest() {
	suite.db.Exec("TRUNCATE TABLE reactions, watchlist_items, comments, videos RESTART IDENTITY CASCADE")
	suite.db.Exec("TRUNCATE TABLE users RESTART IDENTITY CASCADE")

	suite.testUser = createTestUser(suite.T(), suite.db, "reactor")
	suite.testVideo = createTestVideo(suite.T(), suite.db, suite.testUser)
}

func (suite *ReactionTestSuite) react(userID, videoID, reactionType string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(map[string]string{"type": reactionType})
	req, _ := http.NewRequest("POST", "/api/v1/videos/"+videoID+"/reaction", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", userID)

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *ReactionTestSuite) TestLikeIncrementsCounter() {
	t := suite.T()

	w := suite.react(suite.testUser.ID, suite.testVideo.ID, "like")
	assert.Equal(t, http.StatusOK, w.Code)

	var video models.Video
	suite.db.First(&video, "id = ?", suite.testVideo.ID)
	assert.Equal(t, 1, video.LikeCount)
	assert.Equal(t, 0, video.DislikeCount)

	var reactionCount int64
	suite.db.Model(&models.Reaction{}).
		Where("user_id = ? AND video_id = ?", suite.testUser.ID, suite.testVideo.ID).
		Count(&reactionCount)
	assert.Equal(t, int64(1), reactionCount)
}

func (suite *ReactionTestSuite) TestRepeatedLikeIsNoOp() {
	t := suite.T()

	suite.react(suite.testUser.ID, suite.testVideo.ID, "like")
	w := suite.react(suite.testUser.ID, suite.testVideo.ID, "like")
	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, "unchanged", response["status"])

	var video models.Video
	suite.db.First(&video, "id = ?", suite.testVideo.ID)
	assert.Equal(t, 1, video.LikeCount)
}

func (suite *ReactionTestSuite) TestSwitchFlipsBothCounters() {
	t := suite.T()

	suite.react(suite.testUser.ID, suite.testVideo.ID, "like")
	w := suite.react(suite.testUser.ID, suite.testVideo.ID, "dislike")
	assert.Equal(t, http.StatusOK, w.Code)

	var video models.Video
	suite.db.First(&video, "id = ?", suite.testVideo.ID)
	assert.Equal(t, 0, video.LikeCount)
	assert.Equal(t, 1, video.DislikeCount)

	// Still exactly one row for this (user, video)
	var reactionCount int64
	suite.db.Model(&models.Reaction{}).
		Where("user_id = ? AND video_id = ?", suite.testUser.ID, suite.testVideo.ID).
		Count(&reactionCount)
	assert.Equal(t, int64(1), reactionCount)
}

func (suite *ReactionTestSuite) TestRemoveReaction() {
	t := suite.T()

	suite.react(suite.testUser.ID, suite.testVideo.ID, "like")

	req, _ := http.NewRequest("DELETE", "/api/v1/videos/"+suite.testVideo.ID+"/reaction", nil)
	req.Header.Set("X-User-ID", suite.testUser.ID)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var video models.Video
	suite.db.First(&video, "id = ?", suite.testVideo.ID)
	assert.Equal(t, 0, video.LikeCount)
}

func (suite *ReactionTestSuite) TestRemoveMissingReactionReturns404() {
	t := suite.T()

	req, _ := http.NewRequest("DELETE", "/api/v1/videos/"+suite.testVideo.ID+"/reaction", nil)
	req.Header.Set("X-User-ID", suite.testUser.ID)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func (suite *ReactionTestSuite) TestInvalidReactionTypeRejected() {
	t := suite.T()

	w := suite.react(suite.testUser.ID, suite.testVideo.ID, "love")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func (suite *ReactionTestSuite) TestGetReactionsIncludesCallerState() {
	t := suite.T()

	other := createTestUser(t, suite.db, "other")
	suite.react(other.ID, suite.testVideo.ID, "like")
	suite.react(suite.testUser.ID, suite.testVideo.ID, "dislike")

	req, _ := http.NewRequest("GET", "/api/v1/videos/"+suite.testVideo.ID+"/reactions", nil)
	req.Header.Set("X-User-ID", suite.testUser.ID)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, float64(1), response["like_count"])
	assert.Equal(t, float64(1), response["dislike_count"])
	assert.Equal(t, "dislike", response["reaction"])
}

func TestReactionTestSuite(t *testing.T) {
	suite.Run(t, new(ReactionTestSuite))
}
