package handlers

import (
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

type WatchlistTestSuite struct {
	suite.Suite
	db        *gorm.DB
	router    *gin.Engine
	handlers  *Handlers
	testUser  *models.User
	testVideo *models.Video
}

func (suite *WatchlistTestSuite) SetupSuite() {
	suite.db = openTestDB(suite.T())
	suite.handlers = NewHandlers(nil, nil)

	gin.SetMode(gin.TestMode)
	suite.router = gin.New()

	api := suite.router.Group("/api/v1")
	api.Use(testAuthMiddleware(suite.db))
	api.POST("/videos/:id/watchlist", suite.handlers.AddToWatchlist)
	api.DELETE("/videos/:id/watchlist", suite.handlers.RemoveFromWatchlist)
	api.GET("/videos/:id/watchlisted", suite.handlers.CheckWatchlisted)
	api.GET("/users/me/watchlist", suite.handlers.GetWatchlist)
}

func (suite *WatchlistTestSuite) TearDownSuite() {
	if suite.db != nil {
		sqlDB, _ := suite.db.DB()
		sqlDB.Close()
	}
}

func (suite *WatchlistTestSuite) SetupTest() {
	suite.db.Exec("TRUNCATE TABLE reactions, watchlist_items, comments, videos RESTART IDENTITY CASCADE")
	suite.db.Exec("TRUNCATE TABLE users RESTART IDENTITY CASCADE")

	suite.testUser = createTestUser(suite.T(), suite.db, "watcher")
	suite.testVideo = createTestVideo(suite.T(), suite.db, suite.testUser)
}

func (suite *WatchlistTestSuite) save(userID, videoID string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("POST", "/api/v1/videos/"+videoID+"/watchlist", nil)
	req.Header.Set("X-User-ID", userID)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *WatchlistTestSuite) TestSaveVideo() {
	t := suite.T()

	w := suite.save(suite.testUser.ID, suite.testVideo.ID)
	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, "saved", response["status"])

	var video models.Video
	suite.db.First(&video, "id = ?", suite.testVideo.ID)
	assert.Equal(t, 1, video.WatchlistCount)
}

func (suite *WatchlistTestSuite) TestSaveIsIdempotent() {
	t := suite.T()

	suite.save(suite.testUser.ID, suite.testVideo.ID)
	w := suite.save(suite.testUser.ID, suite.testVideo.ID)
	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, "already_saved", response["status"])

	var video models.Video
	suite.db.First(&video, "id = ?", suite.testVideo.ID)
	assert.Equal(t, 1, video.WatchlistCount)
}

func (suite *WatchlistTestSuite) TestRemoveSavedVideo() {
	t := suite.T()

	suite.save(suite.testUser.ID, suite.testVideo.ID)

	req, _ := http.NewRequest("DELETE", "/api/v1/videos/"+suite.testVideo.ID+"/watchlist", nil)
	req.Header.Set("X-User-ID", suite.testUser.ID)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var video models.Video
	suite.db.First(&video, "id = ?", suite.testVideo.ID)
	assert.Equal(t, 0, video.WatchlistCount)
}

func (suite *WatchlistTestSuite) TestRemoveUnsavedVideoReturns404() {
	t := suite.T()

	req, _ := http.NewRequest("DELETE", "/api/v1/videos/"+suite.testVideo.ID+"/watchlist", nil)
	req.Header.Set("X-User-ID", suite.testUser.ID)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func (suite *WatchlistTestSuite) TestCheckWatchlisted() {
	t := suite.T()

	req, _ := http.NewRequest("GET", "/api/v1/videos/"+suite.testVideo.ID+"/watchlisted", nil)
	req.Header.Set("X-User-ID", suite.testUser.ID)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, false, response["watchlisted"])

	suite.save(suite.testUser.ID, suite.testVideo.ID)

	w = httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, true, response["watchlisted"])
}

func (suite *WatchlistTestSuite) TestGetWatchlistHidesPrivateVideos() {
	t := suite.T()

	other := createTestUser(t, suite.db, "uploader")
	publicVideo := createTestVideo(t, suite.db, other)
	privateVideo := createTestVideo(t, suite.db, other)

	suite.save(suite.testUser.ID, publicVideo.ID)
	suite.save(suite.testUser.ID, privateVideo.ID)

	// Uploader flips the second video private after it was saved
	suite.db.Model(&models.Video{}).Where("id = ?", privateVideo.ID).
		UpdateColumn("is_public", false)

	req, _ := http.NewRequest("GET", "/api/v1/users/me/watchlist", nil)
	req.Header.Set("X-User-ID", suite.testUser.ID)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Watchlist []models.WatchlistItem `json:"watchlist"`
		HasMore   bool                   `json:"has_more"`
	}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Len(t, response.Watchlist, 1)
	assert.Equal(t, publicVideo.ID, response.Watchlist[0].VideoID)
	assert.False(t, response.HasMore)
}

func TestWatchlistTestSuite(t *testing.T) {
	suite.Run(t, new(WatchlistTestSuite))
}
