package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/zfogg/clipstream/backend/internal/models"
	"gorm.io/gorm"
)

type CommentTestSuite struct {
	suite.Suite
	db        *gorm.DB
	router    *gin.Engine
	handlers  *Handlers
	testUser  *models.User
	testVideo *models.Video
}

func (suite *CommentTestSuite) SetupSuite() {
	suite.db = openTestDB(suite.T())
	suite.handlers = NewHandlers(nil, nil)

	gin.SetMode(gin.TestMode)
	suite.router = gin.New()

	api := suite.router.Group("/api/v1")
	api.Use(testAuthMiddleware(suite.db))
	api.POST("/videos/:id/comments", suite.handlers.CreateComment)
	api.GET("/videos/:id/comments", suite.handlers.GetComments)
	api.GET("/comments/:id/replies", suite.handlers.GetReplies)
	api.PUT("/comments/:id", suite.handlers.UpdateComment)
	api.DELETE("/comments/:id", suite.handlers.DeleteComment)
}

func (suite *CommentTestSuite) TearDownSuite() {
	if suite.db != nil {
		sqlDB, _ := suite.db.DB()
		sqlDB.Close()
	}
}

func (suite *CommentTestSuite) SetupTest() {
	suite.db.Exec("TRUNCATE TABLE reactions, watchlist_items, comments, videos RESTART IDENTITY CASCADE")
	suite.db.Exec("TRUNCATE TABLE users RESTART IDENTITY CASCADE")

	suite.testUser = createTestUser(suite.T(), suite.db, "commenter")
	suite.testVideo = createTestVideo(suite.T(), suite.db, suite.testUser)
}

func (suite *CommentTestSuite) postComment(userID, videoID, content string, parentID *string) *httptest.ResponseRecorder {
	payload := map[string]interface{}{"content": content}
	if parentID != nil {
		payload["parent_id"] = *parentID
	}
	body, _ := json.Marshal(payload)

	req, _ := http.NewRequest("POST", "/api/v1/videos/"+videoID+"/comments", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", userID)

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *CommentTestSuite) createdCommentID(w *httptest.ResponseRecorder) string {
	var response struct {
		Comment models.Comment `json:"comment"`
	}
	require.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &response))
	require.NotEmpty(suite.T(), response.Comment.ID)
	return response.Comment.ID
}

func (suite *CommentTestSuite) TestCreateCommentBumpsCounter() {
	t := suite.T()

	w := suite.postComment(suite.testUser.ID, suite.testVideo.ID, "first!", nil)
	assert.Equal(t, http.StatusCreated, w.Code)

	var video models.Video
	suite.db.First(&video, "id = ?", suite.testVideo.ID)
	assert.Equal(t, 1, video.CommentCount)
}

func (suite *CommentTestSuite) TestEmptyCommentRejected() {
	t := suite.T()

	w := suite.postComment(suite.testUser.ID, suite.testVideo.ID, "   ", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func (suite *CommentTestSuite) TestReplyToReplyAttachesToTopLevelParent() {
	t := suite.T()

	topID := suite.createdCommentID(suite.postComment(suite.testUser.ID, suite.testVideo.ID, "top level", nil))
	replyID := suite.createdCommentID(suite.postComment(suite.testUser.ID, suite.testVideo.ID, "a reply", &topID))

	// Replying to a reply should flatten onto the top-level comment
	w := suite.postComment(suite.testUser.ID, suite.testVideo.ID, "reply to reply", &replyID)
	assert.Equal(t, http.StatusCreated, w.Code)

	var response struct {
		Comment models.Comment `json:"comment"`
	}
	json.Unmarshal(w.Body.Bytes(), &response)
	require.NotNil(t, response.Comment.ParentID)
	assert.Equal(t, topID, *response.Comment.ParentID)
}

func (suite *CommentTestSuite) TestReplyToCommentOnOtherVideoRejected() {
	t := suite.T()

	otherVideo := createTestVideo(t, suite.db, suite.testUser)
	parentID := suite.createdCommentID(suite.postComment(suite.testUser.ID, otherVideo.ID, "elsewhere", nil))

	w := suite.postComment(suite.testUser.ID, suite.testVideo.ID, "cross-video reply", &parentID)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func (suite *CommentTestSuite) TestGetCommentsListsNewestFirstWithReplyCounts() {
	t := suite.T()

	firstID := suite.createdCommentID(suite.postComment(suite.testUser.ID, suite.testVideo.ID, "older", nil))
	suite.postComment(suite.testUser.ID, suite.testVideo.ID, "a reply", &firstID)
	suite.postComment(suite.testUser.ID, suite.testVideo.ID, "newer", nil)

	req, _ := http.NewRequest("GET", "/api/v1/videos/"+suite.testVideo.ID+"/comments", nil)
	req.Header.Set("X-User-ID", suite.testUser.ID)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Comments []struct {
			models.Comment
			ReplyCount int64 `json:"reply_count"`
		} `json:"comments"`
	}
	json.Unmarshal(w.Body.Bytes(), &response)
	require.Len(t, response.Comments, 2)
	assert.Equal(t, "newer", response.Comments[0].Content)
	assert.Equal(t, "older", response.Comments[1].Content)
	assert.Equal(t, int64(1), response.Comments[1].ReplyCount)
}

func (suite *CommentTestSuite) TestEditComment() {
	t := suite.T()

	commentID := suite.createdCommentID(suite.postComment(suite.testUser.ID, suite.testVideo.ID, "typo here", nil))

	body, _ := json.Marshal(map[string]string{"content": "fixed"})
	req, _ := http.NewRequest("PUT", "/api/v1/comments/"+commentID, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", suite.testUser.ID)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var comment models.Comment
	suite.db.First(&comment, "id = ?", commentID)
	assert.Equal(t, "fixed", comment.Content)
	assert.True(t, comment.IsEdited)
}

func (suite *CommentTestSuite) TestEditWindowExpires() {
	t := suite.T()

	commentID := suite.createdCommentID(suite.postComment(suite.testUser.ID, suite.testVideo.ID, "old comment", nil))

	// Backdate past the edit window
	suite.db.Model(&models.Comment{}).Where("id = ?", commentID).
		UpdateColumn("created_at", time.Now().Add(-time.Hour))

	body, _ := json.Marshal(map[string]string{"content": "too late"})
	req, _ := http.NewRequest("PUT", "/api/v1/comments/"+commentID, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", suite.testUser.ID)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func (suite *CommentTestSuite) TestOnlyAuthorCanEdit() {
	t := suite.T()

	commentID := suite.createdCommentID(suite.postComment(suite.testUser.ID, suite.testVideo.ID, "mine", nil))
	other := createTestUser(t, suite.db, "intruder")

	body, _ := json.Marshal(map[string]string{"content": "hijacked"})
	req, _ := http.NewRequest("PUT", "/api/v1/comments/"+commentID, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", other.ID)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func (suite *CommentTestSuite) TestDeleteCommentWithRepliesLeavesPlaceholder() {
	t := suite.T()

	topID := suite.createdCommentID(suite.postComment(suite.testUser.ID, suite.testVideo.ID, "will be deleted", nil))
	suite.postComment(suite.testUser.ID, suite.testVideo.ID, "keep me", &topID)

	req, _ := http.NewRequest("DELETE", "/api/v1/comments/"+topID, nil)
	req.Header.Set("X-User-ID", suite.testUser.ID)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	listReq, _ := http.NewRequest("GET", "/api/v1/videos/"+suite.testVideo.ID+"/comments", nil)
	listReq.Header.Set("X-User-ID", suite.testUser.ID)
	listW := httptest.NewRecorder()
	suite.router.ServeHTTP(listW, listReq)

	var response struct {
		Comments []models.Comment `json:"comments"`
	}
	json.Unmarshal(listW.Body.Bytes(), &response)
	require.Len(t, response.Comments, 1)
	assert.Equal(t, "[deleted]", response.Comments[0].Content)
	assert.Empty(t, response.Comments[0].UserID)
}

func (suite *CommentTestSuite) TestDeletedLeafDisappearsFromListing() {
	t := suite.T()

	commentID := suite.createdCommentID(suite.postComment(suite.testUser.ID, suite.testVideo.ID, "vanishing", nil))

	req, _ := http.NewRequest("DELETE", "/api/v1/comments/"+commentID, nil)
	req.Header.Set("X-User-ID", suite.testUser.ID)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	listReq, _ := http.NewRequest("GET", "/api/v1/videos/"+suite.testVideo.ID+"/comments", nil)
	listReq.Header.Set("X-User-ID", suite.testUser.ID)
	listW := httptest.NewRecorder()
	suite.router.ServeHTTP(listW, listReq)

	var response struct {
		Comments []models.Comment `json:"comments"`
	}
	json.Unmarshal(listW.Body.Bytes(), &response)
	assert.Len(t, response.Comments, 0)

	var video models.Video
	suite.db.First(&video, "id = ?", suite.testVideo.ID)
	assert.Equal(t, 0, video.CommentCount)
}

func (suite *CommentTestSuite) TestVideoOwnerCanDeleteOthersComment() {
	t := suite.T()

	commenter := createTestUser(t, suite.db, "visitor")
	commentID := suite.createdCommentID(suite.postComment(commenter.ID, suite.testVideo.ID, "rude comment", nil))

	req, _ := http.NewRequest("DELETE", "/api/v1/comments/"+commentID, nil)
	req.Header.Set("X-User-ID", suite.testUser.ID)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func (suite *CommentTestSuite) TestBystanderCannotDelete() {
	t := suite.T()

	commentID := suite.createdCommentID(suite.postComment(suite.testUser.ID, suite.testVideo.ID, "fine comment", nil))
	bystander := createTestUser(t, suite.db, "bystander")

	req, _ := http.NewRequest("DELETE", "/api/v1/comments/"+commentID, nil)
	req.Header.Set("X-User-ID", bystander.ID)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCommentTestSuite(t *testing.T) {
	suite.Run(t, new(CommentTestSuite))
}
