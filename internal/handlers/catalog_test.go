package handlers

import (
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/zfogg/clipstream/backend/internal/models"
	"github.com/zfogg/clipstream/backend/internal/search"
	"gorm.io/gorm"
)

type CatalogTestSuite struct {
	suite.Suite
	db       *gorm.DB
	handlers *Handlers
	testUser *models.User
}

func (suite *CatalogTestSuite) SetupSuite() {
	suite.db = openTestDB(suite.T())
	suite.handlers = NewHandlers(nil, nil)
	gin.SetMode(gin.TestMode)
}

func (suite *CatalogTestSuite) TearDownSuite() {
	if suite.db != nil {
		sqlDB, _ := suite.db.DB()
		sqlDB.Close()
	}
}

func (suite *CatalogTestSuite) SetupTest() {
	suite.db.Exec("TRUNCATE TABLE reactions, watchlist_items, comments, videos RESTART IDENTITY CASCADE")
	suite.db.Exec("TRUNCATE TABLE users RESTART IDENTITY CASCADE")

	suite.testUser = createTestUser(suite.T(), suite.db, "catalog")
}

func (suite *CatalogTestSuite) createVideo(title string, tags []string, public bool) *models.Video {
	video := &models.Video{
		UserID:           suite.testUser.ID,
		VideoURL:         "https://media.example.com/" + title + ".mp4",
		OriginalFilename: title + ".mp4",
		Title:            title,
		Tags:             models.StringArray(tags),
		ProcessingStatus: models.ProcessingComplete,
		IsPublic:         public,
	}
	require.NoError(suite.T(), suite.db.Create(video).Error)
	return video
}

func (suite *CatalogTestSuite) TestHydrateSearchHitsPreservesRelevanceOrder() {
	t := suite.T()

	first := suite.createVideo("first", nil, true)
	second := suite.createVideo("second", nil, true)
	third := suite.createVideo("third", nil, true)

	// Relevance order from the index differs from insertion order
	hits := []search.VideoSearchHit{
		{ID: third.ID},
		{ID: first.ID},
		{ID: second.ID},
	}

	videos := suite.handlers.hydrateSearchHits(hits)
	require.Len(t, videos, 3)
	assert.Equal(t, third.ID, videos[0].ID)
	assert.Equal(t, first.ID, videos[1].ID)
	assert.Equal(t, second.ID, videos[2].ID)
}

func (suite *CatalogTestSuite) TestHydrateSearchHitsDropsHiddenVideos() {
	t := suite.T()

	visible := suite.createVideo("visible", nil, true)
	private := suite.createVideo("private", nil, false)

	pending := suite.createVideo("pending", nil, true)
	suite.db.Model(&models.Video{}).Where("id = ?", pending.ID).
		UpdateColumn("processing_status", models.ProcessingPending)

	hits := []search.VideoSearchHit{
		{ID: private.ID},
		{ID: visible.ID},
		{ID: pending.ID},
		{ID: "00000000-0000-0000-0000-000000000000"}, // row deleted since indexing
	}

	videos := suite.handlers.hydrateSearchHits(hits)
	require.Len(t, videos, 1)
	assert.Equal(t, visible.ID, videos[0].ID)
}

func (suite *CatalogTestSuite) TestSQLSearchMatchesTitleDescriptionAndTags() {
	t := suite.T()

	byTitle := suite.createVideo("synthwave mix", nil, true)

	byDescription := suite.createVideo("untitled", nil, true)
	suite.db.Model(&models.Video{}).Where("id = ?", byDescription.ID).
		UpdateColumn("description", "late night synthwave session")

	byTag := suite.createVideo("tagged only", []string{"synthwave", "music"}, true)

	unrelated := suite.createVideo("cooking pasta", []string{"cooking"}, true)

	videos, err := suite.handlers.sqlSearch("synthwave", nil, 20, 0)
	require.NoError(t, err)

	ids := make([]string, 0, len(videos))
	for _, v := range videos {
		ids = append(ids, v.ID)
	}
	assert.Contains(t, ids, byTitle.ID)
	assert.Contains(t, ids, byDescription.ID)
	assert.Contains(t, ids, byTag.ID)
	assert.NotContains(t, ids, unrelated.ID)
}

func (suite *CatalogTestSuite) TestSQLSearchExcludesHiddenVideos() {
	t := suite.T()

	suite.createVideo("synthwave private", nil, false)
	public := suite.createVideo("synthwave public", nil, true)

	videos, err := suite.handlers.sqlSearch("synthwave", nil, 20, 0)
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.Equal(t, public.ID, videos[0].ID)
}

func (suite *CatalogTestSuite) TestSQLSearchTagFilter() {
	t := suite.T()

	match := suite.createVideo("synthwave live", []string{"live"}, true)
	suite.createVideo("synthwave studio", []string{"studio"}, true)

	videos, err := suite.handlers.sqlSearch("synthwave", []string{"live"}, 20, 0)
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.Equal(t, match.ID, videos[0].ID)
}

func TestCatalogTestSuite(t *testing.T) {
	suite.Run(t, new(CatalogTestSuite))
}
