package video

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/zfogg/clipstream/backend/internal/database"
	"github.com/zfogg/clipstream/backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type ProcessorTestSuite struct {
	suite.Suite
	db *gorm.DB
}

func (suite *ProcessorTestSuite) SetupSuite() {
	host := envOrDefault("POSTGRES_HOST", "localhost")
	port := envOrDefault("POSTGRES_PORT", "5432")
	user := envOrDefault("POSTGRES_USER", "postgres")
	password := os.Getenv("POSTGRES_PASSWORD")
	dbname := envOrDefault("POSTGRES_DB", "clipstream_test")

	dsn := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable", host, port, user, dbname)
	if password != "" {
		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", host, port, user, password, dbname)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		suite.T().Skipf("Skipping: test database not available (%v)", err)
		return
	}

	suite.db = db
	database.DB = db

	var count int64
	db.Raw("SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = 'public' AND table_name = 'videos'").Scan(&count)
	if count == 0 {
		require.NoError(suite.T(), db.AutoMigrate(
			&models.User{},
			&models.Session{},
			&models.PasswordReset{},
			&models.Video{},
			&models.Reaction{},
			&models.WatchlistItem{},
			&models.Comment{},
		))
	}
}

func (suite *ProcessorTestSuite) TearDownSuite() {
	if suite.db != nil {
		sqlDB, _ := suite.db.DB()
		sqlDB.Close()
	}
}

func (suite *ProcessorTestSuite) SetupTest() {
	suite.db.Exec("TRUNCATE TABLE reactions, watchlist_items, comments, videos RESTART IDENTITY CASCADE")
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func (suite *ProcessorTestSuite) createVideo() *models.Video {
	tag := uuid.New().String()[:8]
	user := &models.User{
		ID:          uuid.New().String(),
		Email:       tag + "@test.com",
		Username:    "uploader_" + tag,
		DisplayName: "Uploader",
	}
	require.NoError(suite.T(), suite.db.Create(user).Error)

	video := &models.Video{
		ID:               uuid.New().String(),
		UserID:           user.ID,
		OriginalFilename: "clip.mp4",
		Title:            "Test Clip",
		ProcessingStatus: models.ProcessingPending,
		IsPublic:         true,
	}
	require.NoError(suite.T(), suite.db.Create(video).Error)
	return video
}

func (suite *ProcessorTestSuite) TestFailJobFiresCompletionCallback() {
	t := suite.T()

	video := suite.createVideo()
	p := NewProcessor(nil)

	notified := make(chan string, 1)
	p.SetVideoCompleteCallback(func(videoID string) {
		notified <- videoID
	})

	job, err := p.SubmitJob(video.UserID, video.ID, "/tmp/does-not-matter.mp4", "", "clip.mp4")
	require.NoError(t, err)

	p.failJob(0, job, "probe", "ffprobe failed: no video stream found")

	// Clients hear about failures, not just successes
	select {
	case videoID := <-notified:
		assert.Equal(t, video.ID, videoID)
	case <-time.After(time.Second):
		t.Fatal("completion callback never fired for the failed job")
	}

	status, err := p.GetJobStatus(job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingFailed, status.Status)
	assert.Contains(t, status.ErrorMessage, "ffprobe failed")
	require.NotNil(t, status.CompletedAt)

	var row models.Video
	require.NoError(t, suite.db.First(&row, "id = ?", video.ID).Error)
	assert.Equal(t, models.ProcessingFailed, row.ProcessingStatus)
	assert.Contains(t, row.ProcessingError, "ffprobe failed")
}

func (suite *ProcessorTestSuite) TestEvictFinishedJobs() {
	t := suite.T()

	video := suite.createVideo()
	p := NewProcessor(nil)

	stale, err := p.SubmitJob(video.UserID, video.ID, "/tmp/a.mp4", "", "a.mp4")
	require.NoError(t, err)
	recent, err := p.SubmitJob(video.UserID, video.ID, "/tmp/b.mp4", "", "b.mp4")
	require.NoError(t, err)
	running, err := p.SubmitJob(video.UserID, video.ID, "/tmp/c.mp4", "", "c.mp4")
	require.NoError(t, err)

	now := time.Now()
	past := now.Add(-2 * jobRetention)
	p.updateJobStatus(stale.ID, models.ProcessingComplete, "")
	stale.CompletedAt = &past
	p.updateJobStatus(recent.ID, models.ProcessingComplete, "")

	p.evictFinishedJobs(now)

	_, err = p.GetJobStatus(stale.ID)
	assert.Error(t, err)

	_, err = p.GetJobStatus(recent.ID)
	assert.NoError(t, err)

	// Jobs still running are never evicted, however old
	_, err = p.GetJobStatus(running.ID)
	assert.NoError(t, err)
}

func TestProcessorTestSuite(t *testing.T) {
	suite.Run(t, new(ProcessorTestSuite))
}
