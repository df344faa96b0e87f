package handlers

import (
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/clipstream/backend/internal/database"
	"github.com/zfogg/clipstream/backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB connects to the test database, or skips the suite when it
// is not reachable
func openTestDB(t *testing.T) *gorm.DB {
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
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Skipf("Skipping: test database not available (%v)", err)
		return nil
	}

	database.DB = db

	var count int64
	db.Raw("SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = 'public' AND table_name = 'users'").Scan(&count)
	if count == 0 {
		if err := db.AutoMigrate(
			&models.User{},
			&models.Session{},
			&models.PasswordReset{},
			&models.Video{},
			&models.Reaction{},
			&models.WatchlistItem{},
			&models.Comment{},
		); err != nil {
			t.Fatalf("migration failed: %v", err)
		}
	}

	return db
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// testAuthMiddleware reads the acting user from the X-User-ID header
// and loads it into the context the way the real middleware does
func testAuthMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		var user models.User
		if err := db.Where("id = ?", userID).First(&user).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		c.Set("user", &user)
		c.Set("user_id", user.ID)
		c.Next()
	}
}

// createTestUser inserts a user with unique identifiers
func createTestUser(t *testing.T, db *gorm.DB, tag string) *models.User {
	user := &models.User{
		Email:       fmt.Sprintf("%s_%d@test.com", tag, testSequence()),
		Username:    fmt.Sprintf("%s_%d", tag, testSequence()),
		DisplayName: "Test " + tag,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// createTestVideo inserts a public, complete video owned by the user
func createTestVideo(t *testing.T, db *gorm.DB, owner *models.User) *models.Video {
	video := &models.Video{
		UserID:           owner.ID,
		VideoURL:         "https://media.example.com/test.mp4",
		OriginalFilename: "test.mp4",
		Title:            "Test Clip",
		ProcessingStatus: models.ProcessingComplete,
		IsPublic:         true,
	}
	if err := db.Create(video).Error; err != nil {
		t.Fatalf("failed to create test video: %v", err)
	}
	return video
}

func testSequence() int64 {
	return time.Now().UnixNano()
}
