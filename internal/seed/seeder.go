package seed

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/zfogg/clipstream/backend/internal/logger"
	"github.com/zfogg/clipstream/backend/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Tag pool the seeder draws from so the catalog has overlapping tags
var seedTags = []string{
	"gaming", "music", "comedy", "tutorial", "vlog", "cooking",
	"travel", "sports", "tech", "diy", "pets", "fitness",
	"art", "science", "news", "review",
}

// Seeder populates the database with fake data for development
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	_ = gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{db: db}
}

// SeedDev fills a development database with realistic catalog data
func (s *Seeder) SeedDev() error {
	logger.Log.Info("Creating users...")
	users, err := s.seedUsers(50)
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}

	logger.Log.Info("Creating videos...")
	videos, err := s.seedVideos(users, 200)
	if err != nil {
		return fmt.Errorf("failed to seed videos: %w", err)
	}

	logger.Log.Info("Creating reactions...")
	if err := s.seedReactions(users, videos, 800); err != nil {
		return fmt.Errorf("failed to seed reactions: %w", err)
	}

	logger.Log.Info("Creating watchlist entries...")
	if err := s.seedWatchlist(users, videos, 300); err != nil {
		return fmt.Errorf("failed to seed watchlist: %w", err)
	}

	logger.Log.Info("Creating comments...")
	if err := s.seedComments(users, videos, 500); err != nil {
		return fmt.Errorf("failed to seed comments: %w", err)
	}

	return nil
}

// SeedTest creates a small fixed set of accounts for integration tests
func (s *Seeder) SeedTest() error {
	specs := []struct {
		username    string
		email       string
		displayName string
		admin       bool
	}{
		{"alice", "alice@example.com", "Alice Smith", true},
		{"bob", "bob@example.com", "Bob Johnson", false},
		{"charlie", "charlie@example.com", "Charlie Brown", false},
	}

	var users []models.User
	for _, spec := range specs {
		var user models.User
		err := s.db.Where("username = ? OR email = ?", spec.username, spec.email).First(&user).Error
		if err == nil {
			users = append(users, user)
			continue
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		hashedPasswordStr := string(hashedPassword)

		user = models.User{
			Email:         spec.email,
			Username:      spec.username,
			DisplayName:   spec.displayName,
			PasswordHash:  &hashedPasswordStr,
			EmailVerified: true,
			IsAdmin:       spec.admin,
		}
		if err := s.db.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to create test user %s: %w", spec.username, err)
		}
		users = append(users, user)
	}

	if _, err := s.seedVideos(users, 6); err != nil {
		return fmt.Errorf("failed to seed videos: %w", err)
	}

	return nil
}

// Clean removes all rows from the seeded tables. Development only.
func (s *Seeder) Clean() error {
	tables := []interface{}{
		&models.Comment{},
		&models.WatchlistItem{},
		&models.Reaction{},
		&models.Video{},
		&models.PasswordReset{},
		&models.Session{},
		&models.User{},
	}
	for _, table := range tables {
		if err := s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).
			Unscoped().Delete(table).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) seedUsers(count int) ([]models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	hashedPasswordStr := string(hashedPassword)

	users := make([]models.User, 0, count)
	for i := 0; i < count; i++ {
		username := strings.ToLower(gofakeit.Username())
		user := models.User{
			Email:         fmt.Sprintf("%s%d@%s", username, i, gofakeit.DomainName()),
			Username:      fmt.Sprintf("%s%d", username, i),
			DisplayName:   gofakeit.Name(),
			Bio:           gofakeit.Sentence(10),
			PasswordHash:  &hashedPasswordStr,
			EmailVerified: true,
			AvatarURL:     fmt.Sprintf("https://api.dicebear.com/7.x/avataaars/png?seed=%s%d", username, i),
		}
		if err := s.db.Create(&user).Error; err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

func (s *Seeder) seedVideos(users []models.User, count int) ([]models.Video, error) {
	videos := make([]models.Video, 0, count)
	for i := 0; i < count; i++ {
		owner := users[rand.Intn(len(users))]

		tagCount := 1 + rand.Intn(3)
		tags := make([]string, 0, tagCount)
		for len(tags) < tagCount {
			tag := seedTags[rand.Intn(len(seedTags))]
			seen := false
			for _, t := range tags {
				if t == tag {
					seen = true
					break
				}
			}
			if !seen {
				tags = append(tags, tag)
			}
		}

		createdAt := gofakeit.DateRange(time.Now().AddDate(0, -6, 0), time.Now())
		video := models.Video{
			UserID:           owner.ID,
			VideoURL:         fmt.Sprintf("https://media.example.com/videos/%d.mp4", i),
			ThumbnailURL:     fmt.Sprintf("https://media.example.com/thumbnails/%d.jpg", i),
			OriginalFilename: fmt.Sprintf("%s.mp4", gofakeit.Word()),
			FileSize:         int64(gofakeit.Number(1<<20, 100<<20)),
			Duration:         float64(gofakeit.Number(5, 300)),
			Width:            1920,
			Height:           1080,
			Codec:            "h264",
			Title:            gofakeit.Sentence(4),
			Description:      gofakeit.Paragraph(1, 3, 8, " "),
			Tags:             models.StringArray(tags),
			ViewCount:        int64(gofakeit.Number(0, 50000)),
			ProcessingStatus: models.ProcessingComplete,
			IsPublic:         rand.Intn(10) > 0, // ~10% private
			CreatedAt:        createdAt,
		}
		if err := s.db.Create(&video).Error; err != nil {
			return nil, err
		}
		videos = append(videos, video)
	}

	// Keep the denormalized per-user counters honest
	for _, user := range users {
		var count int64
		s.db.Model(&models.Video{}).Where("user_id = ?", user.ID).Count(&count)
		s.db.Model(&models.User{}).Where("id = ?", user.ID).UpdateColumn("video_count", count)
	}

	return videos, nil
}

func (s *Seeder) seedReactions(users []models.User, videos []models.Video, count int) error {
	for i := 0; i < count; i++ {
		user := users[rand.Intn(len(users))]
		video := videos[rand.Intn(len(videos))]

		reactionType := models.ReactionLike
		if rand.Intn(5) == 0 {
			reactionType = models.ReactionDislike
		}

		reaction := models.Reaction{
			UserID:  user.ID,
			VideoID: video.ID,
			Type:    reactionType,
		}
		// Unique (user, video) key rejects duplicates; skip them
		if err := s.db.Create(&reaction).Error; err != nil {
			continue
		}

		col := "like_count"
		if reactionType == models.ReactionDislike {
			col = "dislike_count"
		}
		s.db.Model(&models.Video{}).Where("id = ?", video.ID).
			UpdateColumn(col, gorm.Expr(col+" + 1"))
	}
	return nil
}

func (s *Seeder) seedWatchlist(users []models.User, videos []models.Video, count int) error {
	for i := 0; i < count; i++ {
		user := users[rand.Intn(len(users))]
		video := videos[rand.Intn(len(videos))]

		item := models.WatchlistItem{
			UserID:  user.ID,
			VideoID: video.ID,
		}
		if err := s.db.Create(&item).Error; err != nil {
			continue
		}
		s.db.Model(&models.Video{}).Where("id = ?", video.ID).
			UpdateColumn("watchlist_count", gorm.Expr("watchlist_count + 1"))
	}
	return nil
}

func (s *Seeder) seedComments(users []models.User, videos []models.Video, count int) error {
	var topLevel []models.Comment

	for i := 0; i < count; i++ {
		user := users[rand.Intn(len(users))]
		video := videos[rand.Intn(len(videos))]

		comment := models.Comment{
			VideoID: video.ID,
			UserID:  user.ID,
			Content: gofakeit.Sentence(gofakeit.Number(3, 20)),
		}

		// Roughly a quarter of comments are replies
		if len(topLevel) > 0 && rand.Intn(4) == 0 {
			parent := topLevel[rand.Intn(len(topLevel))]
			comment.VideoID = parent.VideoID
			comment.ParentID = &parent.ID
		}

		if err := s.db.Create(&comment).Error; err != nil {
			return err
		}
		if comment.ParentID == nil {
			topLevel = append(topLevel, comment)
		}

		s.db.Model(&models.Video{}).Where("id = ?", comment.VideoID).
			UpdateColumn("comment_count", gorm.Expr("comment_count + 1"))
	}
	return nil
}
