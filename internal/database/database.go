package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/zfogg/clipstream/backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB holds the database connection
var DB *gorm.DB

// Initialize creates and configures the database connection.
// DB_DRIVER=sqlite switches to an on-disk sqlite database for local
// development; production runs against PostgreSQL.
func Initialize() error {
	gormLogger := logger.Default
	if os.Getenv("ENVIRONMENT") == "development" {
		gormLogger = logger.Default.LogMode(logger.Info)
	}

	cfg := &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var (
		db  *gorm.DB
		err error
	)

	if os.Getenv("DB_DRIVER") == "sqlite" {
		path := getEnvOrDefault("DB_PATH", "clipstream.db")
		db, err = gorm.Open(sqlite.Open(path), cfg)
	} else {
		db, err = gorm.Open(postgres.Open(postgresDSN()), cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	DB = db
	log.Println("✅ Database connected successfully")

	return nil
}

func postgresDSN() string {
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		return databaseURL
	}

	// Fallback to individual components
	host := getEnvOrDefault("DB_HOST", "localhost")
	port := getEnvOrDefault("DB_PORT", "5432")
	user := getEnvOrDefault("DB_USER", "postgres")
	password := getEnvOrDefault("DB_PASSWORD", "")
	dbname := getEnvOrDefault("DB_NAME", "clipstream")
	sslmode := getEnvOrDefault("DB_SSLMODE", "disable")

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)
}

// Migrate runs auto-migration for all models
func Migrate() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	// Enable UUID extension for PostgreSQL
	if DB.Dialector.Name() == "postgres" {
		err := DB.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"").Error
		if err != nil {
			log.Printf("Warning: Could not create uuid-ossp extension: %v", err)
		}
	}

	// Auto-migrate all models
	err := DB.AutoMigrate(
		&models.User{},
		&models.Session{},
		&models.PasswordReset{},
		&models.Video{},
		&models.Reaction{},
		&models.WatchlistItem{},
		&models.Comment{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Create indexes for performance
	if DB.Dialector.Name() == "postgres" {
		if err := createIndexes(); err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
	}

	log.Println("✅ Database migrations completed")
	return nil
}

// createIndexes creates performance indexes
func createIndexes() error {
	// User indexes
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_users_email_lower ON users (LOWER(email))")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_users_username_lower ON users (LOWER(username))")

	// Session indexes for auth middleware lookups
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_sessions_user_active ON sessions (user_id) WHERE revoked_at IS NULL")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions (expires_at)")

	// Video indexes for catalog queries
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_videos_user_created ON videos (user_id, created_at DESC)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_videos_public_created ON videos (is_public, created_at DESC) WHERE processing_status = 'complete'")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_videos_like_count ON videos (like_count DESC)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_videos_view_count ON videos (view_count DESC)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_videos_tags ON videos USING GIN (tags)")

	// Full-text search fallback index for title/description
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_videos_text_search ON videos USING gin(to_tsvector('english', title || ' ' || description))")

	// Reaction indexes
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_reactions_video_type ON reactions (video_id, type)")

	// Watchlist indexes
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_watchlist_items_user_created ON watchlist_items (user_id, created_at DESC)")

	// Comment indexes for efficient retrieval
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_comments_video_created ON comments (video_id, created_at DESC)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_comments_user ON comments (user_id)")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_comments_parent ON comments (parent_id) WHERE parent_id IS NOT NULL")
	DB.Exec("CREATE INDEX IF NOT EXISTS idx_comments_video_not_deleted ON comments (video_id, created_at DESC) WHERE is_deleted = false")

	return nil
}

// Close closes the database connection
func Close() error {
	if DB == nil {
		return nil
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

// Health checks database connectivity
func Health() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Ping()
}

// getEnvOrDefault returns environment variable or default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
