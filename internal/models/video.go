package models

import (
	"database/sql/driver"
	"strings"
	"time"

	"gorm.io/gorm"
)

// StringArray is a custom type for PostgreSQL text[] that implements Scanner and Valuer
type StringArray []string

// Scan implements the sql.Scanner interface for reading from database
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}

	// PostgreSQL returns text[] as a string like "{value1,value2,value3}"
	str, ok := value.(string)
	if !ok {
		// Try []byte
		if bytes, ok := value.([]byte); ok {
			str = string(bytes)
		} else {
			*a = nil
			return nil
		}
	}

	// Remove the curly braces
	str = strings.TrimPrefix(str, "{")
	str = strings.TrimSuffix(str, "}")

	if str == "" {
		*a = []string{}
		return nil
	}

	// Split by comma (simple case - doesn't handle quoted values with commas)
	*a = strings.Split(str, ",")
	return nil
}

// Value implements the driver.Valuer interface for writing to database
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	if len(a) == 0 {
		return "{}", nil
	}
	return "{" + strings.Join(a, ",") + "}", nil
}

// Processing status values for Video.ProcessingStatus
const (
	ProcessingPending  = "pending"
	ProcessingActive   = "processing"
	ProcessingComplete = "complete"
	ProcessingFailed   = "failed"
)

// Video represents an uploaded clip with metadata
type Video struct {
	ID     string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID string `gorm:"not null;index" json:"user_id"`
	User   User   `gorm:"foreignKey:UserID" json:"user,omitempty"`

	// Media file data
	VideoURL         string `json:"video_url"`
	ThumbnailURL     string `json:"thumbnail_url"`
	StorageKey       string `json:"-"`
	ThumbnailKey     string `json:"-"`
	OriginalFilename string `json:"original_filename"`
	FileSize         int64  `json:"file_size"`

	// Probed metadata
	Duration float64 `json:"duration"` // seconds
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Codec    string  `json:"codec"`

	// Catalog metadata
	Title       string      `gorm:"not null" json:"title"`
	Description string      `gorm:"type:text" json:"description"`
	Tags        StringArray `gorm:"type:text[]" json:"tags"`

	// Engagement counters, maintained transactionally with their join rows
	LikeCount      int   `gorm:"default:0" json:"like_count"`
	DislikeCount   int   `gorm:"default:0" json:"dislike_count"`
	CommentCount   int   `gorm:"default:0" json:"comment_count"`
	WatchlistCount int   `gorm:"default:0" json:"watchlist_count"`
	ViewCount      int64 `gorm:"default:0" json:"view_count"`

	// Status
	ProcessingStatus string `gorm:"default:pending" json:"processing_status"`
	ProcessingError  string `gorm:"type:text" json:"processing_error,omitempty"`
	IsPublic         bool   `gorm:"default:true" json:"is_public"`

	// GORM fields
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Watchable reports whether the video can be served to viewers other than the owner
func (v *Video) Watchable() bool {
	return v.IsPublic && v.ProcessingStatus == ProcessingComplete
}

// Reaction type values
const (
	ReactionLike    = "like"
	ReactionDislike = "dislike"
)

// Reaction is a user's like or dislike on a video.
// One row per (user, video); switching type updates the row in place.
type Reaction struct {
	ID      string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID  string `gorm:"not null;index;uniqueIndex:idx_reactions_user_video" json:"user_id"`
	VideoID string `gorm:"not null;index;uniqueIndex:idx_reactions_user_video" json:"video_id"`
	Video   Video  `gorm:"foreignKey:VideoID" json:"video,omitempty"`

	Type string `gorm:"not null" json:"type"` // "like" or "dislike"

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WatchlistItem is a video saved to a user's watchlist
type WatchlistItem struct {
	ID      string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID  string `gorm:"not null;index;uniqueIndex:idx_watchlist_user_video" json:"user_id"`
	VideoID string `gorm:"not null;index;uniqueIndex:idx_watchlist_user_video" json:"video_id"`
	Video   Video  `gorm:"foreignKey:VideoID" json:"video,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
