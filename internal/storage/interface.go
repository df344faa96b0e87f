package storage

import (
	"context"
	"io"
)

// UploadResult contains the result of a media upload
type UploadResult struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

// MediaStore abstracts where uploaded media lands. S3 in production,
// local disk in development (served by the router under /media).
type MediaStore interface {
	UploadVideo(ctx context.Context, r io.Reader, size int64, userID, originalFilename string) (*UploadResult, error)
	UploadThumbnail(ctx context.Context, data []byte, videoKey string) (*UploadResult, error)
	UploadAvatar(ctx context.Context, data []byte, userID, originalFilename string) (*UploadResult, error)
	Delete(ctx context.Context, key string) error
}

// Ensure both implementations satisfy MediaStore
var (
	_ MediaStore = (*S3Store)(nil)
	_ MediaStore = (*LocalStore)(nil)
)
