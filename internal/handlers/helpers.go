package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	// Upload size caps
	maxVideoUploadSize     = 200 << 20 // 200MB
	maxThumbnailUploadSize = 5 << 20   // 5MB
	maxAvatarUploadSize    = 2 << 20   // 2MB
)

var allowedVideoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".webm": true,
	".avi":  true,
	".mkv":  true,
}

var allowedImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// isValidVideoFile checks the filename extension against the allowlist
func isValidVideoFile(filename string) bool {
	return allowedVideoExtensions[strings.ToLower(filepath.Ext(filename))]
}

// isValidImageFile checks the filename extension against the allowlist
func isValidImageFile(filename string) bool {
	return allowedImageExtensions[strings.ToLower(filepath.Ext(filename))]
}

// saveUploadedFile streams a multipart file to a temp path and returns it
func saveUploadedFile(file *multipart.FileHeader, tempDir string) (string, error) {
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	tempPath := filepath.Join(tempDir, uuid.New().String()+strings.ToLower(filepath.Ext(file.Filename)))
	dst, err := os.Create(tempPath)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}

	return tempPath, nil
}
