package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LocalStore writes media under a local directory for development setups
// without S3. The server mounts the directory at /media for static serving.
type LocalStore struct {
	root    string
	baseURL string
}

// NewLocalStore creates a disk-backed media store rooted at dir.
// baseURL is what gets prefixed onto generated keys, e.g. "http://localhost:8788/media".
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if dir == "" {
		dir = "media"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return &LocalStore{
		root:    dir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// Root returns the directory served at /media
func (l *LocalStore) Root() string {
	return l.root
}

// UploadVideo copies a video file into the media directory
func (l *LocalStore) UploadVideo(ctx context.Context, r io.Reader, size int64, userID, originalFilename string) (*UploadResult, error) {
	extension := filepath.Ext(originalFilename)
	if extension == "" {
		extension = ".mp4"
	}

	now := time.Now()
	key := fmt.Sprintf("videos/%d/%02d/%s/%s%s",
		now.Year(), now.Month(), userID, uuid.New().String(), extension)

	written, err := l.write(key, r)
	if err != nil {
		return nil, err
	}

	return &UploadResult{Key: key, URL: l.url(key), Size: written}, nil
}

// UploadThumbnail writes a thumbnail image next to its video key
func (l *LocalStore) UploadThumbnail(ctx context.Context, data []byte, videoKey string) (*UploadResult, error) {
	thumbKey := strings.Replace(videoKey, filepath.Ext(videoKey), "_thumb.jpg", 1)

	if _, err := l.write(thumbKey, strings.NewReader(string(data))); err != nil {
		return nil, err
	}

	return &UploadResult{Key: thumbKey, URL: l.url(thumbKey), Size: int64(len(data))}, nil
}

// UploadAvatar writes a user avatar image
func (l *LocalStore) UploadAvatar(ctx context.Context, data []byte, userID, originalFilename string) (*UploadResult, error) {
	extension := strings.ToLower(filepath.Ext(originalFilename))
	if extension == "" {
		extension = ".jpg"
	}

	key := fmt.Sprintf("avatars/%s/%s%s", userID, uuid.New().String(), extension)

	if _, err := l.write(key, strings.NewReader(string(data))); err != nil {
		return nil, err
	}

	return &UploadResult{Key: key, URL: l.url(key), Size: int64(len(data))}, nil
}

// Delete removes a file from the media directory
func (l *LocalStore) Delete(ctx context.Context, key string) error {
	path, err := l.safePath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (l *LocalStore) write(key string, r io.Reader) (int64, error) {
	path, err := l.safePath(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create directory for %s: %w", key, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", key, err)
	}
	defer f.Close()

	written, err := io.Copy(f, r)
	if err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", key, err)
	}
	return written, nil
}

// safePath rejects keys that would escape the media root
func (l *LocalStore) safePath(key string) (string, error) {
	path := filepath.Join(l.root, filepath.FromSlash(key))
	if !strings.HasPrefix(filepath.Clean(path), filepath.Clean(l.root)+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid media key: %s", key)
	}
	return path, nil
}

func (l *LocalStore) url(key string) string {
	return l.baseURL + "/" + key
}
