package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3Store handles media uploads to AWS S3
type S3Store struct {
	client  *s3.Client
	bucket  string
	region  string
	baseURL string
}

// NewS3Store creates a new S3-backed media store
func NewS3Store(region, bucket, baseURL string) (*S3Store, error) {
	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg)

	return &S3Store{
		client:  client,
		bucket:  bucket,
		region:  region,
		baseURL: baseURL,
	}, nil
}

// UploadVideo uploads a video file to S3 with organized naming and metadata
func (s *S3Store) UploadVideo(ctx context.Context, r io.Reader, size int64, userID, originalFilename string) (*UploadResult, error) {
	fileID := uuid.New().String()
	extension := filepath.Ext(originalFilename)
	if extension == "" {
		extension = ".mp4"
	}

	// Organized folder structure: videos/{year}/{month}/{userID}/{fileID}.mp4
	now := time.Now()
	key := fmt.Sprintf("videos/%d/%02d/%s/%s%s",
		now.Year(), now.Month(), userID, fileID, extension)

	putObjectInput := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          r,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(videoContentType(extension)),

		// Video files are immutable once uploaded
		CacheControl: aws.String("max-age=86400"),

		Metadata: map[string]string{
			"user-id":           userID,
			"original-filename": originalFilename,
			"upload-timestamp":  now.Format(time.RFC3339),
			"file-type":         "video",
		},
	}

	if _, err := s.client.PutObject(ctx, putObjectInput); err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	return &UploadResult{
		Key:  key,
		URL:  s.publicURL(key),
		Size: size,
	}, nil
}

// UploadThumbnail uploads a thumbnail image next to its video key
func (s *S3Store) UploadThumbnail(ctx context.Context, data []byte, videoKey string) (*UploadResult, error) {
	thumbKey := strings.Replace(videoKey, filepath.Ext(videoKey), "_thumb.jpg", 1)

	putObjectInput := &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(thumbKey),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String("image/jpeg"),
		CacheControl: aws.String("max-age=86400"),

		Metadata: map[string]string{
			"file-type":     "thumbnail",
			"related-video": videoKey,
		},
	}

	if _, err := s.client.PutObject(ctx, putObjectInput); err != nil {
		return nil, fmt.Errorf("failed to upload thumbnail: %w", err)
	}

	return &UploadResult{
		Key:  thumbKey,
		URL:  s.publicURL(thumbKey),
		Size: int64(len(data)),
	}, nil
}

// UploadAvatar uploads a user avatar image
func (s *S3Store) UploadAvatar(ctx context.Context, data []byte, userID, originalFilename string) (*UploadResult, error) {
	extension := strings.ToLower(filepath.Ext(originalFilename))
	if extension == "" {
		extension = ".jpg"
	}

	key := fmt.Sprintf("avatars/%s/%s%s", userID, uuid.New().String(), extension)

	putObjectInput := &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(imageContentType(extension)),
		CacheControl: aws.String("max-age=3600"),

		Metadata: map[string]string{
			"user-id":   userID,
			"file-type": "avatar",
		},
	}

	if _, err := s.client.PutObject(ctx, putObjectInput); err != nil {
		return nil, fmt.Errorf("failed to upload avatar: %w", err)
	}

	return &UploadResult{
		Key:  key,
		URL:  s.publicURL(key),
		Size: int64(len(data)),
	}, nil
}

// Delete deletes a file from S3
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}

	return nil
}

// CheckBucketAccess verifies that we can access the S3 bucket
func (s *S3Store) CheckBucketAccess(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("cannot access S3 bucket %s: %w", s.bucket, err)
	}

	return nil
}

func (s *S3Store) publicURL(key string) string {
	return fmt.Sprintf("%s/%s", strings.TrimSuffix(s.baseURL, "/"), key)
}

// videoContentType returns the MIME type for video file extensions
func videoContentType(extension string) string {
	switch strings.ToLower(extension) {
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mov":
		return "video/quicktime"
	case ".mkv":
		return "video/x-matroska"
	default:
		return "application/octet-stream"
	}
}

// imageContentType returns the MIME type for image file extensions
func imageContentType(extension string) string {
	switch strings.ToLower(extension) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "image/jpeg"
	}
}
