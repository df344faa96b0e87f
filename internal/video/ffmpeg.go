package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// FFmpegProcessor wraps the ffmpeg/ffprobe binaries for probing uploads
// and extracting thumbnails
type FFmpegProcessor struct {
	tempDir string
}

// NewFFmpegProcessor creates a processor with its own temp directory
func NewFFmpegProcessor() *FFmpegProcessor {
	tempDir := "/tmp/clipstream_video"
	os.MkdirAll(tempDir, 0755)

	return &FFmpegProcessor{tempDir: tempDir}
}

// VideoInfo holds metadata probed from an uploaded file
type VideoInfo struct {
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Codec    string  `json:"codec"`
}

// ffprobe JSON output shape (only the fields we read)
type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe runs ffprobe and extracts duration, dimensions and codec
func (p *FFmpegProcessor) Probe(ctx context.Context, videoPath string) (*VideoInfo, error) {
	cmd := exec.CommandContext(ctx, "ffprobe", probeArgs(videoPath)...)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseProbeOutput(stdout.Bytes())
}

// parseProbeOutput decodes ffprobe JSON into a VideoInfo
func parseProbeOutput(data []byte) (*VideoInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &VideoInfo{}
	if out.Format.Duration != "" {
		if d, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
			info.Duration = d
		}
	}

	for _, s := range out.Streams {
		if s.CodecType == "video" {
			info.Width = s.Width
			info.Height = s.Height
			info.Codec = s.CodecName
			break
		}
	}

	if info.Width == 0 || info.Height == 0 {
		return nil, fmt.Errorf("no video stream found")
	}

	return info, nil
}

// ExtractThumbnail grabs a frame at the given offset and encodes it as JPEG.
// The returned path lives in the processor's temp directory; callers own cleanup.
func (p *FFmpegProcessor) ExtractThumbnail(ctx context.Context, videoPath string, offsetSeconds float64) (string, error) {
	outputPath := filepath.Join(p.tempDir, uuid.New().String()+"_thumb.jpg")

	cmd := exec.CommandContext(ctx, "ffmpeg", thumbnailArgs(videoPath, outputPath, offsetSeconds)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		os.Remove(outputPath)
		return "", fmt.Errorf("ffmpeg thumbnail extraction failed: %w (%s)", err, truncate(stderr.String(), 200))
	}

	return outputPath, nil
}

// probeArgs builds the ffprobe argument list
func probeArgs(videoPath string) []string {
	return []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		videoPath,
	}
}

// thumbnailArgs builds the ffmpeg argument list for frame extraction.
// Scale keeps aspect ratio with a 640px wide bound.
func thumbnailArgs(videoPath, outputPath string, offsetSeconds float64) []string {
	return []string{
		"-ss", fmt.Sprintf("%.2f", offsetSeconds),
		"-i", videoPath,
		"-vframes", "1",
		"-vf", "scale=640:-2",
		"-q:v", "3",
		"-y",
		outputPath,
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// CheckFFmpegAvailable verifies ffmpeg and ffprobe are on PATH
func CheckFFmpegAvailable() error {
	if err := exec.Command("ffmpeg", "-version").Run(); err != nil {
		return fmt.Errorf("ffmpeg not found - install with: apt install ffmpeg")
	}

	if err := exec.Command("ffprobe", "-version").Run(); err != nil {
		return fmt.Errorf("ffprobe not found - install with: apt install ffmpeg")
	}

	return nil
}
