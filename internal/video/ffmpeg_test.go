package video

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProbeOutput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    *VideoInfo
		wantErr bool
	}{
		{
			name: "standard h264 clip",
			input: `{
				"streams": [
					{"codec_type": "audio", "codec_name": "aac"},
					{"codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080}
				],
				"format": {"duration": "42.5"}
			}`,
			want: &VideoInfo{Duration: 42.5, Width: 1920, Height: 1080, Codec: "h264"},
		},
		{
			name: "first video stream wins",
			input: `{
				"streams": [
					{"codec_type": "video", "codec_name": "vp9", "width": 1280, "height": 720},
					{"codec_type": "video", "codec_name": "h264", "width": 640, "height": 360}
				],
				"format": {"duration": "10"}
			}`,
			want: &VideoInfo{Duration: 10, Width: 1280, Height: 720, Codec: "vp9"},
		},
		{
			name:  "missing duration is tolerated",
			input: `{"streams": [{"codec_type": "video", "codec_name": "h264", "width": 640, "height": 480}], "format": {}}`,
			want:  &VideoInfo{Duration: 0, Width: 640, Height: 480, Codec: "h264"},
		},
		{
			name:    "audio only file",
			input:   `{"streams": [{"codec_type": "audio", "codec_name": "mp3"}], "format": {"duration": "180"}}`,
			wantErr: true,
		},
		{
			name:    "garbage input",
			input:   `not json at all`,
			wantErr: true,
		},
		{
			name:    "empty streams",
			input:   `{"streams": [], "format": {"duration": "5"}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseProbeOutput([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProbeArgs(t *testing.T) {
	args := probeArgs("/tmp/clip.mp4")
	assert.Equal(t, "/tmp/clip.mp4", args[len(args)-1])
	assert.Contains(t, args, "-show_streams")
	assert.Contains(t, args, "json")
}

func TestThumbnailArgs(t *testing.T) {
	args := thumbnailArgs("/tmp/clip.mp4", "/tmp/thumb.jpg", 1.5)

	assert.Contains(t, args, "1.50")
	assert.Contains(t, args, "scale=640:-2")
	assert.Equal(t, "/tmp/thumb.jpg", args[len(args)-1])

	// Overwrite flag so retries do not hang on the prompt
	assert.Contains(t, args, "-y")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcde", truncate("abcdefgh", 5))
	assert.Equal(t, "trimmed", truncate("  trimmed  ", 20))
}
