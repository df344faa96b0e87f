package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringArrayScan(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  StringArray
	}{
		{"nil value", nil, nil},
		{"empty braces", "{}", StringArray{}},
		{"single element", "{music}", StringArray{"music"}},
		{"multiple elements", "{music,gaming,vlog}", StringArray{"music", "gaming", "vlog"}},
		{"byte slice input", []byte("{a,b}"), StringArray{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a StringArray
			require.NoError(t, a.Scan(tt.input))
			assert.Equal(t, tt.want, a)
		})
	}
}

func TestStringArrayValue(t *testing.T) {
	var nilArray StringArray
	v, err := nilArray.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = StringArray{}.Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", v)

	v, err = StringArray{"music", "gaming"}.Value()
	require.NoError(t, err)
	assert.Equal(t, "{music,gaming}", v)
}

func TestVideoWatchable(t *testing.T) {
	tests := []struct {
		name   string
		video  Video
		expect bool
	}{
		{"public and complete", Video{IsPublic: true, ProcessingStatus: ProcessingComplete}, true},
		{"private", Video{IsPublic: false, ProcessingStatus: ProcessingComplete}, false},
		{"still processing", Video{IsPublic: true, ProcessingStatus: ProcessingActive}, false},
		{"pending", Video{IsPublic: true, ProcessingStatus: ProcessingPending}, false},
		{"failed", Video{IsPublic: true, ProcessingStatus: ProcessingFailed}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, tt.video.Watchable())
		})
	}
}

func TestSessionActive(t *testing.T) {
	now := time.Now()
	revoked := now.Add(-time.Minute)

	live := Session{ExpiresAt: now.Add(time.Hour)}
	assert.True(t, live.Active(now))

	expired := Session{ExpiresAt: now.Add(-time.Hour)}
	assert.False(t, expired.Active(now))

	dead := Session{ExpiresAt: now.Add(time.Hour), RevokedAt: &revoked}
	assert.False(t, dead.Active(now))
}
