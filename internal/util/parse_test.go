package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseInt(t *testing.T) {
	assert.Equal(t, 42, ParseInt("42", 0))
	assert.Equal(t, -3, ParseInt("-3", 0))
	assert.Equal(t, 7, ParseInt("", 7))
	assert.Equal(t, 7, ParseInt("abc", 7))
	assert.Equal(t, 7, ParseInt("4.5", 7))
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name       string
		limitStr   string
		offsetStr  string
		wantLimit  int
		wantOffset int
	}{
		{"defaults", "", "", 20, 0},
		{"explicit values", "10", "40", 10, 40},
		{"limit clamped to max", "500", "0", 50, 0},
		{"zero limit falls back", "0", "0", 20, 0},
		{"negative limit falls back", "-5", "0", 20, 0},
		{"negative offset clamped", "10", "-20", 10, 0},
		{"garbage falls back", "lots", "many", 20, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit, offset := ParsePagination(tt.limitStr, tt.offsetStr, 20, 50)
			assert.Equal(t, tt.wantLimit, limit)
			assert.Equal(t, tt.wantOffset, offset)
		})
	}
}

func TestParseTagArray(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty string", "", []string{}},
		{"single tag", "music", []string{"music"}},
		{"normalizes case and spacing", " Music , GAMING ", []string{"music", "gaming"}},
		{"drops empties", "a,,b,", []string{"a", "b"}},
		{"dedupes", "go,Go,GO", []string{"go"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTagArray(tt.input))
		})
	}
}
