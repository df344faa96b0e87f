package util

import (
	"strconv"
	"strings"
)

// ParseInt parses a string to an integer, returning defaultValue if parsing fails
func ParseInt(s string, defaultValue int) int {
	if val, err := strconv.Atoi(s); err == nil {
		return val
	}
	return defaultValue
}

// ParsePagination reads limit/offset query values, clamping limit to maxLimit
func ParsePagination(limitStr, offsetStr string, defaultLimit, maxLimit int) (limit, offset int) {
	limit = ParseInt(limitStr, defaultLimit)
	offset = ParseInt(offsetStr, 0)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ParseTagArray parses a comma-separated tag string into a normalized slice.
// Tags are lowercased and trimmed; empty entries are dropped.
func ParseTagArray(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	seen := make(map[string]bool)
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		result = append(result, p)
	}
	return result
}
