package errors

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCodeMapping(t *testing.T) {
	tests := []struct {
		code   ErrorCode
		status int
	}{
		{ErrNotFound, http.StatusNotFound},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{ErrValidation, http.StatusBadRequest},
		{ErrBadRequest, http.StatusBadRequest},
		{ErrRateLimited, http.StatusTooManyRequests},
		{ErrPayloadTooBig, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.status, tt.code.StatusCode())
		})
	}

	assert.Equal(t, http.StatusInternalServerError, ErrorCode("UNKNOWN").StatusCode())
}

func TestConstructorsCarryMatchingStatus(t *testing.T) {
	// Rejected input is a 400, whether it came in as a bad field or a
	// malformed request
	assert.Equal(t, http.StatusBadRequest, ValidationError("title", "title is required").Status)
	assert.Equal(t, http.StatusBadRequest, BadRequest("unreadable body").Status)

	assert.Equal(t, http.StatusNotFound, NotFound("video").Status)
	assert.Equal(t, http.StatusForbidden, Forbidden("not your comment").Status)
}
