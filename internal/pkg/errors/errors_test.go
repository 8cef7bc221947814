package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	assert.Equal(t, "NOT_FOUND: batch not found", NotFound("batch not found").Error())

	wrapped := DatabaseError(errors.New("connection refused"))
	assert.Equal(t, "DATABASE_ERROR: database operation failed - connection refused", wrapped.Error())
}

func TestAppError_UnwrapThroughFmt(t *testing.T) {
	root := errors.New("disk full")
	err := fmt.Errorf("ingest batch: %w", FileParseError(root, "/tmp/in.csv"))

	appErr, ok := GetAppError(err)
	require.True(t, ok)
	assert.Equal(t, ErrCodeFileParseError, appErr.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, appErr.StatusCode)
	assert.Equal(t, "/tmp/in.csv", appErr.Details["path"])
	assert.ErrorIs(t, err, root)
	assert.True(t, HasCode(err, ErrCodeFileParseError))
	assert.False(t, HasCode(err, ErrCodeMissingColumn))
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		err    *AppError
		code   ErrorCode
		status int
	}{
		{BadRequest("x"), ErrCodeBadRequest, http.StatusBadRequest},
		{Internal("x"), ErrCodeInternal, http.StatusInternalServerError},
		{RateLimited(), ErrCodeRateLimited, http.StatusTooManyRequests},
		{Conflict("busy"), ErrCodeConflict, http.StatusConflict},
		{InvalidPatternConfig(errors.New("x")), ErrCodeInvalidPatternConfig, http.StatusInternalServerError},
		{InvalidFile("x"), ErrCodeInvalidFile, http.StatusBadRequest},
		{FileTooLarge(10), ErrCodeFileTooLarge, http.StatusRequestEntityTooLarge},
		{UnsupportedFormat(".pdf"), ErrCodeUnsupportedFormat, http.StatusBadRequest},
		{MissingColumn("GOODS DESCRIPTION"), ErrCodeMissingColumn, http.StatusUnprocessableEntity},
		{QueueError(errors.New("x")), ErrCodeQueueError, http.StatusServiceUnavailable},
		{CacheError(errors.New("x")), ErrCodeCacheError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.StatusCode)
		})
	}
}

func TestIsAppError(t *testing.T) {
	assert.True(t, IsAppError(fmt.Errorf("wrap: %w", BadRequest("bad"))))
	assert.False(t, IsAppError(errors.New("plain")))
	assert.False(t, IsAppError(nil))
}
