package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	err := New(ErrCodeSlackSend, "failed to post message")
	assert.Equal(t, "SLACK_SEND: failed to post message", err.Error())

	wrapped := Wrap(errors.New("channel_not_found"), ErrCodeSlackSend, "failed to post message")
	assert.Equal(t, "SLACK_SEND: failed to post message: channel_not_found", wrapped.Error())
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("channel_not_found")
	err := Wrap(cause, ErrCodeSlackSend, "failed to post message")

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, fmt.Errorf("outer: %w", err), cause)
}

func TestAppError_WithContext(t *testing.T) {
	err := New(ErrCodeSlackSend, "failed").
		WithContext("channel_id", "D1").
		WithContext("attempt", 2)

	require.NotNil(t, err.Context)
	assert.Equal(t, "D1", err.Context["channel_id"])
	assert.Equal(t, 2, err.Context["attempt"])
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(WrapRetryable(errors.New("x"), ErrCodeSlackSend, "failed")))
	assert.False(t, IsRetryable(New(ErrCodeSlackSend, "failed")))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeFileFetch, GetCode(New(ErrCodeFileFetch, "failed")))
	assert.Equal(t, ErrCodeInternalError, GetCode(errors.New("plain")))
}

func TestGetUserMessage(t *testing.T) {
	err := New(ErrCodeForwardFailed, "failed").WithUserMessage("Something specific")
	assert.Equal(t, "Something specific", GetUserMessage(err))

	assert.Equal(t, "Something went wrong, please try again.", GetUserMessage(New(ErrCodeInternalError, "failed")))
	assert.Equal(t, "Something went wrong, please try again.", GetUserMessage(errors.New("plain")))
	assert.Equal(t, "Something went wrong, please try again.", GetUserMessage(nil))
}

func TestIsTransport(t *testing.T) {
	assert.True(t, IsTransport(New(ErrCodeSlackSend, "x")))
	assert.True(t, IsTransport(New(ErrCodeSlackDelete, "x")))
	assert.True(t, IsTransport(New(ErrCodeFileFetch, "x")))
	assert.True(t, IsTransport(New(ErrCodeFileUpload, "x")))
	assert.False(t, IsTransport(New(ErrCodeForwardFailed, "x")))
	assert.False(t, IsTransport(errors.New("plain")))
}

func TestHelpers(t *testing.T) {
	cause := errors.New("boom")

	send := NewSendError("D1", cause)
	assert.Equal(t, ErrCodeSlackSend, send.Code)
	assert.Equal(t, "D1", send.Context["channel_id"])
	assert.ErrorIs(t, send, cause)

	del := NewDeleteError("D1", "1.0", cause)
	assert.Equal(t, ErrCodeSlackDelete, del.Code)
	assert.Equal(t, "1.0", del.Context["message_ts"])

	fetch := NewFileFetchError("F1", cause)
	assert.Equal(t, ErrCodeFileFetch, fetch.Code)
	assert.Equal(t, "F1", fetch.Context["file_id"])

	upload := NewFileUploadError("screen.png", cause)
	assert.Equal(t, ErrCodeFileUpload, upload.Code)
	assert.Equal(t, "screen.png", upload.Context["file_name"])

	notFound := NewRequestNotFoundError("U1")
	assert.Equal(t, ErrCodeRequestNotFound, notFound.Code)
	assert.Contains(t, GetUserMessage(notFound), "Request not found")

	forward := NewForwardError("U1", cause)
	assert.Equal(t, ErrCodeForwardFailed, forward.Code)
	assert.Contains(t, GetUserMessage(forward), "Couldn't deliver your request")
}
