package errors

// Common error creators for frequent use cases

// NewConfigError creates a configuration error
func NewConfigError(key, message string) *AppError {
	return New(ErrCodeInvalidConfig, message).
		WithContext("config_key", key).
		WithUserMessage("Configuration error")
}

// NewSendError creates a transport error for a failed message send
func NewSendError(channelID string, err error) *AppError {
	return Wrap(err, ErrCodeSlackSend, "failed to post message").
		WithContext("channel_id", channelID).
		WithUserMessage("Couldn't reach Slack, please try again.")
}

// NewDeleteError creates a transport error for a failed message delete
func NewDeleteError(channelID, messageTS string, err error) *AppError {
	return Wrap(err, ErrCodeSlackDelete, "failed to delete message").
		WithContext("channel_id", channelID).
		WithContext("message_ts", messageTS)
}

// NewFileFetchError creates a transport error for a failed file download
func NewFileFetchError(fileID string, err error) *AppError {
	return Wrap(err, ErrCodeFileFetch, "failed to fetch file bytes").
		WithContext("file_id", fileID)
}

// NewFileUploadError creates a transport error for a failed file upload
func NewFileUploadError(fileName string, err error) *AppError {
	return Wrap(err, ErrCodeFileUpload, "failed to upload file").
		WithContext("file_name", fileName)
}

// NewRequestNotFoundError creates the error surfaced when a callback
// arrives for a user with no pending request. It carries a user message
// and is not logged as an application error.
func NewRequestNotFoundError(userID string) *AppError {
	return New(ErrCodeRequestNotFound, "no pending request for user").
		WithContext("user_id", userID).
		WithUserMessage("Request not found. Send me a message to start a new one.")
}

// NewForwardError wraps a failure of the terminal forward step
func NewForwardError(userID string, err error) *AppError {
	return Wrap(err, ErrCodeForwardFailed, "failed to forward request").
		WithContext("user_id", userID).
		WithUserMessage("Couldn't deliver your request. It will be shown again shortly.")
}
