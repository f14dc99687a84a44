package media

import "fmt"

// ConfigurationError represents malformed or missing configuration, including
// caller contract violations such as an invalid default extension.
type ConfigurationError struct {
	Field  string // Configuration key or argument that failed validation
	Reason string // Human-readable explanation
	Err    error  // Underlying error, if any
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}

	return fmt.Sprintf("configuration error for '%s': %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// ConnectionError represents a failure to reach, open or query the message
// source or the metadata store when a session starts.
type ConnectionError struct {
	Operation  string // The operation that failed (e.g., "authenticate", "open_repository")
	StatusCode int    // HTTP status code, if applicable (0 for non-HTTP errors)
	Err        error  // Underlying error, if any
}

func (e *ConnectionError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("connection error during %s (HTTP %d): %v", e.Operation, e.StatusCode, e.Err)
	}

	return fmt.Sprintf("connection error during %s: %v", e.Operation, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// StreamScanError represents a failure while iterating the message stream.
type StreamScanError struct {
	ChannelID     int64
	LastMessageID int64 // id of the last message received before the failure, 0 if none
	Err           error
}

func (e *StreamScanError) Error() string {
	return fmt.Sprintf("scanning channel %d stopped after message %d: %v", e.ChannelID, e.LastMessageID, e.Err)
}

func (e *StreamScanError) Unwrap() error {
	return e.Err
}

// DownloadError represents a failure fetching the bytes of one attachment.
type DownloadError struct {
	Identifier string
	Err        error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download of %s failed: %v", e.Identifier, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// CleanupError represents a failure removing a partial artifact.
type CleanupError struct {
	Path string
	Err  error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("failed to remove artifact %s: %v", e.Path, e.Err)
}

func (e *CleanupError) Unwrap() error {
	return e.Err
}
