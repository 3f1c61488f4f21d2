package service

import "errors"

var (
	// ErrNoPreview means no preview source exists for the file.
	ErrNoPreview = errors.New("no preview available")

	// ErrUnavailable means the media cannot be served from any channel.
	ErrUnavailable = errors.New("media unavailable")
)
