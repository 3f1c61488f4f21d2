// Package remote wraps the two Telegram clients that together act as the
// blob store. The Bot API client handles small payloads, direct file links
// and forum-topic management; the MTProto client handles the primary uploads
// (no 50 MB ceiling) and chunked streaming downloads. Both are constructed
// once at startup and injected where needed.
package remote

import (
	"errors"

	"github.com/gotd/td/tg"
)

// ErrNoMedia is returned when a message cannot be found or carries no
// downloadable media.
var ErrNoMedia = errors.New("message has no media")

// UploadInput describes one staged artifact bound for the account channel.
type UploadInput struct {
	Path      string
	Filename  string
	MimeType  string
	Caption   string
	ThumbPath string
	// TopicID routes the message into a forum topic when non-zero.
	TopicID int
	// Video marks the document as streamable video; ForceFile uploads it as
	// a plain file attachment (non-media documents).
	Video     bool
	ForceFile bool
	// OnProgress receives whole percentages as parts are acknowledged.
	OnProgress func(percent int)
}

// FileRef points at the media of a stored message. The location is opaque
// to callers; tests construct refs with only the exported fields.
type FileRef struct {
	MimeType string
	Size     int64

	location tg.InputFileLocationClass
}
