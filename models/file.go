package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// File kinds stored in the "type" field. The short forms are the API
// contract with the frontend.
const (
	KindImage    = "img"
	KindVideo    = "video"
	KindDocument = "doc"
)

// File is one uploaded object. The bytes live on Telegram; this record only
// holds the handles needed to find them again. TelegramMessageID is the
// MTProto reference used for streaming; TelegramFileID is the Bot API
// reference kept for older records (for MTProto uploads it mirrors the
// message id as a string).
type File struct {
	ID                primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Name              string              `bson:"name" json:"name"`
	Type              string              `bson:"type" json:"type"`
	Size              string              `bson:"size,omitempty" json:"size"`
	FolderID          *primitive.ObjectID `bson:"folderId,omitempty" json:"folderId,omitempty"`
	TelegramMessageID int                 `bson:"telegramMessageId,omitempty" json:"telegramMessageId,omitempty"`
	TelegramFileID    string              `bson:"telegramFileId,omitempty" json:"telegramFileId,omitempty"`
	PreviewFileID     string              `bson:"previewFileId,omitempty" json:"previewFileId,omitempty"`
	ThumbnailFileID   string              `bson:"thumbnailFileId,omitempty" json:"thumbnailFileId,omitempty"`
	IsDeleted         bool                `bson:"isDeleted" json:"isDeleted"`
	DeletedAt         *time.Time          `bson:"deletedAt,omitempty" json:"deletedAt,omitempty"`
	CreatedAt         time.Time           `bson:"createdAt" json:"createdAt"`
	UploadedBy        string              `bson:"uploadedBy" json:"uploadedBy"`
}

// HasRemoteRef reports whether the record can still resolve its bytes
// through at least one channel.
func (f *File) HasRemoteRef() bool {
	return f.TelegramMessageID != 0 || f.TelegramFileID != ""
}

// HasBotFileID reports whether TelegramFileID is a real Bot API file id.
// MTProto uploads mirror the numeric message id into this field; genuine
// Bot API ids are much longer opaque strings.
func (f *File) HasBotFileID() bool {
	return len(f.TelegramFileID) > 10
}
