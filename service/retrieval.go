package service

import (
	"context"
	"io"
	"log"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dikshanttatrari/family-cloud-backend/models"
	"github.com/dikshanttatrari/family-cloud-backend/remote"
)

// FileGetter loads file records by id.
type FileGetter interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.File, error)
}

// LinkResolver turns bot-channel file ids into direct download URLs.
type LinkResolver interface {
	FileLink(ctx context.Context, fileID string) (string, error)
}

// BlobReader is the account-channel read side.
type BlobReader interface {
	File(ctx context.Context, messageID int) (*remote.FileRef, error)
	Stream(ctx context.Context, ref *remote.FileRef, w io.Writer) error
	Thumbnail(ctx context.Context, messageID int) ([]byte, error)
}

// Preview is either a redirect target or inline JPEG bytes.
type Preview struct {
	RedirectURL string
	Data        []byte
}

// Download is either a redirect target or a streamable blob reference.
type Download struct {
	RedirectURL string
	Ref         *remote.FileRef
	Name        string
}

// Retriever resolves preview and download sources for a stored file.
type Retriever struct {
	files   FileGetter
	bot     LinkResolver
	account BlobReader
}

// NewRetriever creates a retrieval router.
func NewRetriever(files FileGetter, bot LinkResolver, account BlobReader) *Retriever {
	return &Retriever{files: files, bot: bot, account: account}
}

// Preview resolves the best available preview source. Precedence: the
// dedicated preview upload, then the document thumbnail embedded in the
// main upload, then (for images stored before the dual-channel scheme) the
// main file itself.
func (r *Retriever) Preview(ctx context.Context, id primitive.ObjectID) (*Preview, *models.File, error) {
	file, err := r.files.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if file.PreviewFileID != "" {
		if url, err := r.bot.FileLink(ctx, file.PreviewFileID); err == nil {
			return &Preview{RedirectURL: url}, file, nil
		} else {
			log.Printf("preview link failed for %s: %v", file.Name, err)
		}
	}

	if file.TelegramMessageID != 0 {
		if data, err := r.account.Thumbnail(ctx, file.TelegramMessageID); err == nil && len(data) > 0 {
			return &Preview{Data: data}, file, nil
		}
	}

	if file.Type == models.KindImage && file.HasBotFileID() {
		if url, err := r.bot.FileLink(ctx, file.TelegramFileID); err == nil {
			return &Preview{RedirectURL: url}, file, nil
		}
	}

	return nil, file, ErrNoPreview
}

// Download resolves the best available full-file source. Precedence: the
// account channel keyed by message id, then the bot channel for legacy
// records that stored a real bot file id.
func (r *Retriever) Download(ctx context.Context, id primitive.ObjectID) (*Download, error) {
	file, err := r.files.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if file.TelegramMessageID != 0 {
		if ref, err := r.account.File(ctx, file.TelegramMessageID); err == nil {
			return &Download{Ref: ref, Name: file.Name}, nil
		} else {
			log.Printf("account download failed for %s: %v", file.Name, err)
		}
	}

	if file.HasBotFileID() {
		if url, err := r.bot.FileLink(ctx, file.TelegramFileID); err == nil {
			return &Download{RedirectURL: url, Name: file.Name}, nil
		}
	}

	return nil, ErrUnavailable
}

// Stream copies the referenced blob to w.
func (r *Retriever) Stream(ctx context.Context, ref *remote.FileRef, w io.Writer) error {
	return r.account.Stream(ctx, ref, w)
}
