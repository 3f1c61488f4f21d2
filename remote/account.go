package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/telegram/message/styling"
	"github.com/gotd/td/telegram/uploader"
	"github.com/gotd/td/tg"
)

// streamPartSize is the request chunk size for streamed downloads.
const streamPartSize = 1024 * 1024

// Account is the MTProto client. It is the only channel without the Bot API
// payload ceiling, so every primary upload and every streamed download goes
// through it. The connection is established once and reused for the process
// lifetime; gotd handles reconnects internally.
type Account struct {
	client  *telegram.Client
	api     *tg.Client
	peer    *tg.InputPeerChannel
	channel *tg.InputChannel
	cancel  context.CancelFunc
	done    chan struct{}
}

// AccountConfig carries the MTProto credentials. SessionString is optional:
// when empty the client authorizes with the bot token instead.
type AccountConfig struct {
	AppID         int
	AppHash       string
	BotToken      string
	SessionString string
	ChatID        int64
}

// NewAccount connects in the background and blocks until the client is
// authorized and the storage channel peer is resolved.
func NewAccount(cfg AccountConfig) (*Account, error) {
	storage := new(session.StorageMemory)
	if cfg.SessionString != "" {
		data, err := session.TelethonSession(cfg.SessionString)
		if err != nil {
			return nil, fmt.Errorf("decode session string: %w", err)
		}
		loader := session.Loader{Storage: storage}
		if err := loader.Save(context.Background(), data); err != nil {
			return nil, fmt.Errorf("preload session: %w", err)
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	acc := &Account{
		client: telegram.NewClient(cfg.AppID, cfg.AppHash, telegram.Options{SessionStorage: storage}),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	ready := make(chan error, 1)

	go func() {
		defer close(acc.done)
		err := acc.client.Run(runCtx, func(ctx context.Context) error {
			status, err := acc.client.Auth().Status(ctx)
			if err != nil {
				return fmt.Errorf("auth status: %w", err)
			}
			if !status.Authorized {
				if _, err := acc.client.Auth().Bot(ctx, cfg.BotToken); err != nil {
					return fmt.Errorf("bot auth: %w", err)
				}
			}
			acc.api = acc.client.API()
			peer, input, err := resolveChannel(ctx, acc.api, cfg.ChatID)
			if err != nil {
				return err
			}
			acc.peer, acc.channel = peer, input
			ready <- nil
			<-ctx.Done()
			return ctx.Err()
		})
		if err != nil && runCtx.Err() == nil {
			select {
			case ready <- err:
			default:
				log.Printf("mtproto client stopped: %v", err)
			}
		}
	}()

	select {
	case err := <-ready:
		if err != nil {
			cancel()
			<-acc.done
			return nil, err
		}
	case <-time.After(60 * time.Second):
		cancel()
		<-acc.done
		return nil, fmt.Errorf("timed out connecting to telegram")
	}
	return acc, nil
}

// Close stops the background client and waits for it to exit.
func (a *Account) Close() {
	a.cancel()
	<-a.done
}

// resolveChannel turns a Bot API chat id (with its -100 prefix) into the
// MTProto channel peer. Bots can resolve channels they are members of with
// a zero access hash; the real hash comes back in the response.
func resolveChannel(ctx context.Context, api *tg.Client, chatID int64) (*tg.InputPeerChannel, *tg.InputChannel, error) {
	id := chatID
	if id < 0 {
		trimmed := strings.TrimPrefix(strconv.FormatInt(-id, 10), "100")
		parsed, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid chat id %d: %w", chatID, err)
		}
		id = parsed
	}

	res, err := api.ChannelsGetChannels(ctx, []tg.InputChannelClass{&tg.InputChannel{ChannelID: id}})
	if err != nil {
		return nil, nil, fmt.Errorf("resolve channel: %w", err)
	}
	for _, chat := range res.GetChats() {
		ch, ok := chat.(*tg.Channel)
		if !ok || ch.ID != id {
			continue
		}
		return &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash},
			&tg.InputChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash}, nil
	}
	return nil, nil, fmt.Errorf("channel %d not found", id)
}

type chunkProgress struct {
	fn func(percent int)
}

func (p chunkProgress) Chunk(_ context.Context, state uploader.ProgressState) error {
	if state.Total > 0 {
		p.fn(int(state.Uploaded * 100 / state.Total))
	}
	return nil
}

// Upload sends a staged file to the storage channel and returns the id of
// the resulting message.
func (a *Account) Upload(ctx context.Context, in UploadInput) (int, error) {
	up := uploader.NewUploader(a.api).WithPartSize(uploader.MaximumPartSize)
	if in.OnProgress != nil {
		up = up.WithProgress(chunkProgress{fn: in.OnProgress})
	}

	f, err := up.FromPath(ctx, in.Path)
	if err != nil {
		return 0, fmt.Errorf("upload parts: %w", err)
	}

	doc := message.UploadedDocument(f, styling.Plain(in.Caption))
	doc.Filename(in.Filename).MIME(in.MimeType)
	if in.Video {
		doc.Attributes(&tg.DocumentAttributeVideo{SupportsStreaming: true})
	}
	if in.ForceFile {
		doc.ForceFile(true)
	}
	if in.ThumbPath != "" {
		if thumb, err := up.FromPath(ctx, in.ThumbPath); err == nil {
			doc.Thumb(thumb)
		}
	}

	target := message.NewSender(a.api).WithUploader(up).To(a.peer)

	var updates tg.UpdatesClass
	if in.TopicID != 0 {
		// A forum topic is addressed by replying to its root message.
		updates, err = target.Reply(in.TopicID).Media(ctx, doc)
	} else {
		updates, err = target.Media(ctx, doc)
	}
	if err != nil {
		return 0, fmt.Errorf("send media: %w", err)
	}
	id, ok := sentMessageID(updates)
	if !ok {
		return 0, fmt.Errorf("no message id in server response")
	}
	return id, nil
}

func sentMessageID(u tg.UpdatesClass) (int, bool) {
	var list []tg.UpdateClass
	switch v := u.(type) {
	case *tg.Updates:
		list = v.Updates
	case *tg.UpdatesCombined:
		list = v.Updates
	case *tg.UpdateShortSentMessage:
		return v.ID, true
	default:
		return 0, false
	}
	for _, upd := range list {
		switch m := upd.(type) {
		case *tg.UpdateNewChannelMessage:
			if msg, ok := m.Message.(*tg.Message); ok {
				return msg.ID, true
			}
		case *tg.UpdateNewMessage:
			if msg, ok := m.Message.(*tg.Message); ok {
				return msg.ID, true
			}
		case *tg.UpdateMessageID:
			return m.ID, true
		}
	}
	return 0, false
}

// File looks up a stored message and returns a streamable reference to its
// media.
func (a *Account) File(ctx context.Context, messageID int) (*FileRef, error) {
	media, err := a.messageMedia(ctx, messageID)
	if err != nil {
		return nil, err
	}
	switch m := media.(type) {
	case *tg.MessageMediaDocument:
		doc, ok := m.Document.AsNotEmpty()
		if !ok {
			return nil, ErrNoMedia
		}
		return &FileRef{
			MimeType: doc.MimeType,
			Size:     doc.Size,
			location: &tg.InputDocumentFileLocation{
				ID:            doc.ID,
				AccessHash:    doc.AccessHash,
				FileReference: doc.FileReference,
			},
		}, nil
	case *tg.MessageMediaPhoto:
		photo, ok := m.Photo.AsNotEmpty()
		if !ok {
			return nil, ErrNoMedia
		}
		sizeType, byteSize := largestPhotoSize(photo.Sizes)
		if sizeType == "" {
			return nil, ErrNoMedia
		}
		return &FileRef{
			MimeType: "image/jpeg",
			Size:     int64(byteSize),
			location: &tg.InputPhotoFileLocation{
				ID:            photo.ID,
				AccessHash:    photo.AccessHash,
				FileReference: photo.FileReference,
				ThumbSize:     sizeType,
			},
		}, nil
	}
	return nil, ErrNoMedia
}

// Stream copies the referenced media to w in fixed-size chunks, forwarding
// each chunk as it arrives.
func (a *Account) Stream(ctx context.Context, ref *FileRef, w io.Writer) error {
	if ref == nil || ref.location == nil {
		return fmt.Errorf("file reference has no location")
	}
	d := downloader.NewDownloader().WithPartSize(streamPartSize)
	if _, err := d.Download(a.api, ref.location).Stream(ctx, w); err != nil {
		return fmt.Errorf("stream download: %w", err)
	}
	return nil
}

// Thumbnail fetches the medium thumbnail of a stored message's media as
// JPEG bytes. Used as the preview fallback when no dedicated preview was
// uploaded.
func (a *Account) Thumbnail(ctx context.Context, messageID int) ([]byte, error) {
	media, err := a.messageMedia(ctx, messageID)
	if err != nil {
		return nil, err
	}

	var loc tg.InputFileLocationClass
	switch m := media.(type) {
	case *tg.MessageMediaDocument:
		doc, ok := m.Document.AsNotEmpty()
		if !ok {
			return nil, ErrNoMedia
		}
		thumbs, ok := doc.GetThumbs()
		if !ok {
			return nil, ErrNoMedia
		}
		sizeType := pickThumbSize(thumbs)
		if sizeType == "" {
			return nil, ErrNoMedia
		}
		loc = &tg.InputDocumentFileLocation{
			ID:            doc.ID,
			AccessHash:    doc.AccessHash,
			FileReference: doc.FileReference,
			ThumbSize:     sizeType,
		}
	case *tg.MessageMediaPhoto:
		photo, ok := m.Photo.AsNotEmpty()
		if !ok {
			return nil, ErrNoMedia
		}
		sizeType := pickThumbSize(photo.Sizes)
		if sizeType == "" {
			return nil, ErrNoMedia
		}
		loc = &tg.InputPhotoFileLocation{
			ID:            photo.ID,
			AccessHash:    photo.AccessHash,
			FileReference: photo.FileReference,
			ThumbSize:     sizeType,
		}
	default:
		return nil, ErrNoMedia
	}

	var buf bytes.Buffer
	if _, err := downloader.NewDownloader().Download(a.api, loc).Stream(ctx, &buf); err != nil {
		return nil, fmt.Errorf("download thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

func (a *Account) messageMedia(ctx context.Context, messageID int) (tg.MessageMediaClass, error) {
	res, err := a.api.ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
		Channel: a.channel,
		ID:      []tg.InputMessageClass{&tg.InputMessageID{ID: messageID}},
	})
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	msgs, ok := res.(*tg.MessagesChannelMessages)
	if !ok || len(msgs.Messages) == 0 {
		return nil, ErrNoMedia
	}
	msg, ok := msgs.Messages[0].(*tg.Message)
	if !ok || msg.Media == nil {
		return nil, ErrNoMedia
	}
	return msg.Media, nil
}

// largestPhotoSize picks the biggest rendition of a photo.
func largestPhotoSize(sizes []tg.PhotoSizeClass) (string, int) {
	sizeType, best := "", 0
	for _, s := range sizes {
		switch v := s.(type) {
		case *tg.PhotoSize:
			if v.Size >= best {
				sizeType, best = v.Type, v.Size
			}
		case *tg.PhotoSizeProgressive:
			if n := len(v.Sizes); n > 0 && v.Sizes[n-1] >= best {
				sizeType, best = v.Type, v.Sizes[n-1]
			}
		}
	}
	return sizeType, best
}

// pickThumbSize prefers the "m" box thumbnail, matching the preview size the
// frontend was built around, and falls back to whatever exists.
func pickThumbSize(sizes []tg.PhotoSizeClass) string {
	fallback := ""
	for _, s := range sizes {
		ps, ok := s.(*tg.PhotoSize)
		if !ok {
			continue
		}
		if ps.Type == "m" {
			return "m"
		}
		if fallback == "" {
			fallback = ps.Type
		}
	}
	return fallback
}
