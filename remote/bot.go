package remote

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const topicIconColor = 0x6d33f3

// Bot is the bot-channel client. The Bot API caps uploads at 50 MB, but it
// is the only channel that can mint direct file links and manage forum
// topics, so it stays alongside the MTProto client.
type Bot struct {
	api    *bot.Bot
	chatID int64
}

// NewBot creates the Bot API client bound to the storage group.
func NewBot(token string, chatID int64) (*Bot, error) {
	api, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &Bot{api: api, chatID: chatID}, nil
}

// SendPhoto uploads an image as a photo and returns the file id of the
// largest rendition Telegram produced.
func (b *Bot) SendPhoto(ctx context.Context, path, caption string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open photo: %w", err)
	}
	defer f.Close()

	msg, err := b.api.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID:  b.chatID,
		Photo:   &models.InputFileUpload{Filename: filepath.Base(path), Data: f},
		Caption: caption,
	})
	if err != nil {
		return "", fmt.Errorf("send photo: %w", err)
	}
	if len(msg.Photo) == 0 {
		return "", fmt.Errorf("no photo sizes in response")
	}
	return msg.Photo[len(msg.Photo)-1].FileID, nil
}

// FileLink resolves a file id to an ephemeral direct download URL.
func (b *Bot) FileLink(ctx context.Context, fileID string) (string, error) {
	f, err := b.api.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return "", fmt.Errorf("get file: %w", err)
	}
	return b.api.FileDownloadLink(f), nil
}

// CreateTopic provisions a forum topic in the storage group and returns its
// thread id.
func (b *Bot) CreateTopic(ctx context.Context, name string) (int, error) {
	topic, err := b.api.CreateForumTopic(ctx, &bot.CreateForumTopicParams{
		ChatID:    b.chatID,
		Name:      name,
		IconColor: topicIconColor,
	})
	if err != nil {
		return 0, fmt.Errorf("create forum topic: %w", err)
	}
	return topic.MessageThreadID, nil
}

// CloseTopic closes a forum topic. Best effort; the folder record is the
// source of truth either way.
func (b *Bot) CloseTopic(ctx context.Context, topicID int) error {
	_, err := b.api.CloseForumTopic(ctx, &bot.CloseForumTopicParams{
		ChatID:          b.chatID,
		MessageThreadID: topicID,
	})
	return err
}
