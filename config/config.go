package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds every environment-driven setting the server needs. Values are
// read once at startup; nothing re-reads the environment afterwards.
type Config struct {
	Port string

	MongoURI string

	// Bot API credentials (small payloads, links, forum topics).
	BotToken string
	ChatID   int64

	// MTProto app credentials (large uploads, streaming downloads).
	AppID         int
	AppHash       string
	SessionString string

	AdminPassword string
	AuthToken     string

	// Default attribution recorded on uploads when the request carries none.
	UploadedBy string
}

// Load reads .env (current directory first, then project root, matching how
// the server is started from cmd/server/) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("../../.env"); err != nil {
			log.Printf("Warning: No .env file found, using environment variables")
		}
	}

	cfg := &Config{
		Port:          getenv("PORT", "8080"),
		MongoURI:      os.Getenv("MONGO_URI"),
		BotToken:      os.Getenv("TELEGRAM_BOT_TOKEN"),
		AppHash:       os.Getenv("TELEGRAM_API_HASH"),
		SessionString: os.Getenv("TELEGRAM_SESSION_STRING"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		AuthToken:     os.Getenv("JWT_TOKEN"),
		UploadedBy:    getenv("UPLOADED_BY", "Family"),
	}

	required := map[string]string{
		"MONGO_URI":          cfg.MongoURI,
		"TELEGRAM_BOT_TOKEN": cfg.BotToken,
		"TELEGRAM_API_HASH":  cfg.AppHash,
		"ADMIN_PASSWORD":     cfg.AdminPassword,
		"JWT_TOKEN":          cfg.AuthToken,
	}
	for name, value := range required {
		if value == "" {
			return nil, fmt.Errorf("%s environment variable not set", name)
		}
	}

	chatID, err := strconv.ParseInt(os.Getenv("TELEGRAM_CHAT_ID"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
	}
	cfg.ChatID = chatID

	appID, err := strconv.Atoi(os.Getenv("TELEGRAM_API_ID"))
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_API_ID: %w", err)
	}
	cfg.AppID = appID

	return cfg, nil
}

func getenv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
