package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/dikshanttatrari/family-cloud-backend/config"
	"github.com/dikshanttatrari/family-cloud-backend/handlers"
	"github.com/dikshanttatrari/family-cloud-backend/media"
	"github.com/dikshanttatrari/family-cloud-backend/progress"
	"github.com/dikshanttatrari/family-cloud-backend/remote"
	"github.com/dikshanttatrari/family-cloud-backend/repository"
	"github.com/dikshanttatrari/family-cloud-backend/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := initMongo(cfg.MongoURI)
	if err != nil {
		log.Fatalf("mongo: %v", err)
	}
	log.Println("Connected to MongoDB")

	bot, err := remote.NewBot(cfg.BotToken, cfg.ChatID)
	if err != nil {
		log.Fatalf("telegram bot: %v", err)
	}

	account, err := remote.NewAccount(remote.AccountConfig{
		AppID:         cfg.AppID,
		AppHash:       cfg.AppHash,
		BotToken:      cfg.BotToken,
		SessionString: cfg.SessionString,
		ChatID:        cfg.ChatID,
	})
	if err != nil {
		log.Fatalf("telegram account: %v", err)
	}
	defer account.Close()
	log.Println("Connected to Telegram")

	fileRepo := repository.NewFileRepository(db)
	folderRepo := repository.NewFolderRepository(db)

	hub := progress.NewHub()

	uploader := service.NewUploader(
		service.WithFileStore(fileRepo),
		service.WithFolderStore(folderRepo),
		service.WithBotChannel(bot),
		service.WithAccountChannel(account),
		service.WithImageTools(media.Images{}),
		service.WithVideoTools(media.Videos{}),
		service.WithProgressSink(hub),
		service.WithDefaultUploadedBy(cfg.UploadedBy),
	)
	retriever := service.NewRetriever(fileRepo, bot, account)
	sweeper := service.NewSweeper(fileRepo)

	authHandler := handlers.NewAuthHandler(cfg.AdminPassword, cfg.AuthToken)
	fileHandler := handlers.NewFileHandler(fileRepo, uploader, retriever)
	folderHandler := handlers.NewFolderHandler(folderRepo, fileRepo, bot, cfg.UploadedBy)

	sched := cron.New()
	if _, err := sched.AddFunc("0 0 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		sweeper.Run(ctx)
	}); err != nil {
		log.Fatalf("cron: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	r := gin.Default()
	r.Use(cors.Default())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/ws", func(c *gin.Context) {
		hub.Attach(c.Writer, c.Request)
	})

	api := r.Group("/api")
	{
		api.POST("/auth/login", authHandler.Login)

		files := api.Group("/files")
		{
			files.POST("/upload", fileHandler.Upload)
			files.POST("/upload-multiple", fileHandler.UploadMultiple)
			files.GET("", fileHandler.List)
			files.GET("/trash", fileHandler.ListTrash)
			files.GET("/recent", fileHandler.ListRecent)
			files.GET("/preview/:id", fileHandler.Preview)
			files.GET("/download/:id", fileHandler.Download)
			files.DELETE("/:id", fileHandler.SoftDelete)
			files.POST("/restore/:id", fileHandler.Restore)
			files.DELETE("/permanent/:id", fileHandler.PermanentDelete)
		}

		folders := api.Group("/folders")
		{
			folders.POST("", folderHandler.Create)
			folders.GET("", folderHandler.List)
			folders.GET("/public/:shareId", folderHandler.PublicByShare)
			folders.PATCH("/:id/toggle-public", folderHandler.TogglePublic)
			folders.DELETE("/:id", folderHandler.Delete)
		}
	}

	log.Printf("Server running on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func initMongo(uri string) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, err
	}
	return client.Database("familycloud"), nil
}
