// Command ensure-indexes creates the MongoDB indexes the server relies on.
// Run it once against a fresh database, or again after upgrades.
package main

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dikshanttatrari/family-cloud-backend/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("mongo: %v", err)
	}
	defer client.Disconnect(ctx)

	db := client.Database("familycloud")

	folderIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "telegramTopicId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "shareId", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
	}
	if _, err := db.Collection("folders").Indexes().CreateMany(ctx, folderIndexes); err != nil {
		log.Fatalf("folder indexes: %v", err)
	}

	fileIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "isDeleted", Value: 1}, {Key: "deletedAt", Value: 1}}},
		{Keys: bson.D{{Key: "folderId", Value: 1}}},
	}
	if _, err := db.Collection("files").Indexes().CreateMany(ctx, fileIndexes); err != nil {
		log.Fatalf("file indexes: %v", err)
	}

	log.Println("Indexes ensured")
}
