package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dikshanttatrari/family-cloud-backend/models"
)

// FolderRepository handles database operations for folders.
type FolderRepository struct {
	coll *mongo.Collection
}

// NewFolderRepository creates a new folder repository.
func NewFolderRepository(db *mongo.Database) *FolderRepository {
	return &FolderRepository{coll: db.Collection("folders")}
}

// Create inserts a new folder and fills in its assigned id.
func (r *FolderRepository) Create(ctx context.Context, folder *models.Folder) error {
	if folder.CreatedAt.IsZero() {
		folder.CreatedAt = time.Now()
	}
	res, err := r.coll.InsertOne(ctx, folder)
	if err != nil {
		return err
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		folder.ID = id
	}
	return nil
}

// List retrieves all folders, newest first.
func (r *FolderRepository) List(ctx context.Context) ([]*models.Folder, error) {
	cursor, err := r.coll.Find(ctx, bson.M{}, options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	folders := []*models.Folder{}
	if err := cursor.All(ctx, &folders); err != nil {
		return nil, err
	}
	return folders, nil
}

// GetByID retrieves a folder by id.
func (r *FolderRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Folder, error) {
	var folder models.Folder
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&folder); err != nil {
		return nil, err
	}
	return &folder, nil
}

// GetByShareID retrieves a folder by its public share token.
func (r *FolderRepository) GetByShareID(ctx context.Context, shareID string) (*models.Folder, error) {
	var folder models.Folder
	if err := r.coll.FindOne(ctx, bson.M{"shareId": shareID}).Decode(&folder); err != nil {
		return nil, err
	}
	return &folder, nil
}

// SetSharing updates a folder's visibility. The shareId is only written when
// non-empty, so a minted token is never cleared or rotated by later toggles.
func (r *FolderRepository) SetSharing(ctx context.Context, id primitive.ObjectID, isPublic bool, shareID string) error {
	set := bson.M{"isPublic": isPublic}
	if shareID != "" {
		set["shareId"] = shareID
	}
	_, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": set})
	return err
}

// Delete removes a folder record permanently.
func (r *FolderRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	return err
}
