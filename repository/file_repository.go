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

// FileRepository handles database operations for file records.
type FileRepository struct {
	coll *mongo.Collection
}

// NewFileRepository creates a new file repository.
func NewFileRepository(db *mongo.Database) *FileRepository {
	return &FileRepository{coll: db.Collection("files")}
}

// activeFilter matches records that are not in the bin. Old records may
// lack the isDeleted field entirely, hence $ne instead of a plain false.
func activeFilter() bson.M {
	return bson.M{"isDeleted": bson.M{"$ne": true}}
}

// Create inserts a new file record and fills in its assigned id.
func (r *FileRepository) Create(ctx context.Context, file *models.File) error {
	if file.CreatedAt.IsZero() {
		file.CreatedAt = time.Now()
	}
	res, err := r.coll.InsertOne(ctx, file)
	if err != nil {
		return err
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		file.ID = id
	}
	return nil
}

// GetByID retrieves a file by id, deleted or not.
func (r *FileRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.File, error) {
	var file models.File
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&file); err != nil {
		return nil, err
	}
	return &file, nil
}

// ListActive retrieves all files that are not in the bin, newest first.
func (r *FileRepository) ListActive(ctx context.Context) ([]*models.File, error) {
	return r.find(ctx, activeFilter(), options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

// ListRecent retrieves the newest active files up to limit.
func (r *FileRepository) ListRecent(ctx context.Context, limit int64) ([]*models.File, error) {
	return r.find(ctx, activeFilter(), options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(limit))
}

// ListTrash retrieves binned files, most recently deleted first.
func (r *FileRepository) ListTrash(ctx context.Context) ([]*models.File, error) {
	return r.find(ctx, bson.M{"isDeleted": true}, options.Find().
		SetSort(bson.D{{Key: "deletedAt", Value: -1}}))
}

// ListByFolder retrieves a folder's active files, newest first.
func (r *FileRepository) ListByFolder(ctx context.Context, folderID primitive.ObjectID) ([]*models.File, error) {
	filter := activeFilter()
	filter["folderId"] = folderID
	return r.find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

// SoftDelete moves a file to the bin.
func (r *FileRepository) SoftDelete(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"isDeleted": true,
		"deletedAt": time.Now(),
	}})
	return err
}

// Restore takes a file back out of the bin.
func (r *FileRepository) Restore(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"isDeleted": false,
		"deletedAt": nil,
	}})
	return err
}

// Delete removes a file record permanently.
func (r *FileRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// SoftDeleteByFolder moves every file of a folder to the bin. Used when the
// folder itself is deleted; the files stay restorable.
func (r *FileRepository) SoftDeleteByFolder(ctx context.Context, folderID primitive.ObjectID) error {
	_, err := r.coll.UpdateMany(ctx, bson.M{"folderId": folderID}, bson.M{"$set": bson.M{
		"isDeleted": true,
		"deletedAt": time.Now(),
	}})
	return err
}

// DeleteExpired permanently removes records that were binned before cutoff.
// Active records and more recently binned ones are never touched.
func (r *FileRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{
		"isDeleted": true,
		"deletedAt": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (r *FileRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.File, error) {
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	files := []*models.File{}
	if err := cursor.All(ctx, &files); err != nil {
		return nil, err
	}
	return files, nil
}
