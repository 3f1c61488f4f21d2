package handlers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log"
	mathrand "math/rand"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/dikshanttatrari/family-cloud-backend/models"
)

// FolderStore is the folder store surface the folder routes need.
type FolderStore interface {
	Create(ctx context.Context, folder *models.Folder) error
	List(ctx context.Context) ([]*models.Folder, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Folder, error)
	GetByShareID(ctx context.Context, shareID string) (*models.Folder, error)
	SetSharing(ctx context.Context, id primitive.ObjectID, isPublic bool, shareID string) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// FolderFileStore lists and trashes the files inside a folder.
type FolderFileStore interface {
	ListByFolder(ctx context.Context, folderID primitive.ObjectID) ([]*models.File, error)
	SoftDeleteByFolder(ctx context.Context, folderID primitive.ObjectID) error
}

// TopicManager manages the forum topic backing each folder.
type TopicManager interface {
	CreateTopic(ctx context.Context, name string) (int, error)
	CloseTopic(ctx context.Context, topicID int) error
}

// FolderHandler serves the folder routes.
type FolderHandler struct {
	folders   FolderStore
	files     FolderFileStore
	topics    TopicManager
	createdBy string
}

// NewFolderHandler creates a folder handler.
func NewFolderHandler(folders FolderStore, files FolderFileStore, topics TopicManager, createdBy string) *FolderHandler {
	return &FolderHandler{folders: folders, files: files, topics: topics, createdBy: createdBy}
}

type createFolderRequest struct {
	Name string `json:"name"`
}

// Create handles POST /api/folders. Topic creation failure does not block
// the folder: a placeholder topic id keeps uploads routable to the general
// channel until the topic is recreated.
func (h *FolderHandler) Create(c *gin.Context) {
	var req createFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Folder name required"})
		return
	}

	topicID, err := h.topics.CreateTopic(c.Request.Context(), req.Name)
	if err != nil {
		log.Printf("topic creation failed for folder %q: %v", req.Name, err)
		topicID = placeholderTopicID()
	}

	folder := &models.Folder{
		Name:            req.Name,
		TelegramTopicID: topicID,
		CreatedAt:       time.Now(),
		CreatedBy:       h.createdBy,
	}
	if err := h.folders.Create(c.Request.Context(), folder); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to create folder"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": folder})
}

// List handles GET /api/folders.
func (h *FolderHandler) List(c *gin.Context) {
	folders, err := h.folders.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to fetch folders"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": folders})
}

// TogglePublic handles PATCH /api/folders/:id/toggle-public. The share id
// is minted once and survives later private/public flips, so an old link
// works again after re-sharing.
func (h *FolderHandler) TogglePublic(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	folder, err := h.folders.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Folder not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to fetch folder"})
		return
	}

	folder.IsPublic = !folder.IsPublic
	newShareID := ""
	if folder.IsPublic && folder.ShareID == "" {
		newShareID = mintShareID()
		folder.ShareID = newShareID
	}

	if err := h.folders.SetSharing(c.Request.Context(), id, folder.IsPublic, newShareID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to update folder"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": folder})
}

// PublicByShare handles GET /api/folders/public/:shareId without auth.
// Unknown links and private folders are indistinguishable to the caller.
func (h *FolderHandler) PublicByShare(c *gin.Context) {
	folder, err := h.folders.GetByShareID(c.Request.Context(), c.Param("shareId"))
	if err != nil || !folder.IsPublic {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Link is expired or private"})
		return
	}

	files, err := h.files.ListByFolder(c.Request.Context(), folder.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to fetch folder files"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"folder": folder, "files": files}})
}

// Delete handles DELETE /api/folders/:id. The folder's files move to the
// bin rather than being destroyed with it.
func (h *FolderHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	folder, err := h.folders.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Folder not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to fetch folder"})
		return
	}

	if err := h.files.SoftDeleteByFolder(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to move files to bin"})
		return
	}
	if err := h.folders.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to delete folder"})
		return
	}

	if folder.TelegramTopicID != 0 {
		if err := h.topics.CloseTopic(c.Request.Context(), folder.TelegramTopicID); err != nil {
			log.Printf("topic close failed for folder %q: %v", folder.Name, err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Folder deleted, files moved to bin"})
}

func mintShareID() string {
	b := make([]byte, 4)
	rand.Read(b)
	return hex.EncodeToString(b)
}

func placeholderTopicID() int {
	return mathrand.Intn(1000000)
}
