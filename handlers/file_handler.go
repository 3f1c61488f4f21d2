package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/dikshanttatrari/family-cloud-backend/models"
	"github.com/dikshanttatrari/family-cloud-backend/remote"
	"github.com/dikshanttatrari/family-cloud-backend/service"
)

// FileStore is the record store surface the file routes need.
type FileStore interface {
	ListActive(ctx context.Context) ([]*models.File, error)
	ListTrash(ctx context.Context) ([]*models.File, error)
	ListRecent(ctx context.Context, limit int64) ([]*models.File, error)
	SoftDelete(ctx context.Context, id primitive.ObjectID) error
	Restore(ctx context.Context, id primitive.ObjectID) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// UploadRunner runs the upload pipeline for staged files.
type UploadRunner interface {
	UploadBatch(ctx context.Context, staged []service.StagedFile, opts service.BatchOptions) ([]*models.File, []service.ItemError)
}

// MediaResolver resolves preview and download sources.
type MediaResolver interface {
	Preview(ctx context.Context, id primitive.ObjectID) (*service.Preview, *models.File, error)
	Download(ctx context.Context, id primitive.ObjectID) (*service.Download, error)
	Stream(ctx context.Context, ref *remote.FileRef, w io.Writer) error
}

// FileHandler serves the file routes.
type FileHandler struct {
	store    FileStore
	uploader UploadRunner
	media    MediaResolver
}

// NewFileHandler creates a file handler.
func NewFileHandler(store FileStore, uploader UploadRunner, media MediaResolver) *FileHandler {
	return &FileHandler{store: store, uploader: uploader, media: media}
}

// stage saves one multipart file under the system temp dir and returns it
// as pipeline input. The pipeline owns the path from here on.
func stage(fh *multipart.FileHeader) (service.StagedFile, error) {
	src, err := fh.Open()
	if err != nil {
		return service.StagedFile{}, err
	}
	defer src.Close()

	path := filepath.Join(os.TempDir(), fmt.Sprintf("%d-%s", time.Now().UnixMilli(), filepath.Base(fh.Filename)))
	dst, err := os.Create(path)
	if err != nil {
		return service.StagedFile{}, err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(path)
		return service.StagedFile{}, err
	}

	return service.StagedFile{
		Path:         path,
		OriginalName: fh.Filename,
		MimeType:     fh.Header.Get("Content-Type"),
		Size:         fh.Size,
	}, nil
}

func batchOptions(c *gin.Context) service.BatchOptions {
	return service.BatchOptions{
		FolderID:   c.PostForm("folderId"),
		UploadedBy: c.PostForm("uploadedBy"),
		SocketID:   c.PostForm("socketId"),
	}
}

// Upload handles POST /api/files/upload with a single "file" field.
func (h *FileHandler) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "No file uploaded"})
		return
	}

	staged, err := stage(fh)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to save file"})
		return
	}

	created, failed := h.uploader.UploadBatch(context.Background(), []service.StagedFile{staged}, batchOptions(c))
	if len(created) == 0 {
		msg := "Upload failed"
		if len(failed) > 0 {
			msg = failed[0].Error
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": msg})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": created[0]})
}

// UploadMultiple handles POST /api/files/upload-multiple with a "files" field.
func (h *FileHandler) UploadMultiple(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "No files"})
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "No files"})
		return
	}

	var staged []service.StagedFile
	var failed []service.ItemError
	for _, fh := range headers {
		sf, err := stage(fh)
		if err != nil {
			log.Printf("staging failed for %s: %v", fh.Filename, err)
			failed = append(failed, service.ItemError{File: fh.Filename, Error: "failed to save upload"})
			continue
		}
		staged = append(staged, sf)
	}

	created, uploadErrs := h.uploader.UploadBatch(context.Background(), staged, batchOptions(c))
	failed = append(failed, uploadErrs...)

	if created == nil {
		created = []*models.File{}
	}
	// The errors key is always present: a JSON null on a clean batch, the
	// per-file list otherwise. success stays true even on partial failure;
	// callers inspect errors for the failed items.
	var errList any
	if len(failed) > 0 {
		errList = failed
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": created, "errors": errList})
}

// List handles GET /api/files.
func (h *FileHandler) List(c *gin.Context) {
	files, err := h.store.ListActive(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to fetch files"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": files})
}

// ListTrash handles GET /api/files/trash.
func (h *FileHandler) ListTrash(c *gin.Context) {
	files, err := h.store.ListTrash(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to fetch trash"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": files})
}

// ListRecent handles GET /api/files/recent.
func (h *FileHandler) ListRecent(c *gin.Context) {
	files, err := h.store.ListRecent(c.Request.Context(), 20)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to fetch recent files"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": files})
}

func parseID(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid id"})
		return primitive.NilObjectID, false
	}
	return id, true
}

// SoftDelete handles DELETE /api/files/:id.
func (h *FileHandler) SoftDelete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.store.SoftDelete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to delete file"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Moved to Bin"})
}

// Restore handles POST /api/files/restore/:id.
func (h *FileHandler) Restore(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.store.Restore(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to restore file"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "File Restored"})
}

// PermanentDelete handles DELETE /api/files/permanent/:id.
func (h *FileHandler) PermanentDelete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to delete file"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Permanently Deleted"})
}

// Preview handles GET /api/files/preview/:id. It either redirects to a
// bot-channel URL or writes JPEG bytes inline.
func (h *FileHandler) Preview(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	preview, _, err := h.media.Preview(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "File not found"})
			return
		}
		if errors.Is(err, service.ErrNoPreview) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "No preview found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to load preview"})
		return
	}

	if preview.RedirectURL != "" {
		c.Redirect(http.StatusFound, preview.RedirectURL)
		return
	}
	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, "image/jpeg", preview.Data)
}

// Download handles GET /api/files/download/:id. Account-channel blobs are
// streamed through this process; legacy bot-channel files redirect.
func (h *FileHandler) Download(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	dl, err := h.media.Download(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "File not found"})
			return
		}
		if errors.Is(err, service.ErrUnavailable) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Media unavailable"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to load file"})
		return
	}

	if dl.RedirectURL != "" {
		c.Redirect(http.StatusFound, dl.RedirectURL)
		return
	}

	disposition := "attachment"
	if c.Query("inline") == "true" {
		disposition = "inline"
	}
	c.Header("Content-Type", dl.Ref.MimeType)
	c.Header("Content-Disposition", fmt.Sprintf(`%s; filename="%s"`, disposition, url.PathEscape(dl.Name)))
	c.Header("Content-Length", fmt.Sprintf("%d", dl.Ref.Size))
	c.Header("Accept-Ranges", "bytes")

	if err := h.media.Stream(c.Request.Context(), dl.Ref, c.Writer); err != nil {
		log.Printf("stream failed for %s: %v", dl.Name, err)
	}
}
