package service

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dikshanttatrari/family-cloud-backend/models"
	"github.com/dikshanttatrari/family-cloud-backend/progress"
	"github.com/dikshanttatrari/family-cloud-backend/remote"
)

// FileCreator persists new file records.
type FileCreator interface {
	Create(ctx context.Context, file *models.File) error
}

// FolderGetter resolves upload target folders.
type FolderGetter interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Folder, error)
}

// PreviewUploader is the bot-channel capability the pipeline needs: a small
// photo upload that yields a fast-path preview reference.
type PreviewUploader interface {
	SendPhoto(ctx context.Context, path, caption string) (string, error)
}

// BlobUploader is the account-channel capability: the primary upload that
// can carry multi-gigabyte payloads and reports progress.
type BlobUploader interface {
	Upload(ctx context.Context, in remote.UploadInput) (int, error)
}

// ImageTools and VideoTools are the transform steps, split so tests can
// swap them without touching real codecs.
type ImageTools interface {
	DecodeHEIC(src, dst string) error
	Optimize(src, dst string) error
	Thumbnail(src, dst string) error
}

// VideoTools transforms videos.
type VideoTools interface {
	Compress(ctx context.Context, src, dst string, onProgress func(percent int)) error
	Thumbnail(src, dst string) error
}

// StagedFile is one multipart upload already saved to a local temp path.
// The pipeline owns the path from here on and removes it when done.
type StagedFile struct {
	Path         string
	OriginalName string
	MimeType     string
	Size         int64
}

// BatchOptions applies to every file of one upload request.
type BatchOptions struct {
	FolderID   string
	UploadedBy string
	SocketID   string
}

// ItemError records a single failed file within a batch.
type ItemError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// Uploader runs the upload pipeline: classify, transform, thumbnail,
// preview, cloud upload, persist.
type Uploader struct {
	files   FileCreator
	folders FolderGetter
	bot     PreviewUploader
	account BlobUploader
	images  ImageTools
	videos  VideoTools
	sink    progress.Sink

	defaultUploadedBy string
}

// UploaderOption is a functional option for Uploader.
type UploaderOption func(*Uploader)

// WithFileStore sets the record store.
func WithFileStore(files FileCreator) UploaderOption {
	return func(u *Uploader) { u.files = files }
}

// WithFolderStore sets the folder resolver.
func WithFolderStore(folders FolderGetter) UploaderOption {
	return func(u *Uploader) { u.folders = folders }
}

// WithBotChannel sets the bot-channel client.
func WithBotChannel(bot PreviewUploader) UploaderOption {
	return func(u *Uploader) { u.bot = bot }
}

// WithAccountChannel sets the account-channel client.
func WithAccountChannel(account BlobUploader) UploaderOption {
	return func(u *Uploader) { u.account = account }
}

// WithImageTools sets the image transforms.
func WithImageTools(images ImageTools) UploaderOption {
	return func(u *Uploader) { u.images = images }
}

// WithVideoTools sets the video transforms.
func WithVideoTools(videos VideoTools) UploaderOption {
	return func(u *Uploader) { u.videos = videos }
}

// WithProgressSink sets the progress sink.
func WithProgressSink(sink progress.Sink) UploaderOption {
	return func(u *Uploader) { u.sink = sink }
}

// WithDefaultUploadedBy sets the attribution used when a request carries none.
func WithDefaultUploadedBy(name string) UploaderOption {
	return func(u *Uploader) { u.defaultUploadedBy = name }
}

// NewUploader creates a new upload pipeline.
func NewUploader(opts ...UploaderOption) *Uploader {
	u := &Uploader{sink: progress.Nop{}, defaultUploadedBy: "Family"}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// UploadBatch runs the pipeline for each staged file in order and returns
// the created records plus one error entry per failed file. Files are
// processed strictly sequentially: parallel uploads would trip Telegram's
// rate limits and multiply transcoding memory use.
func (u *Uploader) UploadBatch(ctx context.Context, staged []StagedFile, opts BatchOptions) ([]*models.File, []ItemError) {
	var created []*models.File
	var failed []ItemError

	for i, sf := range staged {
		u.sink.Emit(opts.SocketID, progress.Event{
			Stage:       progress.StageProcessing,
			Percent:     0,
			CurrentFile: i + 1,
			TotalFiles:  len(staged),
		})

		rec, err := u.processOne(ctx, sf, opts)
		if err != nil {
			log.Printf("upload failed for %s: %v", sf.OriginalName, err)
			failed = append(failed, ItemError{File: sf.OriginalName, Error: err.Error()})
			continue
		}
		created = append(created, rec)
		log.Printf("upload complete: %s", rec.Name)
	}
	return created, failed
}

// processOne runs the full pipeline for a single file. Every temp artifact
// it creates (and the staged original) is removed before it returns, on
// success and on every failure path alike.
func (u *Uploader) processOne(ctx context.Context, sf StagedFile, opts BatchOptions) (*models.File, error) {
	isHeic := isHeicFile(sf.OriginalName, sf.MimeType)
	isVideo := strings.HasPrefix(sf.MimeType, "video")
	isImage := isHeic || strings.HasPrefix(sf.MimeType, "image")

	kind := models.KindDocument
	switch {
	case isImage:
		kind = models.KindImage
	case isVideo:
		kind = models.KindVideo
	}

	localPath := sf.Path
	finalName := sf.OriginalName
	mimeType := sf.MimeType
	size := sf.Size
	tmpDir := filepath.Dir(localPath)
	thumbPath := filepath.Join(tmpDir, fmt.Sprintf("thumb_%s.jpg", uuid.NewString()))

	tmp := &tempArtifacts{}
	tmp.add(localPath)
	tmp.add(thumbPath)
	defer tmp.removeAll()

	// HEIC needs decoding before anything else can read it.
	if isHeic {
		decoded := localPath + ".jpg"
		if err := u.images.DecodeHEIC(localPath, decoded); err != nil {
			return nil, fmt.Errorf("heic decode: %w", err)
		}
		tmp.add(decoded)
		localPath = decoded
		finalName = replaceExt(finalName, ".jpg")
		mimeType = "image/jpeg"
	}

	// Folder routing renames the file and targets the folder's topic.
	var folderID *primitive.ObjectID
	topicID := 0
	if oid, ok := parseFolderID(opts.FolderID); ok {
		if folder, err := u.folders.GetByID(ctx, oid); err == nil && folder != nil {
			ext := filepath.Ext(finalName)
			safe := whitespaceRe.ReplaceAllString(folder.Name, "_")
			finalName = fmt.Sprintf("%s_%d_%s%s", safe, time.Now().UnixMilli(), randomSuffix(), ext)
			topicID = folder.TelegramTopicID
			folderID = &oid
		}
	}

	uploadPath := localPath
	hasThumb := false

	if isImage {
		u.sink.Emit(opts.SocketID, progress.Event{Stage: progress.StageOptimizingImage, Percent: 20})

		optimized := filepath.Join(tmpDir, fmt.Sprintf("opt_%s.jpg", uuid.NewString()))
		tmp.add(optimized)
		if err := u.images.Optimize(localPath, optimized); err != nil {
			// Degrade, don't abort: ship the un-normalized original.
			log.Printf("image optimize failed for %s, uploading original: %v", finalName, err)
		} else {
			uploadPath = optimized
			finalName = replaceExt(finalName, ".jpg")
			mimeType = "image/jpeg"
		}

		if err := u.images.Thumbnail(uploadPath, thumbPath); err != nil {
			log.Printf("thumbnail failed for %s: %v", finalName, err)
		} else {
			hasThumb = true
		}
		size = artifactSize(uploadPath, size)
	} else if isVideo {
		if err := u.videos.Thumbnail(localPath, thumbPath); err != nil {
			log.Printf("video thumbnail failed for %s: %v", finalName, err)
		} else {
			hasThumb = true
		}

		compressed := filepath.Join(tmpDir, fmt.Sprintf("hq_%s.mp4", uuid.NewString()))
		tmp.add(compressed)
		err := u.videos.Compress(ctx, localPath, compressed, func(p int) {
			// The transcode must never look finished: the cloud upload
			// stage still follows.
			if p > 99 {
				p = 99
			}
			u.sink.Emit(opts.SocketID, progress.Event{Stage: progress.StageCompressingVideo, Percent: p})
		})
		if err != nil {
			return nil, fmt.Errorf("video compress: %w", err)
		}
		uploadPath = compressed
		finalName = replaceExt(finalName, ".mp4")
		mimeType = "video/mp4"
		size = artifactSize(uploadPath, size)
	}

	// Images get a dedicated preview upload for fast grid rendering. Video
	// intentionally skips this: the frontend streams the main file instead.
	previewFileID := ""
	if isImage {
		if id, err := u.bot.SendPhoto(ctx, uploadPath, "Preview Artifact"); err != nil {
			log.Printf("preview upload skipped for %s: %v", finalName, err)
		} else {
			previewFileID = id
		}
	}

	u.sink.Emit(opts.SocketID, progress.Event{Stage: progress.StageCloudUpload, Percent: 0})
	log.Printf("uploading to cloud: %s (%s)", finalName, formatSize(size))

	lastPercent := -1
	in := remote.UploadInput{
		Path:      uploadPath,
		Filename:  finalName,
		MimeType:  mimeType,
		Caption:   "File: " + finalName,
		TopicID:   topicID,
		Video:     isVideo,
		ForceFile: !isImage && !isVideo,
		OnProgress: func(p int) {
			// Quantize to 5% steps to bound event volume.
			if p%5 != 0 || p == lastPercent {
				return
			}
			lastPercent = p
			u.sink.Emit(opts.SocketID, progress.Event{Stage: progress.StageCloudUpload, Percent: p})
		},
	}
	if hasThumb {
		in.ThumbPath = thumbPath
	}

	messageID, err := u.account.Upload(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("cloud upload: %w", err)
	}

	uploadedBy := opts.UploadedBy
	if uploadedBy == "" {
		uploadedBy = u.defaultUploadedBy
	}
	rec := &models.File{
		Name:              finalName,
		Type:              kind,
		Size:              formatSize(size),
		FolderID:          folderID,
		TelegramMessageID: messageID,
		TelegramFileID:    strconv.Itoa(messageID),
		PreviewFileID:     previewFileID,
		CreatedAt:         time.Now(),
		UploadedBy:        uploadedBy,
	}
	if err := u.files.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("save record: %w", err)
	}
	return rec, nil
}

// tempArtifacts tracks every temp path one file's pipeline run touches and
// removes each exactly once.
type tempArtifacts struct {
	paths []string
}

func (t *tempArtifacts) add(path string) {
	if path != "" {
		t.paths = append(t.paths, path)
	}
}

func (t *tempArtifacts) removeAll() {
	seen := make(map[string]bool, len(t.paths))
	for _, p := range t.paths {
		if seen[p] {
			continue
		}
		seen[p] = true
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Printf("temp cleanup failed for %s: %v", p, err)
		}
	}
}

var whitespaceRe = regexp.MustCompile(`\s+`)

const suffixAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

func randomSuffix() string {
	b := make([]byte, 5)
	for i := range b {
		b[i] = suffixAlphabet[rand.Intn(len(suffixAlphabet))]
	}
	return string(b)
}

func isHeicFile(name, mimeType string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".heic") ||
		mimeType == "image/heic" || mimeType == "image/heif"
}

// parseFolderID tolerates the frontend sending "null" for unfiled uploads.
func parseFolderID(raw string) (primitive.ObjectID, bool) {
	if raw == "" || raw == "null" {
		return primitive.NilObjectID, false
	}
	oid, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return oid, true
}

func replaceExt(name, ext string) string {
	if strings.EqualFold(filepath.Ext(name), ext) {
		return name
	}
	return strings.TrimSuffix(name, filepath.Ext(name)) + ext
}

// artifactSize re-measures the artifact that will actually be uploaded.
func artifactSize(path string, fallback int64) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return fallback
	}
	return info.Size()
}
