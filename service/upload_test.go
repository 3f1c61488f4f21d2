package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dikshanttatrari/family-cloud-backend/models"
	"github.com/dikshanttatrari/family-cloud-backend/progress"
	"github.com/dikshanttatrari/family-cloud-backend/remote"
)

type fakeFiles struct {
	created []*models.File
	err     error
}

func (f *fakeFiles) Create(ctx context.Context, file *models.File) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, file)
	return nil
}

type fakeFolders struct {
	folders map[primitive.ObjectID]*models.Folder
}

func (f *fakeFolders) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Folder, error) {
	folder, ok := f.folders[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return folder, nil
}

type fakeBot struct {
	fileID string
	err    error
	calls  int
}

func (b *fakeBot) SendPhoto(ctx context.Context, path, caption string) (string, error) {
	b.calls++
	if b.err != nil {
		return "", b.err
	}
	return b.fileID, nil
}

type fakeAccount struct {
	nextID   int
	err      error
	uploads  []remote.UploadInput
	progress []int
}

func (a *fakeAccount) Upload(ctx context.Context, in remote.UploadInput) (int, error) {
	a.uploads = append(a.uploads, in)
	if in.OnProgress != nil {
		for _, p := range a.progress {
			in.OnProgress(p)
		}
	}
	if a.err != nil {
		return 0, a.err
	}
	a.nextID++
	return a.nextID, nil
}

// fakeImages and fakeVideos create real files at dst so cleanup behavior
// can be observed on disk.
type fakeImages struct {
	decodeErr   error
	optimizeErr error
	thumbErr    error
}

func writeArtifact(dst string, data []byte) error {
	return os.WriteFile(dst, data, 0o644)
}

func (f *fakeImages) DecodeHEIC(src, dst string) error {
	if f.decodeErr != nil {
		return f.decodeErr
	}
	return writeArtifact(dst, []byte("decoded"))
}

func (f *fakeImages) Optimize(src, dst string) error {
	if f.optimizeErr != nil {
		return f.optimizeErr
	}
	return writeArtifact(dst, []byte("optimized"))
}

func (f *fakeImages) Thumbnail(src, dst string) error {
	if f.thumbErr != nil {
		return f.thumbErr
	}
	return writeArtifact(dst, []byte("thumb"))
}

type fakeVideos struct {
	compressErr error
	thumbErr    error
	percents    []int
}

func (f *fakeVideos) Compress(ctx context.Context, src, dst string, onProgress func(int)) error {
	if f.compressErr != nil {
		return f.compressErr
	}
	for _, p := range f.percents {
		onProgress(p)
	}
	return writeArtifact(dst, []byte("compressed"))
}

func (f *fakeVideos) Thumbnail(src, dst string) error {
	if f.thumbErr != nil {
		return f.thumbErr
	}
	return writeArtifact(dst, []byte("vthumb"))
}

type captureSink struct {
	ids    []string
	events []progress.Event
}

func (s *captureSink) Emit(id string, ev progress.Event) {
	s.ids = append(s.ids, id)
	s.events = append(s.events, ev)
}

func (s *captureSink) byStage(stage string) []progress.Event {
	var out []progress.Event
	for _, ev := range s.events {
		if ev.Stage == stage {
			out = append(out, ev)
		}
	}
	return out
}

func stageFile(t *testing.T, dir, name string, mime string) StagedFile {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	return StagedFile{Path: path, OriginalName: name, MimeType: mime, Size: 7}
}

func newTestUploader(files *fakeFiles, folders *fakeFolders, bot *fakeBot, account *fakeAccount, images ImageTools, videos VideoTools, sink progress.Sink) *Uploader {
	if folders == nil {
		folders = &fakeFolders{}
	}
	if sink == nil {
		sink = progress.Nop{}
	}
	return NewUploader(
		WithFileStore(files),
		WithFolderStore(folders),
		WithBotChannel(bot),
		WithAccountChannel(account),
		WithImageTools(images),
		WithVideoTools(videos),
		WithProgressSink(sink),
		WithDefaultUploadedBy("Family"),
	)
}

func TestUploadBatchKinds(t *testing.T) {
	tests := []struct {
		name     string
		mime     string
		wantKind string
		wantExt  string
	}{
		{"photo.png", "image/png", models.KindImage, ".jpg"},
		{"IMG_0001.HEIC", "image/heic", models.KindImage, ".jpg"},
		{"clip.mov", "video/quicktime", models.KindVideo, ".mp4"},
		{"report.pdf", "application/pdf", models.KindDocument, ".pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := &fakeFiles{}
			account := &fakeAccount{}
			u := newTestUploader(files, nil, &fakeBot{fileID: "preview-1"}, account, &fakeImages{}, &fakeVideos{}, nil)

			sf := stageFile(t, t.TempDir(), tt.name, tt.mime)
			created, failed := u.UploadBatch(context.Background(), []StagedFile{sf}, BatchOptions{})
			if len(failed) != 0 {
				t.Fatalf("unexpected failures: %v", failed)
			}
			if len(created) != 1 {
				t.Fatalf("created = %d, want 1", len(created))
			}

			rec := created[0]
			if rec.Type != tt.wantKind {
				t.Errorf("Type = %q, want %q", rec.Type, tt.wantKind)
			}
			if got := filepath.Ext(rec.Name); got != tt.wantExt {
				t.Errorf("ext = %q, want %q", got, tt.wantExt)
			}
		})
	}
}

func TestUploadRecordRemoteRefs(t *testing.T) {
	files := &fakeFiles{}
	account := &fakeAccount{nextID: 41}
	u := newTestUploader(files, nil, &fakeBot{fileID: "bot-preview"}, account, &fakeImages{}, &fakeVideos{}, nil)

	sf := stageFile(t, t.TempDir(), "photo.jpg", "image/jpeg")
	created, _ := u.UploadBatch(context.Background(), []StagedFile{sf}, BatchOptions{})
	if len(created) != 1 {
		t.Fatal("expected one record")
	}

	rec := created[0]
	if rec.TelegramMessageID != 42 {
		t.Errorf("TelegramMessageID = %d, want 42", rec.TelegramMessageID)
	}
	if rec.TelegramFileID != strconv.Itoa(rec.TelegramMessageID) {
		t.Errorf("TelegramFileID = %q, want message id mirror", rec.TelegramFileID)
	}
	if rec.PreviewFileID != "bot-preview" {
		t.Errorf("PreviewFileID = %q", rec.PreviewFileID)
	}
	if !rec.HasRemoteRef() {
		t.Error("record has no remote ref")
	}
	if rec.UploadedBy != "Family" {
		t.Errorf("UploadedBy = %q", rec.UploadedBy)
	}
}

func TestUploadCleansTempFiles(t *testing.T) {
	dir := t.TempDir()
	files := &fakeFiles{}
	u := newTestUploader(files, nil, &fakeBot{fileID: "p"}, &fakeAccount{}, &fakeImages{}, &fakeVideos{}, nil)

	staged := []StagedFile{
		stageFile(t, dir, "photo.heic", "image/heic"),
		stageFile(t, dir, "clip.mp4", "video/mp4"),
		stageFile(t, dir, "notes.txt", "text/plain"),
	}
	_, failed := u.UploadBatch(context.Background(), staged, BatchOptions{})
	if len(failed) != 0 {
		t.Fatalf("unexpected failures: %v", failed)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("temp files left behind: %v", names)
	}
}

func TestUploadCleansTempFilesOnFailure(t *testing.T) {
	dir := t.TempDir()
	files := &fakeFiles{}
	account := &fakeAccount{err: errors.New("flood wait")}
	u := newTestUploader(files, nil, &fakeBot{fileID: "p"}, account, &fakeImages{}, &fakeVideos{}, nil)

	sf := stageFile(t, dir, "photo.jpg", "image/jpeg")
	created, failed := u.UploadBatch(context.Background(), []StagedFile{sf}, BatchOptions{})
	if len(created) != 0 {
		t.Fatal("expected no records")
	}
	if len(failed) != 1 || failed[0].File != "photo.jpg" {
		t.Fatalf("failed = %v", failed)
	}
	if len(files.created) != 0 {
		t.Error("record persisted despite upload failure")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("temp files left behind after failure: %d", len(entries))
	}
}

func TestUploadBatchContinuesPastFailure(t *testing.T) {
	dir := t.TempDir()
	files := &fakeFiles{}
	account := &fakeAccount{}
	videos := &fakeVideos{compressErr: errors.New("codec blew up")}
	sink := &captureSink{}
	u := newTestUploader(files, nil, &fakeBot{fileID: "p"}, account, &fakeImages{}, videos, sink)

	staged := []StagedFile{
		stageFile(t, dir, "a.jpg", "image/jpeg"),
		stageFile(t, dir, "b.mp4", "video/mp4"),
		stageFile(t, dir, "c.jpg", "image/jpeg"),
	}
	created, failed := u.UploadBatch(context.Background(), staged, BatchOptions{SocketID: "sock-1"})

	if len(created) != 2 {
		t.Errorf("created = %d, want 2", len(created))
	}
	if len(failed) != 1 || failed[0].File != "b.mp4" {
		t.Fatalf("failed = %v", failed)
	}

	processing := sink.byStage(progress.StageProcessing)
	if len(processing) != 3 {
		t.Fatalf("processing events = %d, want 3", len(processing))
	}
	for i, ev := range processing {
		if ev.CurrentFile != i+1 || ev.TotalFiles != 3 {
			t.Errorf("event %d = %+v", i, ev)
		}
	}
	for _, id := range sink.ids {
		if id != "sock-1" {
			t.Errorf("event sent to %q", id)
		}
	}

	// Uploads happen one at a time, in request order.
	if len(account.uploads) != 2 {
		t.Fatalf("uploads = %d", len(account.uploads))
	}
	if account.uploads[0].Filename != "a.jpg" || account.uploads[1].Filename != "c.jpg" {
		t.Errorf("upload order: %q, %q", account.uploads[0].Filename, account.uploads[1].Filename)
	}
}

func TestUploadIntoFolder(t *testing.T) {
	folderID := primitive.NewObjectID()
	folders := &fakeFolders{folders: map[primitive.ObjectID]*models.Folder{
		folderID: {ID: folderID, Name: "My Photos", TelegramTopicID: 77},
	}}
	files := &fakeFiles{}
	account := &fakeAccount{}
	u := newTestUploader(files, folders, &fakeBot{fileID: "p"}, account, &fakeImages{}, &fakeVideos{}, nil)

	sf := stageFile(t, t.TempDir(), "photo.jpg", "image/jpeg")
	created, failed := u.UploadBatch(context.Background(), []StagedFile{sf}, BatchOptions{FolderID: folderID.Hex()})
	if len(failed) != 0 {
		t.Fatalf("unexpected failures: %v", failed)
	}

	rec := created[0]
	namePattern := regexp.MustCompile(`^My_Photos_\d+_[0-9a-z]{5}\.jpg$`)
	if !namePattern.MatchString(rec.Name) {
		t.Errorf("Name = %q, want folder-derived name", rec.Name)
	}
	if rec.FolderID == nil || *rec.FolderID != folderID {
		t.Errorf("FolderID = %v", rec.FolderID)
	}
	if account.uploads[0].TopicID != 77 {
		t.Errorf("TopicID = %d, want 77", account.uploads[0].TopicID)
	}
}

func TestUploadUnknownFolderFallsBack(t *testing.T) {
	files := &fakeFiles{}
	account := &fakeAccount{}
	u := newTestUploader(files, &fakeFolders{}, &fakeBot{fileID: "p"}, account, &fakeImages{}, &fakeVideos{}, nil)

	sf := stageFile(t, t.TempDir(), "photo.jpg", "image/jpeg")
	created, failed := u.UploadBatch(context.Background(), []StagedFile{sf}, BatchOptions{FolderID: primitive.NewObjectID().Hex()})
	if len(failed) != 0 {
		t.Fatalf("unexpected failures: %v", failed)
	}
	if created[0].FolderID != nil {
		t.Error("FolderID set for unknown folder")
	}
	if account.uploads[0].TopicID != 0 {
		t.Errorf("TopicID = %d, want 0", account.uploads[0].TopicID)
	}
}

func TestUploadOptimizeFailureDegrades(t *testing.T) {
	files := &fakeFiles{}
	account := &fakeAccount{}
	images := &fakeImages{optimizeErr: errors.New("corrupt jpeg")}
	u := newTestUploader(files, nil, &fakeBot{fileID: "p"}, account, images, &fakeVideos{}, nil)

	dir := t.TempDir()
	sf := stageFile(t, dir, "photo.png", "image/png")
	created, failed := u.UploadBatch(context.Background(), []StagedFile{sf}, BatchOptions{})
	if len(failed) != 0 {
		t.Fatalf("optimize failure must not fail the upload: %v", failed)
	}
	if created[0].Name != "photo.png" {
		t.Errorf("Name = %q, want original name kept", created[0].Name)
	}
	if account.uploads[0].Path != sf.Path {
		t.Errorf("uploaded %q, want the original %q", account.uploads[0].Path, sf.Path)
	}
}

func TestUploadThumbnailFailureIsNonFatal(t *testing.T) {
	files := &fakeFiles{}
	account := &fakeAccount{}
	videos := &fakeVideos{thumbErr: errors.New("no keyframe")}
	u := newTestUploader(files, nil, &fakeBot{fileID: "p"}, account, &fakeImages{}, videos, nil)

	sf := stageFile(t, t.TempDir(), "clip.mp4", "video/mp4")
	created, failed := u.UploadBatch(context.Background(), []StagedFile{sf}, BatchOptions{})
	if len(failed) != 0 {
		t.Fatalf("thumbnail failure must not fail the upload: %v", failed)
	}
	if created[0].Type != models.KindVideo {
		t.Errorf("Type = %q", created[0].Type)
	}
	if account.uploads[0].ThumbPath != "" {
		t.Error("ThumbPath set despite thumbnail failure")
	}
}

func TestUploadPreviewFailureIsNonFatal(t *testing.T) {
	files := &fakeFiles{}
	u := newTestUploader(files, nil, &fakeBot{err: errors.New("bot down")}, &fakeAccount{}, &fakeImages{}, &fakeVideos{}, nil)

	sf := stageFile(t, t.TempDir(), "photo.jpg", "image/jpeg")
	created, failed := u.UploadBatch(context.Background(), []StagedFile{sf}, BatchOptions{})
	if len(failed) != 0 {
		t.Fatalf("preview failure must not fail the upload: %v", failed)
	}
	if created[0].PreviewFileID != "" {
		t.Errorf("PreviewFileID = %q, want empty", created[0].PreviewFileID)
	}
}

func TestUploadDocumentSkipsPreview(t *testing.T) {
	bot := &fakeBot{fileID: "p"}
	u := newTestUploader(&fakeFiles{}, nil, bot, &fakeAccount{}, &fakeImages{}, &fakeVideos{}, nil)

	sf := stageFile(t, t.TempDir(), "report.pdf", "application/pdf")
	_, failed := u.UploadBatch(context.Background(), []StagedFile{sf}, BatchOptions{})
	if len(failed) != 0 {
		t.Fatalf("unexpected failures: %v", failed)
	}
	if bot.calls != 0 {
		t.Errorf("preview uploaded for a document (%d calls)", bot.calls)
	}
}

func TestCloudUploadProgressQuantized(t *testing.T) {
	var raw []int
	for p := 0; p <= 100; p++ {
		raw = append(raw, p, p)
	}
	account := &fakeAccount{progress: raw}
	sink := &captureSink{}
	u := newTestUploader(&fakeFiles{}, nil, &fakeBot{fileID: "p"}, account, &fakeImages{}, &fakeVideos{}, sink)

	sf := stageFile(t, t.TempDir(), "photo.jpg", "image/jpeg")
	_, failed := u.UploadBatch(context.Background(), []StagedFile{sf}, BatchOptions{SocketID: "s"})
	if len(failed) != 0 {
		t.Fatalf("unexpected failures: %v", failed)
	}

	events := sink.byStage(progress.StageCloudUpload)
	// Stage announcement plus 0,5,...,100.
	want := []int{0, 0, 5, 10, 15, 20, 25, 30, 35, 40, 45, 50, 55, 60, 65, 70, 75, 80, 85, 90, 95, 100}
	if len(events) != len(want) {
		t.Fatalf("cloud_upload events = %d, want %d", len(events), len(want))
	}
	for i, ev := range events {
		if ev.Percent != want[i] {
			t.Errorf("event %d percent = %d, want %d", i, ev.Percent, want[i])
		}
	}
}

func TestVideoProgressCappedAt99(t *testing.T) {
	videos := &fakeVideos{percents: []int{50, 100}}
	sink := &captureSink{}
	u := newTestUploader(&fakeFiles{}, nil, &fakeBot{fileID: "p"}, &fakeAccount{}, &fakeImages{}, videos, sink)

	sf := stageFile(t, t.TempDir(), "clip.mp4", "video/mp4")
	_, failed := u.UploadBatch(context.Background(), []StagedFile{sf}, BatchOptions{SocketID: "s"})
	if len(failed) != 0 {
		t.Fatalf("unexpected failures: %v", failed)
	}

	for _, ev := range sink.byStage(progress.StageCompressingVideo) {
		if ev.Percent > 99 {
			t.Errorf("compressing_video percent = %d, must stay below 100", ev.Percent)
		}
	}
}
