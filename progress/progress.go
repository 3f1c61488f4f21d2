// Package progress carries upload progress events from the pipeline to
// whoever is watching. Pushes are fire-and-forget: the pipeline never waits
// on, or fails because of, a consumer.
package progress

// Stages emitted by the upload pipeline, in the order they occur.
const (
	StageProcessing       = "processing"
	StageOptimizingImage  = "optimizing_image"
	StageCompressingVideo = "compressing_video"
	StageCloudUpload      = "cloud_upload"
)

// Event is one push to a caller-supplied logical channel.
type Event struct {
	Stage       string `json:"stage"`
	Percent     int    `json:"percent"`
	CurrentFile int    `json:"currentFile,omitempty"`
	TotalFiles  int    `json:"totalFiles,omitempty"`
}

// Sink receives progress pushes. Implementations must not block.
type Sink interface {
	Emit(channelID string, ev Event)
}

// Nop discards all events.
type Nop struct{}

// Emit implements Sink.
func (Nop) Emit(string, Event) {}
