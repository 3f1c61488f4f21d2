package media

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Videos implements the video half of the transform pipeline.
type Videos struct{}

// Compress re-encodes a video with the fixed compatibility profile: H.264
// CRF 23 bounded to 1080p width (never upscaled), stereo AAC, yuv420p and
// faststart layout so phones can start playback immediately.
//
// onProgress receives whole percentages capped at 99: the transcode never
// reports completion because the cloud upload stage still follows.
func (Videos) Compress(ctx context.Context, src, dst string, onProgress func(percent int)) error {
	stream := ffmpeg.Input(src).
		Output(dst, ffmpeg.KwArgs{
			"c:v":       "libx264",
			"crf":       "23",
			"preset":    "fast",
			"vf":        "scale='min(1920,iw)':-2",
			"c:a":       "aac",
			"b:a":       "192k",
			"ac":        "2",
			"movflags":  "+faststart",
			"pix_fmt":   "yuv420p",
			"profile:v": "main",
			"level":     "4.0",
		}).
		OverWriteOutput()

	if onProgress != nil {
		if sock, cleanup, err := progressSocket(durationSeconds(src), onProgress); err == nil {
			defer cleanup()
			stream = stream.GlobalArgs("-progress", "unix://"+sock)
		}
	}

	if err := stream.Run(); err != nil {
		return fmt.Errorf("ffmpeg compress: %w", err)
	}
	return nil
}

// Thumbnail extracts a single frame one second into the timeline, scaled to
// 320px wide.
func (Videos) Thumbnail(src, dst string) error {
	err := ffmpeg.Input(src, ffmpeg.KwArgs{"ss": "1"}).
		Output(dst, ffmpeg.KwArgs{"vframes": "1", "vf": "scale=320:-1"}).
		OverWriteOutput().
		Run()
	if err != nil {
		return fmt.Errorf("ffmpeg thumbnail: %w", err)
	}
	return nil
}

// durationSeconds probes the container for its total duration. Zero means
// unknown, which disables progress reporting for that file.
func durationSeconds(path string) float64 {
	data, err := ffmpeg.Probe(path)
	if err != nil {
		return 0
	}
	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal([]byte(data), &probe); err != nil {
		return 0
	}
	d, _ := strconv.ParseFloat(probe.Format.Duration, 64)
	return d
}

// progressSocket listens on a unix socket for ffmpeg's -progress key=value
// feed and converts out_time_ms into whole percentages.
func progressSocket(totalSeconds float64, fn func(percent int)) (string, func(), error) {
	dir, err := os.MkdirTemp("", "ffprogress")
	if err != nil {
		return "", nil, err
	}
	sock := filepath.Join(dir, "progress.sock")
	l, err := net.Listen("unix", sock)
	if err != nil {
		os.RemoveAll(dir)
		return "", nil, err
	}

	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		buf := make([]byte, 4096)
		pending := ""
		last := -1
		for {
			n, err := conn.Read(buf)
			if err != nil {
				return
			}
			pending += string(buf[:n])
			for {
				idx := strings.Index(pending, "\n")
				if idx < 0 {
					break
				}
				line := pending[:idx]
				pending = pending[idx+1:]
				if totalSeconds <= 0 || !strings.HasPrefix(line, "out_time_ms=") {
					continue
				}
				us, err := strconv.ParseFloat(strings.TrimPrefix(line, "out_time_ms="), 64)
				if err != nil {
					continue
				}
				p := int(us / (totalSeconds * 1e6) * 100)
				if p > 99 {
					p = 99
				}
				if p != last {
					last = p
					fn(p)
				}
			}
		}
	}()

	cleanup := func() {
		l.Close()
		os.RemoveAll(dir)
	}
	return sock, cleanup, nil
}
