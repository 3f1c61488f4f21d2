// Package media holds the stateless transforms of the upload pipeline:
// HEIC decoding, image normalization and thumbnailing, and video
// compression. Every function reads one file and writes another; no state
// is kept between calls.
package media

import (
	"fmt"
	"os"

	"github.com/adrium/goheif"
	"github.com/disintegration/imaging"
)

const (
	optimizeQuality  = 90
	thumbnailQuality = 80
	thumbnailSide    = 320
)

// Images implements the image half of the transform pipeline.
type Images struct{}

// DecodeHEIC converts a HEIC container to a full-quality JPEG on disk. The
// result then goes through the standard image path.
func (Images) DecodeHEIC(src, dst string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open heic: %w", err)
	}
	defer f.Close()

	img, err := goheif.Decode(f)
	if err != nil {
		return fmt.Errorf("decode heic: %w", err)
	}
	if err := imaging.Save(img, dst, imaging.JPEGQuality(100)); err != nil {
		return fmt.Errorf("write intermediate jpeg: %w", err)
	}
	return nil
}

// Optimize re-encodes an image as a normalized JPEG, applying the EXIF
// orientation so phone photos come out upright.
func (Images) Optimize(src, dst string) error {
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	if err := imaging.Save(img, dst, imaging.JPEGQuality(optimizeQuality)); err != nil {
		return fmt.Errorf("encode jpeg: %w", err)
	}
	return nil
}

// Thumbnail writes the square center-cropped grid thumbnail.
func (Images) Thumbnail(src, dst string) error {
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	thumb := imaging.Fill(img, thumbnailSide, thumbnailSide, imaging.Center, imaging.Lanczos)
	if err := imaging.Save(thumb, dst, imaging.JPEGQuality(thumbnailQuality)); err != nil {
		return fmt.Errorf("encode thumbnail: %w", err)
	}
	return nil
}
