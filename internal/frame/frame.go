// Package frame defines the image unit flowing through the pipeline, with
// perceptual fingerprinting for duplicate detection and cache keys.
package frame

import (
	"fmt"
	"image"
	"time"

	"github.com/corona10/goimagehash"
	"github.com/google/uuid"
	"github.com/nfnt/resize"
)

// Frame is one captured screen image. Frames are analyzed then released;
// nothing retains them past the decision.
type Frame struct {
	ID         string
	Seq        uint64
	Image      image.Image
	Width      int
	Height     int
	CapturedAt time.Time
}

// New wraps an image into a frame with a fresh ID.
func New(img image.Image, seq uint64) *Frame {
	b := img.Bounds()
	return &Frame{
		ID:         uuid.NewString(),
		Seq:        seq,
		Image:      img,
		Width:      b.Dx(),
		Height:     b.Dy(),
		CapturedAt: time.Now(),
	}
}

// Downscale returns the frame scaled by ratio in (0,1) using nearest-neighbor
// resampling; other ratios return the frame unchanged. The scaled frame keeps
// the original identity and timestamps.
func (f *Frame) Downscale(ratio float64) *Frame {
	if ratio <= 0 || ratio >= 1 || f.Width == 0 {
		return f
	}

	w := uint(float64(f.Width) * ratio)
	if w == 0 {
		w = 1
	}
	scaled := resize.Resize(w, 0, f.Image, resize.NearestNeighbor)
	b := scaled.Bounds()
	return &Frame{
		ID:         f.ID,
		Seq:        f.Seq,
		Image:      scaled,
		Width:      b.Dx(),
		Height:     b.Dy(),
		CapturedAt: f.CapturedAt,
	}
}

// Fingerprint is a perceptual hash of frame content. Close fingerprints mean
// visually similar frames.
type Fingerprint struct {
	hash *goimagehash.ImageHash
}

// ComputeFingerprint returns the frame's perceptual hash.
func (f *Frame) ComputeFingerprint() (Fingerprint, error) {
	h, err := goimagehash.PerceptionHash(f.Image)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("perception hash: %w", err)
	}
	return Fingerprint{hash: h}, nil
}

// IsZero reports whether the fingerprint has been computed.
func (fp Fingerprint) IsZero() bool { return fp.hash == nil }

// Distance returns the Hamming distance to other.
func (fp Fingerprint) Distance(other Fingerprint) (int, error) {
	if fp.hash == nil || other.hash == nil {
		return 0, fmt.Errorf("empty fingerprint")
	}
	return fp.hash.Distance(other.hash)
}

// Key returns the hash bits as a hex string for cache keys.
func (fp Fingerprint) Key() string {
	if fp.hash == nil {
		return ""
	}
	return fmt.Sprintf("%016x", fp.hash.GetHash())
}
