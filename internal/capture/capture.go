// Package capture provides platform-agnostic screen capture producing
// decoded frames for analysis.
package capture

import (
	"bytes"
	"crypto/md5"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"

	"github.com/screenveil/screenveil/internal/frame"
)

// Capturer produces frames with cheap change detection. Implementations
// are driven by a single capture loop and are not goroutine-safe.
type Capturer interface {
	// Capture returns the next frame, or (nil, false) when the screen
	// content has not changed since the previous call.
	Capture() (*frame.Frame, bool)
	// CaptureAlways returns the next frame regardless of change detection.
	CaptureAlways() *frame.Frame
	Close()
}

// backend implements platform-specific raw capture
type backend interface {
	captureRaw() []byte
	cleanup()
}

// baseCapturer provides shared hash-based change detection and decoding
type baseCapturer struct {
	backend
	lastHash [16]byte
	tempDir  string
	seq      uint64
}

func newBase(b backend, tempDir string) *baseCapturer {
	return &baseCapturer{backend: b, tempDir: tempDir}
}

func (c *baseCapturer) Capture() (*frame.Frame, bool) {
	data := c.captureRaw()
	if data == nil {
		return nil, false
	}
	// Hash the leading bytes only; full-image comparison is the
	// scheduler's perceptual hash.
	hash := md5.Sum(data[:min(len(data), 4096)])
	if hash == c.lastHash {
		return nil, false
	}
	c.lastHash = hash

	fr := c.decode(data)
	return fr, fr != nil
}

func (c *baseCapturer) CaptureAlways() *frame.Frame {
	data := c.captureRaw()
	if data == nil {
		return nil
	}
	c.lastHash = md5.Sum(data[:min(len(data), 4096)])
	return c.decode(data)
}

func (c *baseCapturer) decode(data []byte) *frame.Frame {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		slog.Error("screenshot decode failed", "error", err)
		return nil
	}
	c.seq++
	return frame.New(img, c.seq)
}

func (c *baseCapturer) Close() {
	c.cleanup()
	if c.tempDir != "" {
		os.RemoveAll(c.tempDir)
	}
}

// Open returns the capture source named by source: "screen" (or empty)
// for the native capturer, anything else is a directory of images to
// replay.
func Open(source string) (Capturer, error) {
	if source == "" || source == "screen" {
		return New(), nil
	}
	return NewReplay(source)
}
