// Package classify defines the external classifier contracts and the
// embedded heuristic detector used when no remote classifier is available.
package classify

import (
	"context"

	"github.com/screenveil/screenveil/internal/analysis"
	"github.com/screenveil/screenveil/internal/config"
	"github.com/screenveil/screenveil/internal/frame"
)

// FaceResult is the face detector product.
type FaceResult struct {
	Count             int               `json:"count"`
	Boxes             []analysis.Region `json:"boxes,omitempty"`
	GenderConfidences []float64         `json:"gender_confidences,omitempty"`
}

// NSFWResult is the content classifier product.
type NSFWResult struct {
	Positive   bool    `json:"positive"`
	Confidence float64 `json:"confidence"`
}

// FaceDetector locates faces in a frame. Implementations may be slow and
// may fail; callers invoke them through the recovery coordinator.
type FaceDetector interface {
	DetectFaces(ctx context.Context, fr *frame.Frame, st config.Settings) (FaceResult, error)
}

// NSFWDetector scores a frame for flagged content.
type NSFWDetector interface {
	DetectNSFW(ctx context.Context, fr *frame.Frame) (NSFWResult, error)
}
