package classify

import (
	"context"
	"image"

	"github.com/screenveil/screenveil/internal/analysis"
	"github.com/screenveil/screenveil/internal/config"
	"github.com/screenveil/screenveil/internal/frame"
)

// Embedded is the in-process heuristic detector. It shares the skin-ratio
// scorer with the grid analyzer, so its output is deterministic for
// identical pixels and needs no model files or network.
type Embedded struct{}

var (
	_ FaceDetector = (*Embedded)(nil)
	_ NSFWDetector = (*Embedded)(nil)
)

func NewEmbedded() *Embedded {
	return &Embedded{}
}

// DetectFaces scans a coarse grid for skin-dominant cells and merges the
// matches into candidate boxes. Gender cannot be inferred heuristically;
// every box reports the uninformative prior.
func (e *Embedded) DetectFaces(ctx context.Context, fr *frame.Frame, st config.Settings) (FaceResult, error) {
	size := FaceGridSize
	if st.UltraFastModeEnabled {
		size = FaceGridSize / 2
	}

	bounds := fr.Image.Bounds()
	var boxes []analysis.Region
	for row := 0; row < size; row++ {
		if err := ctx.Err(); err != nil {
			return FaceResult{}, err
		}
		for col := 0; col < size; col++ {
			cell := gridCell(bounds, size, row, col)
			ratio := analysis.SkinRatio(fr.Image, cell)
			if ratio < FaceCellThreshold {
				continue
			}
			boxes = append(boxes, analysis.Region{
				Left:       cell.Min.X,
				Top:        cell.Min.Y,
				Right:      cell.Max.X,
				Bottom:     cell.Max.Y,
				Confidence: ratio,
			})
		}
	}
	boxes = analysis.MergeOverlapping(boxes)

	res := FaceResult{Count: len(boxes), Boxes: boxes}
	if len(boxes) > 0 {
		res.GenderConfidences = make([]float64, len(boxes))
		for i := range res.GenderConfidences {
			res.GenderConfidences[i] = GenderUnknown
		}
	}
	return res, nil
}

// DetectNSFW blends the whole-frame skin ratio with the center crop,
// weighting the center because flagged content clusters there.
func (e *Embedded) DetectNSFW(ctx context.Context, fr *frame.Frame) (NSFWResult, error) {
	if err := ctx.Err(); err != nil {
		return NSFWResult{}, err
	}

	bounds := fr.Image.Bounds()
	full := analysis.SkinRatio(fr.Image, bounds)

	if err := ctx.Err(); err != nil {
		return NSFWResult{}, err
	}
	center := analysis.SkinRatio(fr.Image, centerRect(bounds))

	conf := NSFWFullWeight*full + NSFWCenterWeight*center
	return NSFWResult{Positive: conf >= NSFWPositiveThreshold, Confidence: conf}, nil
}

// gridCell maps a cell to pixels; the last row and column absorb the
// division remainder.
func gridCell(bounds image.Rectangle, size, row, col int) image.Rectangle {
	cw := bounds.Dx() / size
	ch := bounds.Dy() / size
	x0 := bounds.Min.X + col*cw
	y0 := bounds.Min.Y + row*ch
	x1 := x0 + cw
	y1 := y0 + ch
	if col == size-1 {
		x1 = bounds.Max.X
	}
	if row == size-1 {
		y1 = bounds.Max.Y
	}
	return image.Rect(x0, y0, x1, y1)
}

func centerRect(b image.Rectangle) image.Rectangle {
	return image.Rect(
		b.Min.X+b.Dx()/4,
		b.Min.Y+b.Dy()/4,
		b.Max.X-b.Dx()/4,
		b.Max.Y-b.Dy()/4,
	)
}
