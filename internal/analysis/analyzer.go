package analysis

import (
	"fmt"
	"image"
	"time"

	"github.com/screenveil/screenveil/internal/cache"
	"github.com/screenveil/screenveil/internal/config"
	"github.com/screenveil/screenveil/internal/frame"
)

// Cached is one analysis product held in the cache. Hits return the shared
// grid and region slice; callers treat both as read-only.
type Cached struct {
	Grid    *DensityGrid
	Regions []Region
}

// rough per-entry footprint for the byte budget
func (c Cached) size() int64 {
	return int64(len(c.Grid.Cells)*8 + len(c.Regions)*48 + 96)
}

// Analyzer scores frames into density grids and flagged regions. Results are
// cached by content fingerprint so identical frames skip the pixel pass.
type Analyzer struct {
	store *cache.Store[Cached]
	ttl   time.Duration
}

func NewAnalyzer(store *cache.Store[Cached], ttl time.Duration) *Analyzer {
	return &Analyzer{store: store, ttl: ttl}
}

// Analyze divides the frame into gridSize x gridSize cells and scores each
// with stride sampling. Cells scoring at or above the settings confidence
// threshold become regions, merged where they touch. Deterministic for
// identical pixels and gridSize. fp may be zero; fingerprinting is then
// retried here and on failure the frame is scored uncached.
func (a *Analyzer) Analyze(fr *frame.Frame, fp frame.Fingerprint, gridSize int, st config.Settings) (*DensityGrid, []Region) {
	if gridSize < 1 {
		gridSize = 1
	}
	if fp.IsZero() {
		fp, _ = fr.ComputeFingerprint()
	}

	key := ""
	if !fp.IsZero() {
		key = fmt.Sprintf("%dx%d:g%d:%s", fr.Width, fr.Height, gridSize, fp.Key())
		if hit, ok := a.store.Get(key); ok {
			return hit.Grid, hit.Regions
		}
	}

	grid := NewDensityGrid(gridSize)
	bounds := fr.Image.Bounds()
	cellW := bounds.Dx() / gridSize
	cellH := bounds.Dy() / gridSize

	for row := 0; row < gridSize; row++ {
		for col := 0; col < gridSize; col++ {
			grid.Set(row, col, SkinRatio(fr.Image, cellBounds(bounds, gridSize, cellW, cellH, row, col)))
		}
	}
	grid.Finalize()

	var regions []Region
	for row := 0; row < gridSize; row++ {
		for col := 0; col < gridSize; col++ {
			score := grid.At(row, col)
			if score < st.HighConfidenceThreshold {
				continue
			}
			cb := cellBounds(bounds, gridSize, cellW, cellH, row, col)
			regions = append(regions, Region{
				Left:       cb.Min.X,
				Top:        cb.Min.Y,
				Right:      cb.Max.X,
				Bottom:     cb.Max.Y,
				Confidence: score,
			})
		}
	}
	regions = MergeOverlapping(regions)

	if key != "" {
		out := Cached{Grid: grid, Regions: regions}
		a.store.Put(key, out, a.ttl, out.size())
	}
	return grid, regions
}

// cellBounds maps a grid cell to its pixel rectangle. The last row and
// column absorb the division remainder so every pixel belongs to a cell.
func cellBounds(bounds image.Rectangle, gridSize, cellW, cellH, row, col int) image.Rectangle {
	x0 := bounds.Min.X + col*cellW
	y0 := bounds.Min.Y + row*cellH
	x1 := x0 + cellW
	y1 := y0 + cellH
	if col == gridSize-1 {
		x1 = bounds.Max.X
	}
	if row == gridSize-1 {
		y1 = bounds.Max.Y
	}
	return image.Rect(x0, y0, x1, y1)
}

// SkinRatio samples the rectangle at a fixed stride and returns the
// fraction of sampled pixels that match the skin-tone gate. Rectangles
// below the minimum pixel dimension score 0. This is the shared scoring
// primitive for grid cells and the embedded classifier.
func SkinRatio(img image.Image, cell image.Rectangle) float64 {
	if cell.Dx() < MinCellPixels || cell.Dy() < MinCellPixels {
		return 0
	}

	sampled, matched := 0, 0
	for y := cell.Min.Y + SampleStride/2; y < cell.Max.Y; y += SampleStride {
		for x := cell.Min.X + SampleStride/2; x < cell.Max.X; x += SampleStride {
			r, g, b, _ := img.At(x, y).RGBA()
			if isSkinTone(uint8(r>>8), uint8(g>>8), uint8(b>>8)) {
				matched++
			}
			sampled++
		}
	}
	if sampled == 0 {
		return 0
	}
	return float64(matched) / float64(sampled)
}

// isSkinTone is the classic RGB gate on 8-bit channels: red dominates both
// other channels by a clear margin at daylight-plausible levels.
func isSkinTone(r, g, b uint8) bool {
	ri, gi, bi := int(r), int(g), int(b)
	return ri > 95 && gi > 40 && bi > 20 &&
		ri > bi && ri-gi > 15 &&
		ri-min(gi, bi) > 15
}
