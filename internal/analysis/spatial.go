package analysis

import "gonum.org/v1/gonum/stat"

// SpatialDistribution describes where flagged content sits on screen. The
// four corner quadrants partition the grid (an odd middle row or column
// belongs to none), the center sector covers the middle half of each axis,
// and the edge sector is the one-cell border band. All densities are sector
// means in [0,1].
type SpatialDistribution struct {
	TopLeft     float64
	TopRight    float64
	BottomLeft  float64
	BottomRight float64
	Center      float64
	Edges       float64

	// MaxQuadrant is the highest of the four corner densities.
	MaxQuadrant float64
	// Variance is the population stddev across corners and center. Low
	// variance with meaningful density means content spreads evenly.
	Variance float64
}

type sector struct {
	sum   float64
	count int
}

func (s *sector) add(v float64) {
	s.sum += v
	s.count++
}

func (s *sector) density() float64 {
	if s.count == 0 {
		return 0
	}
	return s.sum / float64(s.count)
}

// inCenter reports whether the midpoint of cell i falls in the middle half
// of the axis. Bounds are inclusive so a 2x2 grid keeps zero variance on
// uniform content.
func inCenter(i, size int) bool {
	mid := (float64(i) + 0.5) / float64(size)
	return mid >= 0.25 && mid <= 0.75
}

// Summarize computes sector densities for a finalized grid.
func Summarize(g *DensityGrid) SpatialDistribution {
	size := g.Size
	if size == 1 {
		v := g.Cells[0]
		return SpatialDistribution{
			TopLeft: v, TopRight: v, BottomLeft: v, BottomRight: v,
			Center: v, Edges: v, MaxQuadrant: v,
		}
	}

	var tl, tr, bl, br, center, edges sector
	topEnd := size / 2
	bottomStart := (size + 1) / 2

	for row := 0; row < size; row++ {
		for col := 0; col < size; col++ {
			v := g.At(row, col)

			switch {
			case row < topEnd && col < topEnd:
				tl.add(v)
			case row < topEnd && col >= bottomStart:
				tr.add(v)
			case row >= bottomStart && col < topEnd:
				bl.add(v)
			case row >= bottomStart && col >= bottomStart:
				br.add(v)
			}
			if inCenter(row, size) && inCenter(col, size) {
				center.add(v)
			}
			if row == 0 || col == 0 || row == size-1 || col == size-1 {
				edges.add(v)
			}
		}
	}

	d := SpatialDistribution{
		TopLeft:     tl.density(),
		TopRight:    tr.density(),
		BottomLeft:  bl.density(),
		BottomRight: br.density(),
		Center:      center.density(),
		Edges:       edges.density(),
	}
	d.MaxQuadrant = max(d.TopLeft, d.TopRight, d.BottomLeft, d.BottomRight)
	d.Variance = stat.PopStdDev([]float64{
		d.TopLeft, d.TopRight, d.BottomLeft, d.BottomRight, d.Center,
	}, nil)
	return d
}
