package analysis

// DensityGrid holds per-cell confidence scores for one analyzed frame,
// row-major, plus aggregates derived by Finalize. Cell values stay in [0,1].
type DensityGrid struct {
	Size  int
	Cells []float64

	HighCells   int
	MediumCells int
	LowCells    int
	Average     float64
	Min         float64
	Max         float64
}

// NewDensityGrid allocates a size x size grid; sizes below 1 become 1.
func NewDensityGrid(size int) *DensityGrid {
	if size < 1 {
		size = 1
	}
	return &DensityGrid{
		Size:  size,
		Cells: make([]float64, size*size),
	}
}

// At returns the cell score at row, col.
func (g *DensityGrid) At(row, col int) float64 {
	return g.Cells[row*g.Size+col]
}

// Set stores a cell score clamped to [0,1].
func (g *DensityGrid) Set(row, col int, v float64) {
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	g.Cells[row*g.Size+col] = v
}

// Finalize computes the aggregate counts and statistics. Low counts cells
// scored above zero but below the medium threshold; zero cells are untracked.
func (g *DensityGrid) Finalize() {
	g.HighCells, g.MediumCells, g.LowCells = 0, 0, 0

	sum := 0.0
	min, max := 1.0, 0.0
	for _, v := range g.Cells {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		switch {
		case v >= HighCellScore:
			g.HighCells++
		case v >= MediumCellScore:
			g.MediumCells++
		case v > 0:
			g.LowCells++
		}
	}

	g.Average = sum / float64(len(g.Cells))
	g.Min = min
	g.Max = max
}

// Consistency reports how evenly scores spread across cells: 1 means every
// cell scored the same, 0 means full spread.
func (g *DensityGrid) Consistency() float64 {
	return 1 - (g.Max - g.Min)
}
