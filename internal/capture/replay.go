package capture

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// replayBackend cycles through a directory of still images, for tests and
// benches and for running the pipeline without screen access.
type replayBackend struct {
	files []string
	idx   int
}

func (r *replayBackend) captureRaw() []byte {
	path := r.files[r.idx%len(r.files)]
	r.idx++
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Error("replay read failed", "path", path, "error", err)
		return nil
	}
	return data
}

func (r *replayBackend) cleanup() {}

// NewReplay creates a capturer that replays the images in dir in name
// order, wrapping around at the end.
func NewReplay(dir string) (Capturer, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("replay dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("replay dir %s has no images", dir)
	}

	slog.Info("replay source ready", "dir", dir, "images", len(files))
	return newBase(&replayBackend{files: files}, ""), nil
}
