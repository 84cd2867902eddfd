//go:build windows

package capture

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
)

type windowsBackend struct{ tempDir string }

func (w *windowsBackend) captureRaw() []byte {
	tmpFile := filepath.Join(w.tempDir, "screenshot.png")
	script := fmt.Sprintf(
		`Add-Type -AssemblyName System.Windows.Forms,System.Drawing; `+
			`$b = [System.Windows.Forms.SystemInformation]::VirtualScreen; `+
			`$bmp = New-Object System.Drawing.Bitmap $b.Width, $b.Height; `+
			`$g = [System.Drawing.Graphics]::FromImage($bmp); `+
			`$g.CopyFromScreen($b.Left, $b.Top, 0, 0, $bmp.Size); `+
			`$bmp.Save('%s', [System.Drawing.Imaging.ImageFormat]::Png)`,
		tmpFile)

	cmd := exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		slog.Error("powershell capture failed", "error", err, "stderr", stderr.String())
		return nil
	}
	data, err := os.ReadFile(tmpFile)
	if err != nil {
		slog.Error("failed to read screenshot", "error", err)
		return nil
	}
	os.Remove(tmpFile)
	return data
}

func (w *windowsBackend) cleanup() {}

// New creates a platform-specific screen capturer
func New() Capturer {
	tmpDir, err := os.MkdirTemp("", "screenveil-capture-*")
	if err != nil {
		slog.Error("failed to create temp dir", "error", err)
		tmpDir = os.TempDir()
	}
	return newBase(&windowsBackend{tempDir: tmpDir}, tmpDir)
}
