package frame

import (
	"image"
	"image/color"
	"testing"
)

// stripes draws alternating bands so perceptual hashes have structure.
func stripes(w, h, period int, horizontal bool) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			n := x
			if horizontal {
				n = y
			}
			c := color.RGBA{A: 255}
			if (n/period)%2 == 0 {
				c = color.RGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	return img
}

func TestNew(t *testing.T) {
	fr := New(stripes(64, 48, 4, false), 7)

	if fr.ID == "" {
		t.Error("frame should get an ID")
	}
	if fr.Seq != 7 {
		t.Errorf("Seq = %d, want 7", fr.Seq)
	}
	if fr.Width != 64 || fr.Height != 48 {
		t.Errorf("dims = %dx%d, want 64x48", fr.Width, fr.Height)
	}
	if fr.CapturedAt.IsZero() {
		t.Error("CapturedAt should be set")
	}
}

func TestDownscale(t *testing.T) {
	fr := New(stripes(64, 64, 4, false), 0)

	half := fr.Downscale(0.5)
	if half.Width != 32 {
		t.Errorf("Width after 0.5 downscale = %d, want 32", half.Width)
	}
	if half.ID != fr.ID || half.Seq != fr.Seq {
		t.Error("downscaled frame should keep identity")
	}

	if same := fr.Downscale(1.0); same != fr {
		t.Error("ratio 1.0 should return the frame unchanged")
	}
	if same := fr.Downscale(0); same != fr {
		t.Error("ratio 0 should return the frame unchanged")
	}
}

func TestFingerprintIdentical(t *testing.T) {
	a := New(stripes(64, 64, 8, false), 0)
	b := New(stripes(64, 64, 8, false), 1)

	fa, err := a.ComputeFingerprint()
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	fb, err := b.ComputeFingerprint()
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}

	d, err := fa.Distance(fb)
	if err != nil {
		t.Fatalf("distance: %v", err)
	}
	if d != 0 {
		t.Errorf("distance between identical content = %d, want 0", d)
	}
}

func TestFingerprintDiffers(t *testing.T) {
	vert := New(stripes(64, 64, 4, false), 0)
	horiz := New(stripes(64, 64, 4, true), 1)

	fv, err := vert.ComputeFingerprint()
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	fh, err := horiz.ComputeFingerprint()
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}

	d, err := fv.Distance(fh)
	if err != nil {
		t.Fatalf("distance: %v", err)
	}
	if d == 0 {
		t.Error("orthogonal stripe patterns should not collide")
	}
}

func TestFingerprintKey(t *testing.T) {
	fr := New(stripes(64, 64, 4, false), 0)
	fp, err := fr.ComputeFingerprint()
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}

	if len(fp.Key()) != 16 {
		t.Errorf("Key length = %d, want 16", len(fp.Key()))
	}

	var zero Fingerprint
	if !zero.IsZero() {
		t.Error("zero fingerprint should report IsZero")
	}
	if zero.Key() != "" {
		t.Error("zero fingerprint Key should be empty")
	}
	if _, err := zero.Distance(fp); err == nil {
		t.Error("distance from zero fingerprint should error")
	}
}
