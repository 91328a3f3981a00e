package screen

import (
	"bytes"
	"image"
	"testing"
)

func TestDownscaleDimensions(t *testing.T) {
	for _, tt := range []struct {
		w, h, factor int
		wantW, wantH int
	}{
		{300, 150, 3, 100, 50},
		{301, 152, 3, 100, 50},
		{300, 150, 1, 300, 150},
		{2, 2, 3, 1, 1},
	} {
		got := Downscale(FakeFrame(tt.w, tt.h), tt.factor)
		b := got.Bounds()
		if b.Dx() != tt.wantW || b.Dy() != tt.wantH {
			t.Errorf("Downscale(%dx%d, %d) = %dx%d, want %dx%d",
				tt.w, tt.h, tt.factor, b.Dx(), b.Dy(), tt.wantW, tt.wantH)
		}
	}
}

func TestCompressProducesJPEG(t *testing.T) {
	data, err := Compress(FakeFrame(90, 60), DefaultDownscale, DefaultJPEGQuality)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if !bytes.HasPrefix(data, []byte{0xFF, 0xD8}) {
		t.Error("output missing JPEG SOI marker")
	}
	cfg, err := jpegConfig(data)
	if err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if cfg.Width != 30 || cfg.Height != 20 {
		t.Errorf("compressed frame is %dx%d, want 30x20", cfg.Width, cfg.Height)
	}
}

func jpegConfig(data []byte) (image.Config, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	return cfg, err
}

func TestFakeSourceNotReady(t *testing.T) {
	src := NewFakeSource()
	if err := src.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := src.Capture(); err != ErrNotReady {
		t.Errorf("got %v, want ErrNotReady", err)
	}
	src.SetFrame(FakeFrame(10, 10))
	if _, err := src.Capture(); err != nil {
		t.Errorf("Capture after SetFrame: %v", err)
	}
}
