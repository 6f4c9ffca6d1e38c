package testsupport

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	mustWrite(t, path, bytes.Repeat([]byte{0x42}, int(size)))
}

// JPEGBytes returns a small valid baseline JPEG.
func JPEGBytes(t testing.TB) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, sampleImage(), &jpeg.Options{Quality: 80}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// PNGBytes returns a small valid PNG.
func PNGBytes(t testing.TB) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := png.Encode(&buf, sampleImage()); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// WriteJPEG writes a small JPEG to path and returns its bytes.
func WriteJPEG(t testing.TB, path string) []byte {
	t.Helper()

	data := JPEGBytes(t)
	mustWrite(t, path, data)
	return data
}

// WritePNG writes a small PNG to path and returns its bytes.
func WritePNG(t testing.TB, path string) []byte {
	t.Helper()

	data := PNGBytes(t)
	mustWrite(t, path, data)
	return data
}

func sampleImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 16), B: 128, A: 255})
		}
	}
	return img
}

func mustWrite(t testing.TB, path string, data []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
