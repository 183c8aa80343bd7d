package imagecheck

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 200, G: 10, B: 10, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func TestInspectAcceptsSupportedFormats(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))

	var jpg, gf bytes.Buffer
	if err := jpeg.Encode(&jpg, img, nil); err != nil {
		t.Fatalf("failed to encode jpeg: %v", err)
	}
	if err := gif.Encode(&gf, img, nil); err != nil {
		t.Fatalf("failed to encode gif: %v", err)
	}

	cases := map[string]struct {
		data        []byte
		contentType string
	}{
		"png":  {data: encodePNG(t, 4, 3), contentType: "image/png"},
		"jpeg": {data: jpg.Bytes(), contentType: "image/jpeg"},
		"gif":  {data: gf.Bytes(), contentType: "image/gif"},
	}

	inspector := NewInspector(1 << 20)
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			meta, err := inspector.Inspect(tc.data)
			if err != nil {
				t.Fatalf("expected success, got error: %v", err)
			}
			if meta.ContentType != tc.contentType {
				t.Fatalf("expected %s, got %s", tc.contentType, meta.ContentType)
			}
			if meta.Width != 4 || meta.Height != 3 {
				t.Fatalf("unexpected dimensions %dx%d", meta.Width, meta.Height)
			}
			if meta.Size != int64(len(tc.data)) {
				t.Fatalf("unexpected size %d", meta.Size)
			}
		})
	}
}

func TestInspectRejectsEmpty(t *testing.T) {
	_, err := NewInspector(1 << 20).Inspect(nil)
	if !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestInspectRejectsOversizedImage(t *testing.T) {
	data := encodePNG(t, 64, 64)
	_, err := NewInspector(int64(len(data) - 1)).Inspect(data)
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestInspectRejectsNonImage(t *testing.T) {
	_, err := NewInspector(1 << 20).Inspect([]byte("hello, this is plain text"))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
}

func TestInspectRejectsTruncatedImage(t *testing.T) {
	data := encodePNG(t, 8, 8)
	_, err := NewInspector(1 << 20).Inspect(data[:12])
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}
