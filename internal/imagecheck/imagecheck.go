// Package imagecheck validates uploaded image bytes before they are handed to
// the classifier: size limit, sniffed content type, and a decodable header.
package imagecheck

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var (
	ErrEmpty           = errors.New("image is empty")
	ErrTooLarge        = errors.New("image exceeds upload limit")
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrCorrupt         = errors.New("image could not be decoded")
)

// allowedTypes maps sniffed MIME types to the image package format names.
var allowedTypes = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpeg",
	"image/gif":  "gif",
	"image/webp": "webp",
	"image/bmp":  "bmp",
}

// Metadata describes a validated image.
type Metadata struct {
	ContentType string `json:"content_type"`
	Format      string `json:"format"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Size        int64  `json:"size"`
}

// Inspector validates images against a size limit.
type Inspector struct {
	maxBytes int64
}

// NewInspector returns an Inspector that rejects images larger than maxBytes.
func NewInspector(maxBytes int64) *Inspector {
	return &Inspector{maxBytes: maxBytes}
}

// MaxBytes reports the configured upload limit.
func (i *Inspector) MaxBytes() int64 {
	return i.maxBytes
}

// Inspect sniffs the content type from the bytes themselves, ignoring any
// client-declared type, then decodes the header to read the dimensions.
func (i *Inspector) Inspect(data []byte) (Metadata, error) {
	if len(data) == 0 {
		return Metadata{}, ErrEmpty
	}
	if i.maxBytes > 0 && int64(len(data)) > i.maxBytes {
		return Metadata{}, fmt.Errorf("%w: %d bytes, limit %d", ErrTooLarge, len(data), i.maxBytes)
	}

	mtype := mimetype.Detect(data)
	format, ok := allowedTypes[mtype.String()]
	if !ok {
		return Metadata{}, fmt.Errorf("%w: %s", ErrUnsupportedType, mtype.String())
	}

	cfg, decoded, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if decoded != format {
		return Metadata{}, fmt.Errorf("%w: sniffed %s but decoded %s", ErrCorrupt, format, decoded)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Metadata{}, fmt.Errorf("%w: zero dimensions", ErrCorrupt)
	}

	return Metadata{
		ContentType: mtype.String(),
		Format:      format,
		Width:       cfg.Width,
		Height:      cfg.Height,
		Size:        int64(len(data)),
	}, nil
}
