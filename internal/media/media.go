// Package media validates uploaded images and derives their previews.
package media

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"

	"lookbook/internal/domain"
)

// DefaultPreviewSize bounds the longest preview edge in pixels.
const DefaultPreviewSize = 512

// File is one accepted upload before it becomes an item.
type File struct {
	Name string
	Data []byte
}

// DetectImage sniffs the content type of data and rejects anything that is
// not an image. The declared extension is ignored.
func DetectImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty file", domain.ErrUnsupportedMedia)
	}
	mt := mimetype.Detect(data)
	mime := mt.String()
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedMedia, mime)
	}
	return mime, nil
}

// Preview renders a JPEG thumbnail no larger than maxPx on either edge. When
// the format cannot be decoded locally the original bytes are returned so the
// item is still displayable.
func Preview(data []byte, mime string, maxPx int) ([]byte, string) {
	if maxPx <= 0 {
		maxPx = DefaultPreviewSize
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return data, mime
	}
	bounds := img.Bounds()
	if bounds.Dx() > maxPx || bounds.Dy() > maxPx {
		img = imaging.Fit(img, maxPx, maxPx, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return data, mime
	}
	return buf.Bytes(), "image/jpeg"
}

// Prepare validates a file and builds the immutable source record for it.
func Prepare(f File, maxPx int) (domain.SourceImage, error) {
	mime, err := DetectImage(f.Data)
	if err != nil {
		return domain.SourceImage{}, fmt.Errorf("%s: %w", f.Name, err)
	}
	preview, previewMIME := Preview(f.Data, mime, maxPx)
	return domain.SourceImage{
		Name:        f.Name,
		MIME:        mime,
		Data:        f.Data,
		Preview:     preview,
		PreviewMIME: previewMIME,
	}, nil
}
