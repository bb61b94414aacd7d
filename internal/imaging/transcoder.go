// Package imaging normalises uploaded images before they are stored.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

var ErrUnsupportedImage = errors.New("unsupported image")

// Transcoder turns arbitrary encoded image bytes into the stored form.
type Transcoder interface {
	Transcode(raw []byte) ([]byte, error)
}

// JPEGTranscoder bounds width and re-encodes as JPEG.
type JPEGTranscoder struct {
	MaxWidth int
	Quality  int
}

// NewJPEGTranscoder constructs a JPEGTranscoder.
func NewJPEGTranscoder(maxWidth, quality int) *JPEGTranscoder {
	return &JPEGTranscoder{MaxWidth: maxWidth, Quality: quality}
}

// Transcode decodes raw, scales it down to MaxWidth keeping the aspect ratio
// when it is wider, and encodes the result as JPEG at Quality.
func (t *JPEGTranscoder) Transcode(raw []byte) ([]byte, error) {
	src, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	img := src
	bounds := src.Bounds()
	if t.MaxWidth > 0 && bounds.Dx() > t.MaxWidth {
		height := bounds.Dy() * t.MaxWidth / bounds.Dx()
		if height < 1 {
			height = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, t.MaxWidth, height))
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: t.Quality}); err != nil {
		return nil, fmt.Errorf("encode %s as jpeg: %w", format, err)
	}
	return buf.Bytes(), nil
}
