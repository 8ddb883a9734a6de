// Package receipt turns an uploaded receipt image into a Bill.
//
// The pipeline has two stages: a Preprocessor that checks and normalises the
// upload, and an Extractor that reads line items and totals from the image.
// Extractors are pluggable; the default one is a fixed-delay simulation.
package receipt

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
)

const (
	DefaultMaxBytes     = 10 << 20
	DefaultMaxDimension = 2000
)

var (
	ErrNotImage  = errors.New("please upload an image file (JPEG, PNG)")
	ErrEmpty     = errors.New("receipt image is empty")
	ErrTooLarge  = errors.New("receipt image is too large")
	ErrUndecoded = errors.New("receipt image could not be decoded")
)

// Upload is a receipt file as received from the client.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Image is a decoded, normalised receipt ready for extraction.
type Image struct {
	Filename string
	Pixels   image.Image

	// OriginalWidth and OriginalHeight are the dimensions before fitting.
	OriginalWidth  int
	OriginalHeight int
}

// Bounds returns the size of the normalised image.
func (i Image) Bounds() image.Rectangle {
	if i.Pixels == nil {
		return image.Rectangle{}
	}
	return i.Pixels.Bounds()
}

// Preprocessor validates uploads and prepares them for text extraction.
type Preprocessor struct {
	// MaxBytes caps the upload size. Zero means DefaultMaxBytes.
	MaxBytes int64

	// MaxDimension is the bounding box the image is fitted into. Zero means DefaultMaxDimension.
	MaxDimension int
}

// Prepare checks that u is an image, decodes it, and returns a grayscale,
// contrast-enhanced copy no larger than MaxDimension on either side.
func (p Preprocessor) Prepare(u Upload) (Image, error) {
	maxBytes := p.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	maxDim := p.MaxDimension
	if maxDim <= 0 {
		maxDim = DefaultMaxDimension
	}

	if len(u.Data) == 0 {
		return Image{}, ErrEmpty
	}
	if int64(len(u.Data)) > maxBytes {
		return Image{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, len(u.Data), maxBytes)
	}

	contentType := u.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(u.Data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return Image{}, ErrNotImage
	}

	src, err := imaging.Decode(bytes.NewReader(u.Data), imaging.AutoOrientation(true))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrUndecoded, err)
	}

	width, height := src.Bounds().Dx(), src.Bounds().Dy()

	img := imaging.Grayscale(src)
	img = imaging.AdjustContrast(img, 20)
	if width > maxDim || height > maxDim {
		img = imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
	}

	return Image{
		Filename:       u.Filename,
		Pixels:         img,
		OriginalWidth:  width,
		OriginalHeight: height,
	}, nil
}
