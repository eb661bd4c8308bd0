// Package imaging decodes uploaded images and converts them into model input tensors.
package imaging

import (
	"bytes"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrEmpty is returned when the upload carries no bytes.
var ErrEmpty = errors.New("empty image payload")

// DecodeError reports that an upload could not be decoded as a raster image.
type DecodeError struct{ Err error }

func (e *DecodeError) Error() string { return "invalid image: " + e.Err.Error() }

func (e *DecodeError) Unwrap() error { return e.Err }

// IsDecodeError reports whether err (or anything it wraps) is a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// Decode parses b as JPEG, PNG, GIF, WebP, BMP or TIFF and returns the image
// together with its format name.
func Decode(b []byte) (image.Image, string, error) {
	if len(b) == 0 {
		return nil, "", &DecodeError{Err: ErrEmpty}
	}
	img, format, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, "", &DecodeError{Err: err}
	}
	if r := img.Bounds(); r.Dx() <= 0 || r.Dy() <= 0 {
		return nil, "", &DecodeError{Err: errors.New("image has no pixels")}
	}
	return img, format, nil
}
