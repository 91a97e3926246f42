package texture

import (
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/cockroachdb/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// RawImage is decoded RGBA8 pixel data waiting to be uploaded.
type RawImage struct {
	Width, Height int
	// Channels is 1 for gray sources, 3 for sources without transparency and 4
	// otherwise. Pixels always hold 4.
	Channels int
	Pixels   []byte
}

// Release drops the host copy of the pixels.
func (r *RawImage) Release() {
	if r == nil {
		return
	}
	r.Pixels = nil
}

type Decoder interface {
	Decode(path string) (*RawImage, error)
}

type DecoderFunc func(path string) (*RawImage, error)

func (f DecoderFunc) Decode(path string) (*RawImage, error) {
	return f(path)
}

// FileDecoder reads any image format registered with the image package: PNG,
// JPEG, GIF, BMP, TIFF and WebP.
type FileDecoder struct{}

func (FileDecoder) Decode(path string) (*RawImage, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}

	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, errors.Newf("%s image %s has no pixels", format, path)
	}

	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)

	return &RawImage{
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Channels: channels(img),
		Pixels:   rgba.Pix,
	}, nil
}

// channels reports 1 for gray images, 3 for images with no transparent pixel
// and 4 otherwise.
func channels(img image.Image) int {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return 1
	}

	if opaque, ok := img.(interface{ Opaque() bool }); ok && opaque.Opaque() {
		return 3
	}
	return 4
}
