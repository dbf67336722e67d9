package covers

import (
	"bytes"
	"image"
	_ "image/gif" // register decoder
	"image/jpeg"
	_ "image/png" // register decoder
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register decoder
)

var supportedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Decode sniffs and decodes embedded cover bytes. It returns the decoded
// image and the detected mime type.
func Decode(data []byte) (image.Image, string, error) {
	mtype := mimetype.Detect(data).String()
	if !supportedMimeTypes[mtype] {
		return nil, mtype, errors.Errorf("unsupported cover image type %s", mtype)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, mtype, errors.WithStack(err)
	}
	return img, mtype, nil
}

// Writer saves cover images into a directory under generated unique names.
type Writer struct {
	dir      string
	maxWidth int
	quality  int
}

func NewWriter(dir string, maxWidth int) *Writer {
	return &Writer{dir: dir, maxWidth: maxWidth, quality: 85}
}

// Save scales img down to the configured maximum width, keeping the aspect
// ratio, and writes it as a JPEG. It returns the path of the new file.
func (w *Writer) Save(img image.Image) (string, error) {
	if img == nil {
		return "", errors.New("no cover image to save")
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return "", errors.New("cover image is empty")
	}

	out := Scale(img, w.maxWidth)

	path := filepath.Join(w.dir, uuid.New().String()+".jpg")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", errors.WithStack(err)
	}

	err = jpeg.Encode(f, out, &jpeg.Options{Quality: w.quality})
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", errors.WithStack(err)
	}

	return path, nil
}

// Scale returns img resized to maxWidth when it is wider than that. Narrower
// images and a non-positive maxWidth return img unchanged.
func Scale(img image.Image, maxWidth int) image.Image {
	bounds := img.Bounds()
	if maxWidth <= 0 || bounds.Dx() <= maxWidth {
		return img
	}

	ratio := float64(maxWidth) / float64(bounds.Dx())
	height := int(float64(bounds.Dy())*ratio + 0.5)
	if height < 1 {
		height = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
