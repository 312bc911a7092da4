package classifier

import (
	"context"
	"fmt"
	"image"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"

	// Register standard decoders.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	// Register the extra formats cameras commonly produce.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultConfidenceThreshold is the minimum confidence, in percent, for a cat verdict.
const DefaultConfidenceThreshold float32 = 50

// Classifier decides whether an image contains a cat.
type Classifier interface {
	ImageContainsCat(ctx context.Context, img image.Image, confidenceThreshold float32) (bool, error)
}

// Func adapts a plain function to the Classifier interface.
type Func func(ctx context.Context, img image.Image, confidenceThreshold float32) (bool, error)

// ImageContainsCat implements Classifier.
func (f Func) ImageContainsCat(ctx context.Context, img image.Image, confidenceThreshold float32) (bool, error) {
	return f(ctx, img, confidenceThreshold)
}

// Fake pretends to look at the image and reports a cat at random.
type Fake struct {
	// rnd returns a confidence in [0, 100).
	rnd func() float32
}

// NewFake creates a Fake classifier backed by the global random source.
func NewFake() *Fake {
	return &Fake{
		rnd: func() float32 { return rand.Float32() * 100 }, //nolint:gosec // Not security relevant.
	}
}

// ImageContainsCat implements Classifier.
func (f *Fake) ImageContainsCat(_ context.Context, _ image.Image, confidenceThreshold float32) (bool, error) {
	return f.rnd() >= confidenceThreshold, nil
}

// Decode reads an image in any registered format.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}

	return img, format, nil
}

// DecodeFile reads an image from disk.
func DecodeFile(path string) (image.Image, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}

	defer func() {
		_ = f.Close()
	}()

	img, _, err := Decode(f)

	return img, err
}
