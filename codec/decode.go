package codec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"

	// Decoders available without external tools.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "github.com/spakin/netpbm"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"pixbatch/logger"
)

var ErrEmptyInput = errors.New("empty image data")

// Decode turns raw upload bytes into an image. Netpbm (pbm/pgm/ppm/pam) is
// read in process; formats Go cannot read (AVIF, HEIC) are routed through
// ImageMagick when it is installed.
func (l *Library) Decode(ctx context.Context, data []byte, filename string) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err == nil {
		logger.Debugf("decoded %s as %s (%dx%d)", filename, format, img.Bounds().Dx(), img.Bounds().Dy())
		return img, nil
	}

	l.mu.RLock()
	magick := l.magickPath
	l.mu.RUnlock()
	if magick == "" || !errors.Is(err, image.ErrFormat) {
		return nil, fmt.Errorf("decode %s: %w", filename, err)
	}

	logger.Debugf("decoding %s through magick: %v", filename, err)
	png, convErr := l.runWithFiles(ctx, data, "input", "output.png", func(in, out string) (string, []string) {
		return magick, []string{in, "png:" + out}
	})
	if convErr != nil {
		return nil, fmt.Errorf("decode %s: %w", filename, convErr)
	}
	img, _, err = image.Decode(bytes.NewReader(png))
	if err != nil {
		return nil, fmt.Errorf("decode %s after magick conversion: %w", filename, err)
	}
	return img, nil
}
