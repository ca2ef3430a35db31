package codec

import (
	"context"
	"fmt"
	"image"

	"pixbatch/models"
)

func (l *Library) encodeWebP(ctx context.Context, img image.Image, opts models.EncodeOptions) ([]byte, error) {
	o, ok := opts.(models.WebPOptions)
	if !ok {
		return nil, fmt.Errorf("webp encoder: unexpected options %T", opts)
	}
	return l.encodeWithTool(ctx, img, "output.webp", func(in, out string) (string, []string) {
		return "cwebp", []string{
			"-quiet",
			"-q", fmt.Sprint(o.Quality),
			in, "-o", out,
		}
	})
}
