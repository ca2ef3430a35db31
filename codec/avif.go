package codec

import (
	"context"
	"fmt"
	"image"

	"pixbatch/models"
)

// encodeAVIF runs avifenc across every core for a single image, which is why
// the avif capability is sequential.
func (l *Library) encodeAVIF(ctx context.Context, img image.Image, opts models.EncodeOptions) ([]byte, error) {
	o, ok := opts.(models.AVIFOptions)
	if !ok {
		return nil, fmt.Errorf("avif encoder: unexpected options %T", opts)
	}
	return l.encodeWithTool(ctx, img, "output.avif", func(in, out string) (string, []string) {
		return "avifenc", []string{
			"-q", fmt.Sprint(o.Quality),
			"--speed", fmt.Sprint(o.Speed),
			"--jobs", "all",
			in, out,
		}
	})
}
