package codec

import (
	"context"
	"fmt"
	"image"
	"image/draw"

	"pixbatch/models"
)

// encodeJPEGMagick encodes through ImageMagick, which applies the preset's
// chroma subsampling and scan mode. jpg is only offered when magick exists.
func (l *Library) encodeJPEGMagick(ctx context.Context, img image.Image, opts models.EncodeOptions) ([]byte, error) {
	o, ok := opts.(models.JPEGOptions)
	if !ok {
		return nil, fmt.Errorf("jpg encoder: unexpected options %T", opts)
	}
	interlace := "None"
	if o.Preset.Progressive {
		interlace = "Plane"
	}
	return l.encodeWithTool(ctx, Smooth(img, o.Preset.Smoothing), "output.jpg", func(in, out string) (string, []string) {
		return "magick", []string{
			in,
			"-quality", fmt.Sprint(o.Quality),
			"-sampling-factor", o.Preset.Sampling,
			"-interlace", interlace,
			"-define", "jpeg:optimize-coding=true",
			fmt.Sprintf("jpg:%s", out),
		}
	})
}

// Smooth blends every pixel with its 3x3 neighbourhood mean. factor is 0-100;
// 0 returns img unchanged.
func Smooth(img image.Image, factor int) image.Image {
	if factor <= 0 {
		return img
	}
	if factor > 100 {
		factor = 100
	}

	b := img.Bounds()
	src := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(src, src.Bounds(), img, b.Min, draw.Src)
	dst := image.NewNRGBA(src.Bounds())

	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum [4]int
			n := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					off := src.PixOffset(nx, ny)
					for c := 0; c < 4; c++ {
						sum[c] += int(src.Pix[off+c])
					}
					n++
				}
			}
			off := src.PixOffset(x, y)
			for c := 0; c < 4; c++ {
				orig := int(src.Pix[off+c])
				mean := sum[c] / n
				dst.Pix[off+c] = uint8((orig*(100-factor) + mean*factor) / 100)
			}
		}
	}
	return dst
}
