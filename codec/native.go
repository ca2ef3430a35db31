package codec

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/bmp"

	"pixbatch/models"
)

var pngLevels = map[models.PNGLevel]png.CompressionLevel{
	models.PNGFast:    png.BestSpeed,
	models.PNGDefault: png.DefaultCompression,
	models.PNGBest:    png.BestCompression,
}

func encodePNG(_ context.Context, img image.Image, opts models.EncodeOptions) ([]byte, error) {
	o, ok := opts.(models.PNGOptions)
	if !ok {
		return nil, fmt.Errorf("png encoder: unexpected options %T", opts)
	}
	level, ok := pngLevels[o.Level]
	if !ok {
		level = png.DefaultCompression
	}

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: level}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeBMP(_ context.Context, img image.Image, _ models.EncodeOptions) ([]byte, error) {
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
