package job

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/dustin/go-humanize"

	"pixbatch/codec"
	"pixbatch/logger"
	"pixbatch/models"
)

// Codec is the decode/encode surface a job needs. *codec.Library implements it.
type Codec interface {
	Decode(ctx context.Context, data []byte, filename string) (image.Image, error)
	Encode(ctx context.Context, img image.Image, opts models.EncodeOptions) ([]byte, error)
	Capability(format models.Format) codec.Capability
}

// itemProcessor converts single items for one job.
type itemProcessor struct {
	codec    Codec
	settings models.Settings
	// report is called once per converted item with its output name.
	report func(label string)
}

// process decodes, resizes and encodes item. It never returns partial output.
func (p *itemProcessor) process(ctx context.Context, item models.Item) (models.Result, error) {
	start := time.Now()

	img, err := p.codec.Decode(ctx, item.Data, item.Filename)
	if err != nil {
		return models.Result{}, itemError(KindDecode, item, err)
	}

	if res := p.settings.Resolution; res != nil {
		img = codec.Resize(img, *res, p.settings.KeepAspectRatio)
	}

	data, err := p.codec.Encode(ctx, img, p.settings.Options)
	if err != nil {
		if errors.Is(err, models.ErrUnsupportedFormat) {
			return models.Result{}, itemError(KindUnsupported, item, err)
		}
		return models.Result{}, itemError(KindEncode, item, err)
	}

	name := codec.OutputFilename(item.Filename, p.settings.Format)
	logger.Debugf("converted %s -> %s in %s (%s -> %s)", item.Filename, name,
		time.Since(start).Round(time.Millisecond), humanize.Bytes(uint64(item.Size())), humanize.Bytes(uint64(len(data))))

	if p.report != nil {
		p.report(name)
	}
	return models.Result{Index: item.Index, Filename: name, Data: data}, nil
}
