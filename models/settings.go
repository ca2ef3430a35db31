package models

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrInvalidSettings   = errors.New("invalid settings")
)

const (
	DefaultQuality    = 80
	defaultPNGLevel   = 2
	defaultJPEGPreset = 2
	defaultAVIFSpeed  = 8
	minCompression    = 1
	maxCompression    = 3
	maxQuality        = 100
	minQuality        = 0
	maxResolutionSide = 16384
)

// EncodeOptions is the per-format set of tunables resolved from Settings.
// Each target format has exactly one implementation.
type EncodeOptions interface {
	Target() Format
}

// PNGLevel selects the deflate effort.
type PNGLevel int

const (
	PNGFast PNGLevel = iota + 1
	PNGDefault
	PNGBest
)

type PNGOptions struct {
	Level PNGLevel
}

func (PNGOptions) Target() Format { return FormatPNG }

// JPEGPreset bundles the chroma subsampling and smoothing choices of one
// compression tier.
type JPEGPreset struct {
	Sampling    string // "4:2:0", "4:2:2" or "4:4:4"
	Smoothing   int    // 0-100 low-pass strength
	Progressive bool
}

// JPEG tiers: 1 trades fidelity for size, 3 keeps full chroma and a baseline scan.
var jpegPresets = map[int]JPEGPreset{
	1: {Sampling: "4:2:0", Smoothing: 3, Progressive: true},
	2: {Sampling: "4:2:2", Smoothing: 1, Progressive: true},
	3: {Sampling: "4:4:4", Smoothing: 0, Progressive: false},
}

type JPEGOptions struct {
	Quality int
	Preset  JPEGPreset
}

func (JPEGOptions) Target() Format { return FormatJPEG }

type WebPOptions struct {
	Quality int
}

func (WebPOptions) Target() Format { return FormatWebP }

type AVIFOptions struct {
	Quality int
	Speed   int
}

func (AVIFOptions) Target() Format { return FormatAVIF }

type BMPOptions struct{}

func (BMPOptions) Target() Format { return FormatBMP }

// Settings is the validated, immutable conversion request. Optional fields
// are kept as given for records; Options holds the resolved encoder tunables.
type Settings struct {
	Format          Format
	Quality         *int
	Compression     *int
	Resolution      *Resolution
	KeepAspectRatio bool
	Options         EncodeOptions
}

// SettingsInput is the raw form collected from a request or CLI flags.
type SettingsInput struct {
	Format          string
	Quality         *int
	Compression     *int
	Resolution      *Resolution
	KeepAspectRatio bool
}

// NewSettings validates input once and resolves the per-format options.
func NewSettings(in SettingsInput) (Settings, error) {
	format, err := ParseFormat(in.Format)
	if err != nil {
		return Settings{}, err
	}
	if in.Quality != nil && (*in.Quality < minQuality || *in.Quality > maxQuality) {
		return Settings{}, fmt.Errorf("%w: quality %d outside %d-%d", ErrInvalidSettings, *in.Quality, minQuality, maxQuality)
	}
	if in.Compression != nil && (*in.Compression < minCompression || *in.Compression > maxCompression) {
		return Settings{}, fmt.Errorf("%w: compression %d outside %d-%d", ErrInvalidSettings, *in.Compression, minCompression, maxCompression)
	}
	if r := in.Resolution; r != nil {
		if r.Width <= 0 || r.Height <= 0 || r.Width > maxResolutionSide || r.Height > maxResolutionSide {
			return Settings{}, fmt.Errorf("%w: resolution %dx%d", ErrInvalidSettings, r.Width, r.Height)
		}
	}

	quality := DefaultQuality
	if in.Quality != nil {
		quality = *in.Quality
	}
	level := func(fallback int) int {
		if in.Compression != nil {
			return *in.Compression
		}
		return fallback
	}

	var opts EncodeOptions
	switch format {
	case FormatPNG:
		opts = PNGOptions{Level: PNGLevel(level(defaultPNGLevel))}
	case FormatJPEG:
		opts = JPEGOptions{Quality: quality, Preset: jpegPresets[level(defaultJPEGPreset)]}
	case FormatWebP:
		opts = WebPOptions{Quality: quality}
	case FormatAVIF:
		opts = AVIFOptions{Quality: quality, Speed: level(defaultAVIFSpeed)}
	case FormatBMP:
		opts = BMPOptions{}
	default:
		return Settings{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	return Settings{
		Format:          format,
		Quality:         in.Quality,
		Compression:     in.Compression,
		Resolution:      in.Resolution,
		KeepAspectRatio: in.KeepAspectRatio,
		Options:         opts,
	}, nil
}
