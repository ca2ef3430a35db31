package codec

import (
	"context"
	"fmt"
	"image"
	"os/exec"
	"sync"

	"pixbatch/logger"
	"pixbatch/models"
)

// EncodeFunc is the function signature for any encoder.
type EncodeFunc func(ctx context.Context, img image.Image, opts models.EncodeOptions) ([]byte, error)

// Capability describes how a format's encoder may be scheduled.
// MaxConcurrency 1 means the encoder already spreads one image across every
// core and must run one instance at a time; 0 means no limit beyond the job's.
type Capability struct {
	MaxConcurrency int
}

// Sequential reports whether items of this format must run one at a time.
func (c Capability) Sequential() bool {
	return c.MaxConcurrency == 1
}

var defaultCapabilities = map[models.Format]Capability{
	models.FormatAVIF: {MaxConcurrency: 1},
}

// Library maps format name → encoder function and holds the decode fallback.
type Library struct {
	mu           sync.RWMutex
	encoders     map[models.Format]EncodeFunc
	capabilities map[models.Format]Capability
	magickPath   string
	tempDir      string
}

// NewLibrary returns an empty library with the default capability table.
func NewLibrary() *Library {
	caps := make(map[models.Format]Capability, len(defaultCapabilities))
	for f, c := range defaultCapabilities {
		caps[f] = c
	}
	return &Library{
		encoders:     make(map[models.Format]EncodeFunc),
		capabilities: caps,
	}
}

// Register adds an encoder if the underlying command exists, logs status.
func (l *Library) Register(format models.Format, cmdName string, fn EncodeFunc) bool {
	if _, err := exec.LookPath(cmdName); err != nil {
		logger.Warnf("encoder [%s] skipped: command '%s' not found in PATH", format, cmdName)
		return false
	}
	l.RegisterNative(format, fn)
	logger.Debugf("encoder [%s] registered (command: %s)", format, cmdName)
	return true
}

// RegisterNative adds an in-process encoder, replacing any previous one.
func (l *Library) RegisterNative(format models.Format, fn EncodeFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.encoders[format] = fn
}

// SetCapability overrides the scheduling descriptor of a format.
func (l *Library) SetCapability(format models.Format, c Capability) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.capabilities[format] = c
}

// SetTempDir changes where CLI encoders stage their files. Empty means os.TempDir.
func (l *Library) SetTempDir(dir string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tempDir = dir
}

// Encoder looks up the encoder for a format.
func (l *Library) Encoder(format models.Format) (EncodeFunc, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	fn, ok := l.encoders[format]
	return fn, ok
}

// Capability returns the scheduling descriptor for a format.
func (l *Library) Capability(format models.Format) Capability {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.capabilities[format]
}

// Formats lists the formats that currently have an encoder.
func (l *Library) Formats() []models.Format {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []models.Format
	for _, f := range models.Formats {
		if _, ok := l.encoders[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

// RegisterDefaults wires the built-in encoders. png and bmp are always
// available; jpg, webp and avif only when their tool is on PATH, so a
// missing tool surfaces as an unsupported format.
func (l *Library) RegisterDefaults() {
	l.RegisterNative(models.FormatPNG, encodePNG)
	l.RegisterNative(models.FormatBMP, encodeBMP)

	if path, err := exec.LookPath("magick"); err == nil {
		l.mu.Lock()
		l.magickPath = path
		l.mu.Unlock()
	}
	l.Register(models.FormatJPEG, "magick", l.encodeJPEGMagick)
	l.Register(models.FormatWebP, "cwebp", l.encodeWebP)
	l.Register(models.FormatAVIF, "avifenc", l.encodeAVIF)
}

var (
	defaultLibrary *Library
	defaultOnce    sync.Once
)

// Default returns the process-wide library with the default encoders registered.
func Default() *Library {
	defaultOnce.Do(func() {
		defaultLibrary = NewLibrary()
		defaultLibrary.RegisterDefaults()
	})
	return defaultLibrary
}

// Encode runs the encoder registered for opts' format.
func (l *Library) Encode(ctx context.Context, img image.Image, opts models.EncodeOptions) ([]byte, error) {
	if opts == nil {
		return nil, fmt.Errorf("%w: no encode options", models.ErrUnsupportedFormat)
	}
	fn, ok := l.Encoder(opts.Target())
	if !ok {
		return nil, fmt.Errorf("%w: no encoder for %s", models.ErrUnsupportedFormat, opts.Target())
	}
	return fn(ctx, img, opts)
}
