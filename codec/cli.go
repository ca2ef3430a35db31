package codec

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// buildCommand returns the tool and arguments for one run given the staged
// input and expected output paths.
type buildCommand func(in, out string) (string, []string)

// runWithFiles stages input in a private temp dir, runs the tool and returns
// the bytes it wrote to the output path. The directory is always removed.
func (l *Library) runWithFiles(ctx context.Context, input []byte, inName, outName string, build buildCommand) ([]byte, error) {
	l.mu.RLock()
	base := l.tempDir
	l.mu.RUnlock()

	dir, err := os.MkdirTemp(base, "pixbatch-codec-")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, inName)
	out := filepath.Join(dir, outName)
	if err := os.WriteFile(in, input, 0o600); err != nil {
		return nil, fmt.Errorf("failed to stage input: %w", err)
	}

	name, args := build(in, out)
	cmd := exec.CommandContext(ctx, name, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", filepath.Base(name), err, strings.TrimSpace(string(output)))
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("%s did not produce output: %w", filepath.Base(name), err)
	}
	return data, nil
}

// encodeWithTool hands img to an external encoder through a lossless PNG.
func (l *Library) encodeWithTool(ctx context.Context, img image.Image, outName string, build buildCommand) ([]byte, error) {
	var staged bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&staged, img); err != nil {
		return nil, fmt.Errorf("failed to stage image: %w", err)
	}
	return l.runWithFiles(ctx, staged.Bytes(), "input.png", outName, build)
}
