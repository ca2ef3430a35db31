package main

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixbatch/models"
)

func writePNG(t *testing.T, dir, name string) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 20, 10))))
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, buf.Bytes(), 0o644))
	return p
}

func TestRunConvertWritesArchive(t *testing.T) {
	dir := t.TempDir()
	paths := []string{writePNG(t, dir, "one.png"), writePNG(t, dir, "two.gif")}
	output := filepath.Join(dir, "out.zip")

	var out bytes.Buffer
	input := models.SettingsInput{Format: "bmp", Resolution: &models.Resolution{Width: 10, Height: 5}}
	err := runConvert(context.Background(), &out, input, convertOptions{output: output, archive: "zip"}, paths)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "100.00%")
	assert.Contains(t, out.String(), "wrote "+output)

	zr, err := zip.OpenReader(output)
	require.NoError(t, err)
	defer zr.Close()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"one.bmp", "two.bmp"}, names)
}

func TestRunConvertCancelled(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runConvert(ctx, &bytes.Buffer{}, models.SettingsInput{Format: "png"},
		convertOptions{output: filepath.Join(dir, "x.zip"), quiet: true}, []string{writePNG(t, dir, "a.png")})
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "x.zip"))
}

func TestRunConvertMissingFile(t *testing.T) {
	err := runConvert(context.Background(), &bytes.Buffer{}, models.SettingsInput{Format: "png"},
		convertOptions{quiet: true}, []string{filepath.Join(t.TempDir(), "nope.png")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseResolutionFlag(t *testing.T) {
	res, err := parseResolutionFlag("640,480")
	require.NoError(t, err)
	assert.Equal(t, &models.Resolution{Width: 640, Height: 480}, res)

	res, err = parseResolutionFlag("800x600")
	require.NoError(t, err)
	assert.Equal(t, 800, res.Width)

	res, err = parseResolutionFlag("")
	require.NoError(t, err)
	assert.Nil(t, res)

	_, err = parseResolutionFlag("wide")
	assert.Error(t, err)
}

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"serve", "convert"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestQualityFlagMatchesAcceptedRange(t *testing.T) {
	flag := newConvertCommand().Flags().Lookup("quality")
	require.NotNil(t, flag)
	assert.Contains(t, flag.Usage, "0-100")

	zero := 0
	_, err := models.NewSettings(models.SettingsInput{Format: "webp", Quality: &zero})
	assert.NoError(t, err)
}
