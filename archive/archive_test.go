package archive

import (
	"archive/tar"
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sample = []Entry{
	{Name: "a.png", Data: []byte("first")},
	{Name: "b.png", Data: bytes.Repeat([]byte("x"), 4096)},
	{Name: "c.png", Data: []byte{}},
}

func readTar(t *testing.T, r io.Reader) map[string][]byte {
	t.Helper()
	out := map[string][]byte{}
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		out[hdr.Name] = data
	}
	return out
}

func TestZipInSubmissionOrder(t *testing.T) {
	data, err := Build(Zip, sample)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, zr.File, 3)

	for i, f := range zr.File {
		assert.Equal(t, sample[i].Name, f.Name)
		rc, err := f.Open()
		require.NoError(t, err)
		got, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		assert.Equal(t, sample[i].Data, got)
	}
}

func TestTarLZ4(t *testing.T) {
	data, err := Build(TarLZ4, sample)
	require.NoError(t, err)

	files := readTar(t, lz4.NewReader(bytes.NewReader(data)))
	assert.Len(t, files, 3)
	assert.Equal(t, sample[1].Data, files["b.png"])
}

func TestTarZstd(t *testing.T) {
	data, err := Build(TarZstd, sample)
	require.NoError(t, err)

	dec, err := zstd.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer dec.Close()

	files := readTar(t, dec)
	assert.Len(t, files, 3)
	assert.Equal(t, []byte("first"), files["a.png"])
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": Zip, "ZIP": Zip, "tar.lz4": TarLZ4, "zstd": TarZstd} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("rar")
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = Build(Format("rar"), sample)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestUniqueNames(t *testing.T) {
	got := UniqueNames([]Entry{{Name: "a.png"}, {Name: "a.png"}, {Name: "a (1).png"}, {Name: "a.png"}})
	names := make([]string, len(got))
	for i, e := range got {
		names[i] = e.Name
	}
	assert.Equal(t, []string{"a.png", "a (1).png", "a (1) (1).png", "a (2).png"}, names)
}
