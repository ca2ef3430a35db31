// Package archive packs converted files into a single downloadable archive.
package archive

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Format identifies an archive container.
type Format string

const (
	Zip     Format = "zip"
	TarLZ4  Format = "tar.lz4"
	TarZstd Format = "tar.zst"
)

var ErrUnknownFormat = errors.New("unknown archive format")

// ParseFormat accepts the names used on the wire and in config.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "zip":
		return Zip, nil
	case "tar.lz4", "lz4":
		return TarLZ4, nil
	case "tar.zst", "tar.zstd", "zst", "zstd":
		return TarZstd, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// ContentType is the MIME type of the archive.
func (f Format) ContentType() string {
	switch f {
	case TarLZ4:
		return "application/x-lz4"
	case TarZstd:
		return "application/zstd"
	default:
		return "application/zip"
	}
}

// Extension is the file suffix including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// Entry is one file in the archive.
type Entry struct {
	Name string
	Data []byte
}

// Write packs entries in the given order. Names are made unique first.
func Write(w io.Writer, format Format, entries []Entry) error {
	entries = UniqueNames(entries)
	modified := time.Now()

	switch format {
	case Zip:
		return writeZip(w, entries, modified)
	case TarLZ4:
		zw := lz4.NewWriter(w)
		if err := writeTar(zw, entries, modified); err != nil {
			return err
		}
		return zw.Close()
	case TarZstd:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return fmt.Errorf("zstd writer: %w", err)
		}
		if err := writeTar(zw, entries, modified); err != nil {
			zw.Close()
			return err
		}
		return zw.Close()
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// Build is Write into memory.
func Build(format Format, entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, format, entries); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeZip(w io.Writer, entries []Entry, modified time.Time) error {
	zw := zip.NewWriter(w)
	for _, e := range entries {
		f, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.Name,
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			return fmt.Errorf("add %s: %w", e.Name, err)
		}
		if _, err := f.Write(e.Data); err != nil {
			return fmt.Errorf("write %s: %w", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish zip: %w", err)
	}
	return nil
}

func writeTar(w io.Writer, entries []Entry, modified time.Time) error {
	tw := tar.NewWriter(w)
	for _, e := range entries {
		hdr := &tar.Header{
			Name:    e.Name,
			Mode:    0o644,
			Size:    int64(len(e.Data)),
			ModTime: modified,
			Format:  tar.FormatPAX,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("add %s: %w", e.Name, err)
		}
		if _, err := tw.Write(e.Data); err != nil {
			return fmt.Errorf("write %s: %w", e.Name, err)
		}
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("finish tar: %w", err)
	}
	return nil
}

// UniqueNames returns entries whose names are distinct. A repeated name gets
// " (n)" before its extension, so "a.png" twice becomes "a.png" and "a (1).png".
func UniqueNames(entries []Entry) []Entry {
	seen := make(map[string]bool, len(entries))
	out := make([]Entry, len(entries))
	for i, e := range entries {
		name := e.Name
		if seen[name] {
			ext := path.Ext(name)
			stem := strings.TrimSuffix(name, ext)
			for n := 1; ; n++ {
				candidate := stem + " (" + strconv.Itoa(n) + ")" + ext
				if !seen[candidate] {
					name = candidate
					break
				}
			}
		}
		seen[name] = true
		out[i] = Entry{Name: name, Data: e.Data}
	}
	return out
}
