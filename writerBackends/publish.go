// Package writerbackends publishes finished archives to the storage named by
// a set of stored credentials.
package writerbackends

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

const (
	BackendDirectServe = "directServe"
	BackendS3          = "s3"
	BackendGCS         = "gcs"
	BackendSFTP        = "sftp"
)

var ErrUnknownBackend = errors.New("unknown backend type")

// KnownBackend reports whether name is a backend Publish can write to.
func KnownBackend(name string) bool {
	switch name {
	case BackendDirectServe, BackendS3, BackendGCS, BackendSFTP:
		return true
	}
	return false
}

// Target says where one archive goes. Access holds the backend credentials
// exactly as registered through /api/credentials.
type Target struct {
	Backend string
	Access  map[string]string
	Folder  string
	Name    string
}

// NewTarget builds a target from stored credentials; the "type" entry picks
// the backend.
func NewTarget(access map[string]string, folder, name string) Target {
	return Target{Backend: access["type"], Access: access, Folder: folder, Name: name}
}

// ObjectKey is Folder/Name with slashes, never escaping the folder root.
func (t Target) ObjectKey() string {
	key := path.Join("/", t.Folder, path.Base("/"+t.Name))
	return strings.TrimPrefix(key, "/")
}

func (t Target) get(key string) string {
	return t.Access[key]
}

func (t Target) require(keys ...string) error {
	var missing []string
	for _, k := range keys {
		if t.Access[k] == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required %s credentials: %s", t.Backend, strings.Join(missing, ", "))
	}
	return nil
}

// Publish writes data to the target and returns where it ended up.
func Publish(ctx context.Context, t Target, data []byte) (string, error) {
	if t.Name == "" {
		return "", errors.New("publish target has no name")
	}
	reader := bytes.NewReader(data)

	var (
		location string
		err      error
	)
	switch t.Backend {
	case BackendDirectServe:
		location, err = writeDirectServe(ctx, t, reader)
	case BackendS3:
		location, err = writeS3(ctx, t, reader)
	case BackendGCS:
		location, err = writeGCS(ctx, t, reader)
	case BackendSFTP:
		location, err = writeSFTP(ctx, t, reader)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBackend, t.Backend)
	}
	if err != nil {
		return "", fmt.Errorf("failed to publish to %s: %w", t.Backend, err)
	}
	return location, nil
}

// copyCtx copies while honouring ctx between chunks.
func copyCtx(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var written int64
	buf := make([]byte, 256<<10)
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, rerr := src.Read(buf)
		if n > 0 {
			w, werr := dst.Write(buf[:n])
			written += int64(w)
			if werr != nil {
				return written, werr
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}

func contentType(name string) string {
	switch {
	case strings.HasSuffix(name, ".zip"):
		return "application/zip"
	case strings.HasSuffix(name, ".lz4"):
		return "application/x-lz4"
	case strings.HasSuffix(name, ".zst"):
		return "application/zstd"
	}
	return "application/octet-stream"
}
