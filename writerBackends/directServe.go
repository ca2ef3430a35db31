package writerbackends

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"pixbatch/logger"
)

// writeDirectServe saves the archive below baseDir, from where the HTTP
// server serves it under /files/.
func writeDirectServe(ctx context.Context, t Target, reader io.Reader) (string, error) {
	if err := t.require("baseDir"); err != nil {
		return "", err
	}
	rel := filepath.FromSlash(t.ObjectKey())
	fullPath := filepath.Join(t.get("baseDir"), rel)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directories: %w", err)
	}

	// write next to the target and rename so readers never see a partial file
	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".publish-*")
	if err != nil {
		return "", fmt.Errorf("failed to create file in %s: %w", filepath.Dir(fullPath), err)
	}
	defer os.Remove(tmp.Name())

	if _, err := copyCtx(ctx, tmp, reader); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write %s: %w", fullPath, err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return "", fmt.Errorf("failed to move archive into place: %w", err)
	}

	logger.Infof("Saved archive '%s' to '%s'", t.Name, fullPath)
	return "/files/" + t.ObjectKey(), nil
}
