package writerbackends

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"pixbatch/logger"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// serviceAccountJSON accepts the key either raw or base64 encoded.
func serviceAccountJSON(value string) ([]byte, error) {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "{") {
		return []byte(trimmed), nil
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding} {
		if out, err := enc.DecodeString(trimmed); err == nil {
			return out, nil
		}
	}
	return nil, fmt.Errorf("credentialsJSON is neither JSON nor base64")
}

func writeGCS(ctx context.Context, t Target, reader io.Reader) (string, error) {
	if err := t.require("credentialsJSON", "bucket"); err != nil {
		return "", err
	}
	credentialsJSON, err := serviceAccountJSON(t.get("credentialsJSON"))
	if err != nil {
		return "", err
	}
	bucketName := t.get("bucket")
	objectName := t.ObjectKey()

	client, err := storage.NewClient(ctx, option.WithCredentialsJSON(credentialsJSON))
	if err != nil {
		return "", fmt.Errorf("storage.NewClient: %w", err)
	}
	defer client.Close()

	wc := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType(t.Name)

	if _, err := copyCtx(ctx, wc, reader); err != nil {
		wc.Close()
		return "", fmt.Errorf("io.Copy: %w", err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("Writer.Close: %w", err)
	}

	logger.Infof("Uploaded object '%s' to bucket '%s'", objectName, bucketName)
	return fmt.Sprintf("gs://%s/%s", bucketName, objectName), nil
}
