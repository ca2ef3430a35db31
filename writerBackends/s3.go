package writerbackends

import (
	"context"
	"fmt"
	"io"

	"pixbatch/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// writeS3 uploads with a client built from the target's own keys. An
// "endpoint" entry points the client at an S3-compatible service.
func writeS3(ctx context.Context, t Target, reader io.Reader) (string, error) {
	if err := t.require("accessKey", "secretKey", "region", "bucket"); err != nil {
		return "", err
	}
	bucket := t.get("bucket")
	key := t.ObjectKey()

	opts := s3.Options{
		Region:      t.get("region"),
		Credentials: credentials.NewStaticCredentialsProvider(t.get("accessKey"), t.get("secretKey"), ""),
	}
	if endpoint := t.get("endpoint"); endpoint != "" {
		opts.BaseEndpoint = aws.String(endpoint)
		opts.UsePathStyle = true
	}
	uploader := manager.NewUploader(s3.New(opts))

	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        reader,
		ContentType: aws.String(contentType(t.Name)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object %s to bucket %s: %w", key, bucket, err)
	}

	logger.Infof("Uploaded object '%s' to bucket '%s'", key, bucket)
	return fmt.Sprintf("s3://%s/%s", bucket, key), nil
}
