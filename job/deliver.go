package job

import (
	"context"
	"errors"
	"fmt"

	"pixbatch/logger"
	"pixbatch/models"
	writerbackends "pixbatch/writerBackends"
)

// ArchivePublisher writes finished archives to the storage named by a job's
// storage key.
type ArchivePublisher struct {
	// Lookup returns the stored credentials for a key.
	Lookup func(key string) (map[string]string, error)
	// ServeDir is the root used by the directServe backend.
	ServeDir string
	// Write defaults to writerbackends.Publish.
	Write func(ctx context.Context, t writerbackends.Target, data []byte) (string, error)
}

func (p *ArchivePublisher) publish(ctx context.Context, d models.Delivery, out *Output) (string, error) {
	if p.Lookup == nil {
		return "", errors.New("no credentials lookup configured")
	}
	access, err := p.Lookup(d.StorageKey)
	if err != nil {
		return "", fmt.Errorf("storage key %s: %w", d.StorageKey, err)
	}
	if access["type"] == writerbackends.BackendDirectServe && access["baseDir"] == "" {
		merged := make(map[string]string, len(access)+1)
		for k, v := range access {
			merged[k] = v
		}
		merged["baseDir"] = p.ServeDir
		access = merged
	}

	write := p.Write
	if write == nil {
		write = writerbackends.Publish
	}
	return write(ctx, writerbackends.NewTarget(access, d.SubDir, out.Filename()), out.Archive)
}

// deliver publishes out when the job asks for it. Without a storage key it
// does nothing.
func (c *Coordinator) deliver(ctx context.Context, j models.Job, out *Output) error {
	if j.Delivery.StorageKey == "" {
		return nil
	}
	if c.Archives == nil {
		return &ItemError{Kind: KindPublish, Index: -1, Err: errors.New("publishing is not configured")}
	}

	location, err := c.Archives.publish(ctx, j.Delivery, out)
	if err != nil {
		return &ItemError{Kind: KindPublish, Index: -1, Err: err}
	}
	out.Location = location
	logger.Infof("job %s archive published to %s", j.ID, location)
	return nil
}
