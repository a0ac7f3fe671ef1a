// Package objectstore uploads profile images to a Google Cloud Storage bucket.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	gcs "cloud.google.com/go/storage"
)

// GCS writes objects into a single bucket.  Credentials come from the
// environment (GOOGLE_APPLICATION_CREDENTIALS or the metadata server).
type GCS struct {
	client *gcs.Client
	bucket string
}

// NewGCS opens a storage client bound to bucket.
func NewGCS(ctx context.Context, bucket string) (*GCS, error) {
	if bucket == "" {
		return nil, errors.New("objectstore: empty bucket name")
	}
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("objectstore: new client: %w", err)
	}
	return &GCS{client: client, bucket: bucket}, nil
}

// Upload streams r into the object name and returns its public URL.  The
// upload is a single non-resumable request.
func (g *GCS) Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := g.client.Bucket(g.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType
	w.ChunkSize = 0
	if _, err := io.Copy(w, r); err != nil {
		cancel() // aborts the pending write
		_ = w.Close()
		return "", fmt.Errorf("objectstore: write %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("objectstore: finalize %s: %w", name, err)
	}
	return PublicURL(g.bucket, name), nil
}

// Close releases the underlying client.
func (g *GCS) Close() error { return g.client.Close() }

// PublicURL is the storage.googleapis.com address of an object.
func PublicURL(bucket, name string) string {
	u := url.URL{Scheme: "https", Host: "storage.googleapis.com", Path: "/" + bucket + "/" + name}
	return u.String()
}
