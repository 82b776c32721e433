package storage

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/resourcehub/apiserver/config"
)

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// NewObjectStorage constructs a backend from config. A "none" driver
// yields nil, which disables attachment routes.
func NewObjectStorage(ctx context.Context, cfg config.StorageConfig) (ObjectStorage, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "none":
		return nil, nil
	case "minio":
		return NewMinioClient(cfg.Minio)
	case "gcs":
		return NewGCSClient(ctx, cfg.GCS)
	default:
		return nil, errors.New("unknown storage driver: " + cfg.Driver)
	}
}

// Attachments stores one opaque attachment per resource, keyed by the
// resource id.
type Attachments struct {
	backend ObjectStorage
}

// NewAttachments wraps an ObjectStorage backend.
func NewAttachments(backend ObjectStorage) *Attachments {
	return &Attachments{backend: backend}
}

// EnsureBucket ensures the configured bucket exists.
func (a *Attachments) EnsureBucket(ctx context.Context) error {
	return a.backend.EnsureBucket(ctx)
}

// Put uploads the attachment for a resource.
func (a *Attachments) Put(ctx context.Context, resourceID uuid.UUID, r io.Reader, size int64, contentType string) error {
	return a.backend.Put(ctx, attachmentKey(resourceID), r, size, contentType)
}

// Get opens a reader for a resource's attachment.
func (a *Attachments) Get(ctx context.Context, resourceID uuid.UUID) (io.ReadCloser, error) {
	return a.backend.Get(ctx, attachmentKey(resourceID))
}

// Delete removes a resource's attachment.
func (a *Attachments) Delete(ctx context.Context, resourceID uuid.UUID) error {
	return a.backend.Delete(ctx, attachmentKey(resourceID))
}

// Bucket returns the configured bucket name.
func (a *Attachments) Bucket() string {
	return a.backend.Bucket()
}

func attachmentKey(resourceID uuid.UUID) string {
	return "resources/" + resourceID.String() + "/attachment"
}
