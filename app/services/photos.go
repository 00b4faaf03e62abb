// Package services holds the pieces that sit between handlers and
// persistence: the photo gateway, the storage reconciliation sweep and the
// seller cleanup job.
package services

import (
	"context"
	"fmt"
	"path"

	"github.com/google/uuid"

	"github.com/shashiranjanraj/dukaan/app/models"
	"github.com/shashiranjanraj/dukaan/pkg/metrics"
	"github.com/shashiranjanraj/dukaan/pkg/storage"
)

// PhotoGateway uploads product photos to the configured object store and
// removes them again. Failures are surfaced to the caller; nothing is rolled
// back here.
type PhotoGateway struct {
	disk     storage.Disk
	diskName string
}

// NewPhotoGateway uses the manager's default disk.
func NewPhotoGateway(mgr *storage.Manager) *PhotoGateway {
	return &PhotoGateway{disk: mgr.Default(), diskName: mgr.DefaultName()}
}

// DiskName identifies the disk the gateway writes to, for intent records.
func (g *PhotoGateway) DiskName() string { return g.diskName }

// Upload stores one file under prefix with a uuid-prefixed key and returns
// the photo record to attach to the product.
func (g *PhotoGateway) Upload(ctx context.Context, prefix, name, contentType string, data []byte) (models.Photo, error) {
	key := path.Join(prefix, uuid.NewString()+"-"+path.Base(name))

	if err := g.disk.Put(ctx, key, data, contentType); err != nil {
		metrics.RecordStorageOp("upload", err)
		return models.Photo{}, fmt.Errorf("services: upload %s: %w", key, err)
	}
	metrics.RecordStorageOp("upload", nil)

	return models.Photo{
		URL:         g.disk.URL(key),
		Key:         key,
		Name:        name,
		ContentType: contentType,
	}, nil
}

// Remove deletes one stored object by key.
func (g *PhotoGateway) Remove(ctx context.Context, key string) error {
	err := g.disk.Delete(ctx, key)
	metrics.RecordStorageOp("delete", err)
	if err != nil {
		return fmt.Errorf("services: remove %s: %w", key, err)
	}
	return nil
}
