// Package sidecar maintains the per-archive metadata cache. A sidecar is a
// small JSON object stored next to its archive; listing N archives costs N
// sidecar reads plus at most one full download per archive missing a sidecar,
// and each miss is self-healing.
package sidecar

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/reelpack/reelpack/internal/pack/archive"
	"github.com/reelpack/reelpack/internal/pack/domain"
	"github.com/reelpack/reelpack/pkg/errors"
	"github.com/reelpack/reelpack/pkg/interfaces"
)

// Cache reads and writes sidecar objects.
type Cache struct {
	store  interfaces.ObjectStore
	logger interfaces.Logger
}

// NewCache creates a sidecar cache over the given store.
func NewCache(store interfaces.ObjectStore, logger interfaces.Logger) *Cache {
	return &Cache{store: store, logger: logger}
}

// KeyFor returns the sidecar key for an archive key.
func (c *Cache) KeyFor(archiveKey string) string {
	return domain.SidecarKeyFor(archiveKey)
}

// Save persists the sidecar for an archive.
func (c *Cache) Save(ctx context.Context, archiveKey string, md *domain.PackageMetadata) error {
	raw, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("sidecar encode failed: %w", err)
	}
	key := c.KeyFor(archiveKey)
	if err := c.store.Put(ctx, key, raw, "application/json", nil); err != nil {
		return errors.Transport(fmt.Sprintf("sidecar write of %s failed", key), err)
	}
	return nil
}

// Fetch reads the sidecar for an archive. Absence is not an error: it returns
// (nil, nil) to signal "not yet generated" and trigger the fallback path.
func (c *Cache) Fetch(ctx context.Context, archiveKey string) (*domain.PackageMetadata, error) {
	key := c.KeyFor(archiveKey)
	raw, err := c.store.Get(ctx, key)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.Transport(fmt.Sprintf("sidecar read of %s failed", key), err)
	}

	md, err := domain.MigrateSidecar(raw)
	if err != nil {
		c.logger.Warn("sidecar unreadable, regenerating",
			interfaces.String("key", key), interfaces.Error(err))
		return nil, nil
	}
	return md, nil
}

// Delete removes the sidecar for an archive. Failures are logged and
// swallowed; sidecar deletion must never block archive deletion.
func (c *Cache) Delete(ctx context.Context, archiveKey string) {
	key := c.KeyFor(archiveKey)
	if err := c.store.Delete(ctx, key); err != nil {
		c.logger.Warn("sidecar delete failed",
			interfaces.String("key", key), interfaces.Error(err))
	}
}

// GenerateFromArchive downloads the archive, derives its metadata from the
// playlist files, and persists the sidecar so the miss never recurs.
func (c *Cache) GenerateFromArchive(ctx context.Context, archiveKey string) (*domain.PackageMetadata, error) {
	data, err := c.store.Get(ctx, archiveKey)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NotFound(fmt.Sprintf("archive %s not found", archiveKey))
		}
		return nil, errors.Transport(fmt.Sprintf("archive read of %s failed", archiveKey), err)
	}

	structure, err := archive.Parse(data)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(structure.Playlists))
	for _, export := range structure.Playlists {
		names = append(names, export.Name)
	}

	md := &domain.PackageMetadata{
		PackageName:   domain.PackageNameFromKey(archiveKey),
		Filename:      archiveKey,
		PlaylistCount: len(structure.Playlists),
		// Distinct filenames across all playlists, not a sum.
		VideoCount:     len(structure.RequiredFilenames),
		PlaylistNames:  names,
		TotalSizeBytes: int64(len(data)),
		CreatedAt:      time.Now().UTC(),
		FormatVersion:  domain.SidecarFormatVersion,
	}
	if !structure.Manifest.LastUpdated.IsZero() {
		md.CreatedAt = structure.Manifest.LastUpdated
	}

	if err := c.Save(ctx, archiveKey, md); err != nil {
		// Metadata is still usable for this listing even if the backfill
		// write failed.
		c.logger.Warn("sidecar backfill failed",
			interfaces.String("key", archiveKey), interfaces.Error(err))
	}

	c.logger.Info("sidecar generated from archive",
		interfaces.String("key", archiveKey),
		interfaces.Int("playlists", md.PlaylistCount),
		interfaces.Int("videos", md.VideoCount))

	return md, nil
}
