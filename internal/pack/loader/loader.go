// Package loader discovers existing content packages and re-imports their
// playlists against the current catalog.
package loader

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	catalogdomain "github.com/reelpack/reelpack/internal/catalog/domain"
	"github.com/reelpack/reelpack/internal/pack/archive"
	"github.com/reelpack/reelpack/internal/pack/domain"
	"github.com/reelpack/reelpack/internal/pack/sidecar"
	playlistdomain "github.com/reelpack/reelpack/internal/playlist/domain"
	"github.com/reelpack/reelpack/pkg/errors"
	"github.com/reelpack/reelpack/pkg/events"
	"github.com/reelpack/reelpack/pkg/interfaces"
)

// CatalogView resolves filenames against the current local catalog.
type CatalogView interface {
	ByFilename(filename string) (*catalogdomain.Video, bool)
}

// PlaylistImporter creates local playlists during import. Imported playlists
// always receive fresh local ids.
type PlaylistImporter interface {
	Create(ctx context.Context, name, description string) (*playlistdomain.Playlist, error)
	AddVideo(ctx context.Context, playlistID, videoID uuid.UUID, atIndex *int) error
}

// ImportResult reports what an import produced and what it could not resolve.
type ImportResult struct {
	Imported []*playlistdomain.Playlist
	// MissingVideos maps playlist name to the filenames absent from the
	// current catalog; those entries were dropped from the imported order.
	MissingVideos map[string][]string
	// Skipped lists playlists with zero resolvable videos, which are not
	// imported at all.
	Skipped []string
}

// Loader enumerates and imports existing package archives.
type Loader struct {
	store         interfaces.ObjectStore
	sidecars      *sidecar.Cache
	catalog       CatalogView
	importer      PlaylistImporter
	eventBus      interfaces.EventBus
	logger        interfaces.Logger
	packagePrefix string
}

// NewLoader creates a package loader.
func NewLoader(
	store interfaces.ObjectStore,
	sidecars *sidecar.Cache,
	catalog CatalogView,
	importer PlaylistImporter,
	eventBus interfaces.EventBus,
	logger interfaces.Logger,
	packagePrefix string,
) *Loader {
	return &Loader{
		store:         store,
		sidecars:      sidecars,
		catalog:       catalog,
		importer:      importer,
		eventBus:      eventBus,
		logger:        logger,
		packagePrefix: packagePrefix,
	}
}

// ListPackages enumerates archives under the package prefix, most recent
// first. Sidecar metadata is used when present; a miss triggers the
// self-healing generate-from-archive fallback.
func (l *Loader) ListPackages(ctx context.Context) ([]*domain.PackageSummary, error) {
	objects, err := l.store.List(ctx, l.packagePrefix, 0)
	if err != nil {
		return nil, errors.Transport("listing package prefix failed", err)
	}

	var summaries []*domain.PackageSummary
	for _, obj := range objects {
		if !domain.IsArchiveKey(obj.Key) {
			continue
		}

		md, err := l.sidecars.Fetch(ctx, obj.Key)
		if err != nil {
			// A sidecar read failure never fails the listing; fall through to
			// regeneration, which may still succeed against the archive.
			l.logger.Warn("sidecar read failed, regenerating",
				interfaces.String("key", obj.Key), interfaces.Error(err))
			md = nil
		}
		if md == nil {
			md, err = l.sidecars.GenerateFromArchive(ctx, obj.Key)
			if err != nil {
				l.logger.Error("sidecar generation failed, listing without metadata",
					interfaces.String("key", obj.Key), interfaces.Error(err))
				md = nil
			}
		}

		summaries = append(summaries, &domain.PackageSummary{
			Key:          obj.Key,
			Metadata:     md,
			LastModified: obj.LastModified,
			SizeBytes:    obj.Size,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaryTime(summaries[i]).After(summaryTime(summaries[j]))
	})
	return summaries, nil
}

// LoadStructure parses an archive's manifest and playlist files without
// importing anything.
func (l *Loader) LoadStructure(ctx context.Context, archiveKey string) (*domain.PackageStructure, error) {
	data, err := l.store.Get(ctx, archiveKey)
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
	structure.ArchiveKey = archiveKey
	return structure, nil
}

// ImportAsPlaylists recreates a package's playlists locally. Filenames are
// cross-referenced against the current catalog, not the catalog at export
// time: unresolvable entries are dropped and reported, playlists with no
// resolvable videos are skipped, and imported playlists get fresh local ids.
func (l *Loader) ImportAsPlaylists(ctx context.Context, structure *domain.PackageStructure) (*ImportResult, error) {
	result := &ImportResult{
		MissingVideos: make(map[string][]string),
	}

	files := make([]string, 0, len(structure.Playlists))
	for name := range structure.Playlists {
		files = append(files, name)
	}
	sort.Strings(files)

	for _, file := range files {
		export := structure.Playlists[file]

		var resolved []*catalogdomain.Video
		var missing []string
		for _, entry := range export.Videos {
			if video, ok := l.catalog.ByFilename(entry.Filename); ok {
				resolved = append(resolved, video)
			} else {
				missing = append(missing, entry.Filename)
			}
		}

		if len(missing) > 0 {
			result.MissingVideos[export.Name] = missing
			l.logger.Warn("import dropped videos missing from local catalog",
				interfaces.String("playlist", export.Name),
				interfaces.Any("missing", missing))
		}

		if len(resolved) == 0 {
			result.Skipped = append(result.Skipped, export.Name)
			l.logger.Warn("skipping playlist with no resolvable videos",
				interfaces.String("playlist", export.Name))
			continue
		}

		playlist, err := l.importer.Create(ctx, export.Name, export.Description)
		if err != nil {
			return result, err
		}
		for _, video := range resolved {
			if err := l.importer.AddVideo(ctx, playlist.ID, video.ID, nil); err != nil {
				// A duplicate entry in the source file; order is preserved
				// for the remainder.
				l.logger.Warn("import skipped playlist entry",
					interfaces.String("playlist", export.Name),
					interfaces.String("filename", video.Filename),
					interfaces.Error(err))
			}
		}
		result.Imported = append(result.Imported, playlist)
	}

	l.eventBus.PublishAsync(ctx, events.NewAggregateEvent("package.imported", structure.ArchiveKey, map[string]interface{}{
		"imported": len(result.Imported),
		"skipped":  len(result.Skipped),
	}))

	return result, nil
}

// Download returns the raw archive bytes.
func (l *Loader) Download(ctx context.Context, archiveKey string) ([]byte, error) {
	data, err := l.store.Get(ctx, archiveKey)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NotFound(fmt.Sprintf("archive %s not found", archiveKey))
		}
		return nil, errors.Transport(fmt.Sprintf("archive download of %s failed", archiveKey), err)
	}
	return data, nil
}

// Delete removes an archive and its sidecar. Sidecar removal is best effort
// and never fails the archive deletion.
func (l *Loader) Delete(ctx context.Context, archiveKey string) error {
	if err := l.store.Delete(ctx, archiveKey); err != nil {
		return errors.Transport(fmt.Sprintf("archive delete of %s failed", archiveKey), err)
	}

	l.sidecars.Delete(ctx, archiveKey)

	l.eventBus.PublishAsync(ctx, events.NewAggregateEvent("package.deleted", archiveKey, nil))
	l.logger.Info("package deleted", interfaces.String("key", archiveKey))
	return nil
}

// summaryTime orders listings: sidecar creation time when known, otherwise
// the object's last-modified time.
func summaryTime(s *domain.PackageSummary) time.Time {
	if s.Metadata != nil && !s.Metadata.CreatedAt.IsZero() {
		return s.Metadata.CreatedAt
	}
	return s.LastModified
}
