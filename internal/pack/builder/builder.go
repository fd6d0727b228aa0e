// Package builder converts playlists and videos into content packages:
// validated, self-contained archives uploaded with a metadata sidecar.
package builder

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	catalogdomain "github.com/reelpack/reelpack/internal/catalog/domain"
	"github.com/reelpack/reelpack/internal/pack/domain"
	"github.com/reelpack/reelpack/internal/pack/sidecar"
	playlistdomain "github.com/reelpack/reelpack/internal/playlist/domain"
	"github.com/reelpack/reelpack/pkg/errors"
	"github.com/reelpack/reelpack/pkg/events"
	"github.com/reelpack/reelpack/pkg/interfaces"
	"github.com/reelpack/reelpack/pkg/utils"
)

// IntegrityReport partitions a playlist's ordered video ids into those that
// resolve against a video set and those that do not. The two partitions are
// disjoint and their union is the playlist's order.
type IntegrityReport struct {
	Valid      bool
	ValidIDs   []uuid.UUID
	MissingIDs []uuid.UUID
}

// PublishResult reports the outcome of a package publication. SidecarSaved is
// independent of the archive write: an archive without a sidecar is valid and
// covered by the cache's fallback.
type PublishResult struct {
	ArchiveKey   string
	SidecarSaved bool
	PublicURL    string
}

// Progress reports files completed out of the total during serialization.
type Progress func(done, total int)

// Builder assembles, validates, serializes, and publishes content packages.
type Builder struct {
	store         interfaces.ObjectStore
	sidecars      *sidecar.Cache
	eventBus      interfaces.EventBus
	logger        interfaces.Logger
	packagePrefix string
	moodPolicy    domain.MoodPolicy
}

// NewBuilder creates a package builder.
func NewBuilder(
	store interfaces.ObjectStore,
	sidecars *sidecar.Cache,
	eventBus interfaces.EventBus,
	logger interfaces.Logger,
	packagePrefix string,
) *Builder {
	return &Builder{
		store:         store,
		sidecars:      sidecars,
		eventBus:      eventBus,
		logger:        logger,
		packagePrefix: packagePrefix,
		moodPolicy:    domain.DefaultMoodPolicy,
	}
}

// SetMoodPolicy replaces the mood/category derivation heuristic.
func (b *Builder) SetMoodPolicy(policy domain.MoodPolicy) {
	if policy != nil {
		b.moodPolicy = policy
	}
}

// ValidateIntegrity partitions a playlist's video ids against a video set.
func (b *Builder) ValidateIntegrity(playlist *playlistdomain.Playlist, videos map[uuid.UUID]*catalogdomain.Video) IntegrityReport {
	report := IntegrityReport{}
	for _, id := range playlist.VideoOrder {
		if _, ok := videos[id]; ok {
			report.ValidIDs = append(report.ValidIDs, id)
		} else {
			report.MissingIDs = append(report.MissingIDs, id)
		}
	}
	report.Valid = len(report.MissingIDs) == 0
	return report
}

// BuildPackage produces the canonical package structure from a set of
// playlists and videos. Dangling references are removed first; what was
// dropped is logged, never silently repaired.
func (b *Builder) BuildPackage(name string, videos []*catalogdomain.Video, playlists []*playlistdomain.Playlist) *domain.ContentPackage {
	videosByID := make(map[uuid.UUID]*catalogdomain.Video, len(videos))
	for _, v := range videos {
		videosByID[v.ID] = v
	}

	pkg := &domain.ContentPackage{
		Name: name,
		Manifest: domain.VideoLibraryExport{
			LastUpdated: time.Now().UTC(),
			Videos:      make(map[string]domain.ExportVideo),
		},
		PlaylistFiles: make(map[string]domain.PlaylistExport),
	}

	for _, playlist := range playlists {
		report := b.ValidateIntegrity(playlist, videosByID)
		if !report.Valid {
			b.logger.Warn("dropping dangling video references from export",
				interfaces.String("playlist", playlist.Name),
				interfaces.Int("dropped", len(report.MissingIDs)),
				interfaces.Any("missing_ids", report.MissingIDs))
		}

		mood, category := b.moodPolicy(playlist.Name)
		export := domain.PlaylistExport{
			Name:        playlist.Name,
			Description: playlist.Description,
			Mood:        mood,
			Loop:        true,
		}

		for _, id := range report.ValidIDs {
			video := videosByID[id]
			// Thumbnail path is relative to the packages directory.
			thumbnail := "thumbnails/" + utils.FileStem(video.Filename) + ".jpg"
			export.Videos = append(export.Videos, domain.PlaylistEntry{
				Filename:          video.Filename,
				Title:             video.Title,
				DurationSeconds:   video.DurationSeconds,
				DurationFormatted: utils.FormatDuration(video.DurationSeconds),
				Thumbnail:         thumbnail,
			})

			if _, seen := pkg.Manifest.Videos[video.Filename]; !seen {
				pkg.Manifest.Videos[video.Filename] = domain.ExportVideo{
					Title:             video.Title,
					Filename:          video.Filename,
					DurationSeconds:   video.DurationSeconds,
					DurationFormatted: utils.FormatDuration(video.DurationSeconds),
					Thumbnail:         thumbnail,
					Mood:              mood,
					Resolution:        video.Resolution,
					Category:          category,
				}
				pkg.Manifest.TotalDurationSeconds += video.DurationSeconds
			}
		}

		pkg.PlaylistFiles[utils.Slugify(playlist.Name)+".json"] = export
	}

	pkg.Manifest.TotalVideos = len(pkg.Manifest.Videos)
	return pkg
}

// ValidatePackage enforces the manifest/playlist cross-reference invariant:
// every filename in every playlist file must exist in the manifest.
func (b *Builder) ValidatePackage(pkg *domain.ContentPackage) []error {
	var errs []error
	for filename, export := range pkg.PlaylistFiles {
		for _, entry := range export.Videos {
			if _, ok := pkg.Manifest.Videos[entry.Filename]; !ok {
				errs = append(errs, errors.Integrity(fmt.Sprintf(
					"playlist file %s references %s which is absent from the manifest",
					filename, entry.Filename)))
			}
		}
	}
	return errs
}

// SerializeToArchive lays out the fixed directory structure and embeds the
// manifest, playlist files, video bytes, and thumbnails. A per-video fetch
// failure substitutes a placeholder so one bad asset cannot sink the export.
func (b *Builder) SerializeToArchive(ctx context.Context, pkg *domain.ContentPackage, videos []*catalogdomain.Video, progress Progress) ([]byte, error) {
	videosByFilename := make(map[string]*catalogdomain.Video, len(videos))
	for _, v := range videos {
		videosByFilename[v.Filename] = v
	}

	filenames := make([]string, 0, len(pkg.Manifest.Videos))
	for filename := range pkg.Manifest.Videos {
		filenames = append(filenames, filename)
	}
	sort.Strings(filenames)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	total := len(filenames)
	for done, filename := range filenames {
		video := videosByFilename[filename]

		content := placeholderVideo
		if video != nil {
			if data, err := b.store.Get(ctx, video.Storage.Key); err != nil {
				b.logger.Warn("video fetch failed, embedding placeholder",
					interfaces.String("key", video.Storage.Key),
					interfaces.Error(err))
			} else {
				content = data
			}
		}
		if err := writeEntry(zw, domain.PackagesDir+filename, content); err != nil {
			return nil, err
		}

		thumb := placeholderThumbnail
		if video != nil && video.Storage.ThumbnailKey != "" {
			if data, err := b.store.Get(ctx, video.Storage.ThumbnailKey); err == nil {
				thumb = data
			}
		}
		if err := writeEntry(zw, domain.ThumbnailsDir+utils.FileStem(filename)+".jpg", thumb); err != nil {
			return nil, err
		}

		if progress != nil {
			progress(done+1, total)
		}
	}

	manifest, err := json.MarshalIndent(pkg.Manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("manifest encode failed: %w", err)
	}
	if err := writeEntry(zw, domain.ManifestName, manifest); err != nil {
		return nil, err
	}

	for filename, export := range pkg.PlaylistFiles {
		raw, err := json.MarshalIndent(export, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("playlist file %s encode failed: %w", filename, err)
		}
		if err := writeEntry(zw, domain.PlaylistsDir+filename, raw); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("archive finalize failed: %w", err)
	}
	return buf.Bytes(), nil
}

// Publish builds, validates, serializes, and uploads a package, then writes
// its sidecar. The sidecar outcome is reported independently; its failure
// does not fail the publish.
func (b *Builder) Publish(ctx context.Context, name string, videos []*catalogdomain.Video, playlists []*playlistdomain.Playlist, progress Progress) (*PublishResult, error) {
	pkg := b.BuildPackage(name, videos, playlists)

	if errs := b.ValidatePackage(pkg); len(errs) > 0 {
		return nil, errors.Integrity(fmt.Sprintf("package %s failed validation: %v", name, errs))
	}

	data, err := b.SerializeToArchive(ctx, pkg, videos, progress)
	if err != nil {
		return nil, err
	}

	createdAt := time.Now().UTC()
	archiveKey := domain.ArchiveKeyFor(b.packagePrefix, name, createdAt)

	if err := b.store.Put(ctx, archiveKey, data, "application/zip", map[string]string{
		"package-name": name,
	}); err != nil {
		return nil, errors.Transport(fmt.Sprintf("archive upload of %s failed", archiveKey), err)
	}

	names := make([]string, 0, len(playlists))
	for _, p := range playlists {
		names = append(names, p.Name)
	}
	md := &domain.PackageMetadata{
		PackageName:    name,
		Filename:       archiveKey,
		PlaylistCount:  len(pkg.PlaylistFiles),
		VideoCount:     len(pkg.Manifest.Videos),
		PlaylistNames:  names,
		TotalSizeBytes: int64(len(data)),
		CreatedAt:      createdAt,
		FormatVersion:  domain.SidecarFormatVersion,
	}

	result := &PublishResult{
		ArchiveKey:   archiveKey,
		SidecarSaved: true,
		PublicURL:    b.store.PublicURL(archiveKey),
	}
	if err := b.sidecars.Save(ctx, archiveKey, md); err != nil {
		// The fallback generator covers a missing sidecar on first listing.
		result.SidecarSaved = false
		b.logger.Warn("sidecar write failed after publish",
			interfaces.String("key", archiveKey), interfaces.Error(err))
	}

	b.eventBus.PublishAsync(ctx, events.NewAggregateEvent("package.published", archiveKey, map[string]interface{}{
		"package_name": name,
		"playlists":    md.PlaylistCount,
		"videos":       md.VideoCount,
		"size_bytes":   md.TotalSizeBytes,
	}))

	b.logger.Info("package published",
		interfaces.String("key", archiveKey),
		interfaces.Int("playlists", md.PlaylistCount),
		interfaces.Int("videos", md.VideoCount),
		interfaces.Bool("sidecar_saved", result.SidecarSaved))

	return result, nil
}

func writeEntry(zw *zip.Writer, name string, content []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("archive entry %s create failed: %w", name, err)
	}
	if _, err := w.Write(content); err != nil {
		return fmt.Errorf("archive entry %s write failed: %w", name, err)
	}
	return nil
}
