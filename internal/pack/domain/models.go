package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/reelpack/reelpack/pkg/utils"
)

// SidecarFormatVersion is the current sidecar schema version. Legacy shapes
// without a version field route through MigrateSidecar.
const SidecarFormatVersion = 2

// ArchiveExt is the archive container extension.
const ArchiveExt = ".zip"

// Archive internal layout, fixed for downstream device consumers.
const (
	PackagesDir   = "content/packages/"
	ThumbnailsDir = "content/packages/thumbnails/"
	PlaylistsDir  = "content/playlists/"
	ManifestName  = "content/packages/metadata.json"
)

// PackageMetadata is the sidecar summarizing an archive's contents, stored
// alongside it so listings do not require full-archive downloads.
type PackageMetadata struct {
	PackageName    string    `json:"packageName"`
	Filename       string    `json:"filename"`
	PlaylistCount  int       `json:"playlistCount"`
	VideoCount     int       `json:"videoCount"`
	PlaylistNames  []string  `json:"playlistNames"`
	TotalSizeBytes int64     `json:"totalSizeBytes"`
	CreatedAt      time.Time `json:"createdAt"`
	FormatVersion  int       `json:"formatVersion"`
}

// MigrateSidecar decodes sidecar bytes, upgrading legacy shapes to the
// current schema instead of reading them unchecked.
func MigrateSidecar(raw []byte) (*PackageMetadata, error) {
	var md PackageMetadata
	if err := json.Unmarshal(raw, &md); err != nil {
		return nil, fmt.Errorf("sidecar decode failed: %w", err)
	}
	if md.FormatVersion > SidecarFormatVersion {
		return nil, fmt.Errorf("sidecar format version %d is newer than supported %d",
			md.FormatVersion, SidecarFormatVersion)
	}
	if md.FormatVersion < SidecarFormatVersion {
		// v1 sidecars carried no playlist names; leave an empty slice rather
		// than nil so consumers can range without checks.
		if md.PlaylistNames == nil {
			md.PlaylistNames = []string{}
		}
		md.FormatVersion = SidecarFormatVersion
	}
	return &md, nil
}

// ExportVideo is a manifest entry, keyed by filename in the library export.
type ExportVideo struct {
	Title             string `json:"title"`
	Filename          string `json:"filename"`
	DurationSeconds   int    `json:"durationSeconds"`
	DurationFormatted string `json:"durationFormatted"`
	Thumbnail         string `json:"thumbnail"`
	Mood              string `json:"mood"`
	Resolution        string `json:"resolution"`
	Category          string `json:"category"`
}

// VideoLibraryExport is the package manifest.
type VideoLibraryExport struct {
	LastUpdated          time.Time              `json:"lastUpdated"`
	TotalVideos          int                    `json:"totalVideos"`
	TotalDurationSeconds int                    `json:"totalDurationSeconds"`
	Videos               map[string]ExportVideo `json:"videos"`
}

// PlaylistEntry is one ordered video inside a playlist export.
type PlaylistEntry struct {
	Filename          string `json:"filename"`
	Title             string `json:"title"`
	DurationSeconds   int    `json:"durationSeconds"`
	DurationFormatted string `json:"durationFormatted"`
	Thumbnail         string `json:"thumbnail"`
}

// PlaylistExport is one playlist file inside the archive.
type PlaylistExport struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Mood        string          `json:"mood"`
	Loop        bool            `json:"loop"`
	Videos      []PlaylistEntry `json:"videos"`
}

// ContentPackage is the immutable export artifact: a manifest plus one
// playlist file per playlist. Every filename referenced by a playlist file
// must exist in the manifest.
type ContentPackage struct {
	Name          string
	Manifest      VideoLibraryExport
	PlaylistFiles map[string]PlaylistExport
}

// PackageStructure is a parsed archive, used for inspection and import.
type PackageStructure struct {
	ArchiveKey        string
	Manifest          VideoLibraryExport
	Playlists         map[string]PlaylistExport
	RequiredFilenames []string
}

// PackageSummary is a listing row for one archive.
type PackageSummary struct {
	Key          string
	Metadata     *PackageMetadata
	LastModified time.Time
	SizeBytes    int64
}

// ArchiveKeyFor derives the store key for a new package archive.
func ArchiveKeyFor(packagePrefix, packageName string, createdAt time.Time) string {
	stamp := createdAt.UTC().Format("20060102T150405Z")
	return fmt.Sprintf("%s%s-%s-package%s", packagePrefix, utils.Slugify(packageName), stamp, ArchiveExt)
}

// SidecarKeyFor derives the sidecar key from an archive key by replacing the
// terminal archive extension with .meta.json.
func SidecarKeyFor(archiveKey string) string {
	if idx := strings.LastIndex(archiveKey, "."); idx >= 0 {
		return archiveKey[:idx] + ".meta.json"
	}
	return archiveKey + ".meta.json"
}

// IsArchiveKey reports whether a listed key names a package archive rather
// than a sidecar or unrelated object.
func IsArchiveKey(key string) bool {
	return strings.HasSuffix(key, ArchiveExt)
}

// PackageNameFromKey recovers the package slug from an archive key.
func PackageNameFromKey(archiveKey string) string {
	base := archiveKey
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	base = strings.TrimSuffix(base, ArchiveExt)
	base = strings.TrimSuffix(base, "-package")
	// Strip the trailing timestamp segment if present.
	if idx := strings.LastIndex(base, "-"); idx >= 0 {
		if looksLikeStamp(base[idx+1:]) {
			base = base[:idx]
		}
	}
	return base
}

func looksLikeStamp(s string) bool {
	_, err := time.Parse("20060102T150405Z", s)
	return err == nil
}
