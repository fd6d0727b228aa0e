package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelpack/reelpack/internal/pack/domain"
)

func TestArchiveKeyFor(t *testing.T) {
	createdAt := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	key := domain.ArchiveKeyFor("packages/", "Morning Mix!", createdAt)

	assert.Equal(t, "packages/morning-mix-20260314T092653Z-package.zip", key)
}

func TestSidecarKeyFor(t *testing.T) {
	tests := []struct {
		name       string
		archiveKey string
		want       string
	}{
		{
			name:       "archive key",
			archiveKey: "packages/mix-20260314T092653Z-package.zip",
			want:       "packages/mix-20260314T092653Z-package.meta.json",
		},
		{
			name:       "no extension",
			archiveKey: "packages/raw",
			want:       "packages/raw.meta.json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.SidecarKeyFor(tt.archiveKey))
		})
	}
}

func TestIsArchiveKey(t *testing.T) {
	assert.True(t, domain.IsArchiveKey("packages/mix-package.zip"))
	assert.False(t, domain.IsArchiveKey("packages/mix-package.meta.json"))
	assert.False(t, domain.IsArchiveKey("packages/"))
}

func TestPackageNameFromKey(t *testing.T) {
	key := domain.ArchiveKeyFor("packages/", "Morning Mix", time.Now().UTC())

	assert.Equal(t, "morning-mix", domain.PackageNameFromKey(key))
}

func TestMigrateSidecar_CurrentVersion(t *testing.T) {
	raw := []byte(`{
		"packageName": "mix",
		"filename": "packages/mix-package.zip",
		"playlistCount": 2,
		"videoCount": 5,
		"playlistNames": ["Morning", "Evening"],
		"totalSizeBytes": 1024,
		"formatVersion": 2
	}`)

	md, err := domain.MigrateSidecar(raw)

	require.NoError(t, err)
	assert.Equal(t, 2, md.FormatVersion)
	assert.Equal(t, []string{"Morning", "Evening"}, md.PlaylistNames)
}

func TestMigrateSidecar_UpgradesLegacy(t *testing.T) {
	// v1 sidecars carried neither a version field nor playlist names.
	raw := []byte(`{
		"packageName": "mix",
		"filename": "packages/mix-package.zip",
		"playlistCount": 2,
		"videoCount": 5,
		"totalSizeBytes": 1024
	}`)

	md, err := domain.MigrateSidecar(raw)

	require.NoError(t, err)
	assert.Equal(t, domain.SidecarFormatVersion, md.FormatVersion)
	assert.NotNil(t, md.PlaylistNames)
	assert.Empty(t, md.PlaylistNames)
}

func TestMigrateSidecar_RejectsNewerVersion(t *testing.T) {
	raw := []byte(`{"packageName": "mix", "formatVersion": 3}`)

	_, err := domain.MigrateSidecar(raw)

	assert.Error(t, err)
}

func TestMigrateSidecar_RejectsGarbage(t *testing.T) {
	_, err := domain.MigrateSidecar([]byte("not json"))

	assert.Error(t, err)
}

func TestDefaultMoodPolicy(t *testing.T) {
	tests := []struct {
		name         string
		playlistName string
		wantMood     string
		wantCategory string
	}{
		{"calm keyword", "Chill Lounge", "calm", "ambient"},
		{"morning keyword", "Morning Warmup", "fresh", "daypart"},
		{"promo keyword", "Spring Promo Reel", "neutral", "promotional"},
		{"no keyword", "Untitled", "neutral", "general"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mood, category := domain.DefaultMoodPolicy(tt.playlistName)
			assert.Equal(t, tt.wantMood, mood)
			assert.Equal(t, tt.wantCategory, category)
		})
	}
}
