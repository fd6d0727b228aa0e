package archive_test

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelpack/reelpack/internal/pack/archive"
	"github.com/reelpack/reelpack/internal/pack/domain"
)

func buildArchive(t *testing.T, entries map[string]interface{}) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, v := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		_, err = w.Write(raw)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestParse_ExtractsManifestAndPlaylists(t *testing.T) {
	data := buildArchive(t, map[string]interface{}{
		domain.ManifestName: domain.VideoLibraryExport{
			TotalVideos: 2,
			Videos: map[string]domain.ExportVideo{
				"a.mp4": {Filename: "a.mp4"},
				"b.mp4": {Filename: "b.mp4"},
			},
		},
		domain.PlaylistsDir + "morning.json": domain.PlaylistExport{
			Name:   "Morning",
			Videos: []domain.PlaylistEntry{{Filename: "b.mp4"}, {Filename: "a.mp4"}},
		},
		domain.PlaylistsDir + "evening.json": domain.PlaylistExport{
			Name:   "Evening",
			Videos: []domain.PlaylistEntry{{Filename: "b.mp4"}},
		},
	})

	structure, err := archive.Parse(data)

	require.NoError(t, err)
	assert.Equal(t, 2, structure.Manifest.TotalVideos)
	require.Len(t, structure.Playlists, 2)
	assert.Equal(t, "Morning", structure.Playlists["morning.json"].Name)
	// Filename order within a playlist survives parsing.
	assert.Equal(t, "b.mp4", structure.Playlists["morning.json"].Videos[0].Filename)
	// Required filenames are distinct and sorted.
	assert.Equal(t, []string{"a.mp4", "b.mp4"}, structure.RequiredFilenames)
}

func TestParse_IgnoresUnrelatedEntries(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(domain.PackagesDir + "a.mp4")
	require.NoError(t, err)
	_, err = w.Write([]byte("video bytes"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	structure, err := archive.Parse(buf.Bytes())

	require.NoError(t, err)
	assert.Empty(t, structure.Playlists)
	assert.Empty(t, structure.RequiredFilenames)
}

func TestParse_RejectsNonArchive(t *testing.T) {
	_, err := archive.Parse([]byte("not a zip"))

	assert.Error(t, err)
}

func TestParse_RejectsCorruptPlaylistFile(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(domain.PlaylistsDir + "broken.json")
	require.NoError(t, err)
	_, err = w.Write([]byte("{not json"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = archive.Parse(buf.Bytes())

	assert.Error(t, err)
}
