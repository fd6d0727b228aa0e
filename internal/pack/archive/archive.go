// Package archive parses the fixed internal layout of content packages.
package archive

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/reelpack/reelpack/internal/pack/domain"
)

// Parse reads a package archive and returns its internal structure: the
// manifest, every playlist file, and the set of distinct video filenames the
// package requires.
func Parse(data []byte) (*domain.PackageStructure, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("archive open failed: %w", err)
	}

	structure := &domain.PackageStructure{
		Playlists: make(map[string]domain.PlaylistExport),
	}

	required := make(map[string]struct{})

	for _, file := range reader.File {
		switch {
		case file.Name == domain.ManifestName:
			if err := decodeEntry(file, &structure.Manifest); err != nil {
				return nil, err
			}
		case strings.HasPrefix(file.Name, domain.PlaylistsDir) && strings.HasSuffix(file.Name, ".json"):
			var export domain.PlaylistExport
			if err := decodeEntry(file, &export); err != nil {
				return nil, err
			}
			structure.Playlists[strings.TrimPrefix(file.Name, domain.PlaylistsDir)] = export
			for _, entry := range export.Videos {
				required[entry.Filename] = struct{}{}
			}
		}
	}

	structure.RequiredFilenames = make([]string, 0, len(required))
	for filename := range required {
		structure.RequiredFilenames = append(structure.RequiredFilenames, filename)
	}
	sort.Strings(structure.RequiredFilenames)

	return structure, nil
}

func decodeEntry(file *zip.File, v interface{}) error {
	rc, err := file.Open()
	if err != nil {
		return fmt.Errorf("archive entry %s open failed: %w", file.Name, err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("archive entry %s read failed: %w", file.Name, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("archive entry %s decode failed: %w", file.Name, err)
	}
	return nil
}
